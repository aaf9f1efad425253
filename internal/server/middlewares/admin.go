package middlewares

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/etpamelo/gallerybox/internal/server/handlers/api"
	"github.com/gin-gonic/gin"
)

const HeaderAdminSecret = "X-Admin-Secret"

var errUnauthorized = errors.New("unauthorized")

// AdminSecret rejects requests whose X-Admin-Secret header does not match secret.
// An empty secret rejects everything.
func AdminSecret(secret string) gin.HandlerFunc {
	if secret == "" {
		slog.Warn("admin secret not set, admin routes will reject all requests")
	}
	return func(ctx *gin.Context) {
		provided := ctx.GetHeader(HeaderAdminSecret)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAccessDenied, errUnauthorized)
			return
		}
		ctx.Next()
	}
}
