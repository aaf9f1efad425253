package generate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/etpamelo/gallerybox/internal/server/generation"
	"github.com/etpamelo/gallerybox/internal/server/handlers/api"
	"github.com/gin-gonic/gin"
)

type GenerateHandler struct {
	proxy *generation.Proxy
}

func New(proxy *generation.Proxy) *GenerateHandler {
	return &GenerateHandler{proxy: proxy}
}

func (h *GenerateHandler) Generate(ctx *gin.Context) {
	if !h.proxy.IsConfigured() {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeNotConfigured, generation.ErrNotConfigured)
		return
	}

	var req generation.Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodePayloadTooLarge, err)
			return
		}
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := h.proxy.Generate(ctx.Request.Context(), &req)
	switch {
	case errors.Is(err, generation.ErrInvalidRequest):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	case errors.Is(err, generation.ErrImageTooLarge):
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodePayloadTooLarge, err)
		return
	case errors.Is(err, generation.ErrNotConfigured):
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeNotConfigured, err)
		return
	case err != nil:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeUpstreamFailed, err)
		return
	}

	if resp.Status >= http.StatusBadRequest {
		ctx.Error(fmt.Errorf("generation upstream status %d", resp.Status))
	}
	ctx.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
}
