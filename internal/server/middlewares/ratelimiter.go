package middlewares

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/etpamelo/gallerybox/internal/server/handlers/api"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
)

// RateLimiter limits requests per client IP, e.g. "10-M" for ten a minute.
// Each call gets its own counter store, so route groups do not share budgets.
func RateLimiter(formattedRate string) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		panic(err)
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "gallerybox_" + formattedRate,
		MaxRetry:        limiter.DefaultMaxRetry,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
	return mgin.NewMiddleware(
		limiter.New(store, rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			slog.Warn("rate limit reached", "path", c.Request.URL.Path, "ip", c.ClientIP())
			c.Header("Retry-After", strconv.FormatInt(int64(rate.Period.Seconds()), 10))
			c.PureJSON(http.StatusTooManyRequests, api.APIError{
				Code:    api.CodeRateLimited,
				Message: "rate limit exceeded, try again later",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			c.PureJSON(http.StatusInternalServerError, api.APIError{
				Code:    api.CodeInternalError,
				Message: err.Error(),
			})
		}),
	)
}
