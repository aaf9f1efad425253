package middlewares

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

// Logger writes access logs under the "http" group. Request headers are left out
// so the admin secret never reaches the log.
func Logger() gin.HandlerFunc {
	httpLogger := slog.Default().WithGroup("http")

	return slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		WithTraceID:      true,
		WithSpanID:       true,
		Filters: []slogGin.Filter{
			slogGin.IgnorePath("/healthz", "/metrics"),
		},
	})
}
