package server

import (
	"net/http"
	"time"

	"github.com/etpamelo/gallerybox/internal/server/handlers/api"
	"github.com/etpamelo/gallerybox/internal/server/handlers/catalog"
	"github.com/etpamelo/gallerybox/internal/server/handlers/generate"
	"github.com/etpamelo/gallerybox/internal/server/middlewares"
	"github.com/etpamelo/gallerybox/internal/version"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(config *Config, svc *Services) http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	catalogH := catalog.New(svc.Catalog)
	generateH := generate.New(svc.Generation)

	generateRate := config.HTTP.GenerateRate
	if generateRate == "" {
		generateRate = DefaultGenerateRate
	}
	maxBody := config.HTTP.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.SecureHeaders(config.HTTP.TLS()))
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS(config.HTTP.AllowOrigins))

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Metrics, promhttp.HandlerOpts{})))

	apiGroup := r.Group("/api")
	apiGroup.Use(middlewares.BodyLimit(maxBody))
	{
		apiGroup.Any("/ping", PingHandler)

		admin := apiGroup.Group("")
		admin.Use(middlewares.AdminSecret(config.Admin.Secret))
		{
			admin.POST("/manage", catalogH.Manage)
			admin.POST("/upload", catalogH.Upload)
			admin.POST("/temp-upload", catalogH.TempUpload)
		}

		gen := apiGroup.Group("")
		gen.Use(middlewares.RateLimiter(generateRate))
		{
			gen.POST("/seedream", generateH.Generate)
			gen.POST("/generate", generateH.Generate)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{
			Code:    api.CodeMethodNotAllowed,
			Message: "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	// return a plaintext
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func PingHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"ok":   true,
		"path": ctx.Request.URL.RequestURI(),
		"now":  time.Now().UnixMilli(),
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
