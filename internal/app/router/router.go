// Package router assembles the gin engine: middleware, swagger mount, and
// module registration.
package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mila-iqia/clockwork-sub001/internal/app/docs"
	"github.com/mila-iqia/clockwork-sub001/pkg/errors"
)

// Registrar is implemented by every API module.
type Registrar interface {
	Register(grp *gin.RouterGroup)
}

// New builds the engine with recovery, request logging and the swagger UI
// mounted on /swagger/index.html.
func New(mode string, logger *slog.Logger) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.NoRoute(func(c *gin.Context) {
		errors.ServeError(c.Writer, c.Request, errors.NotFound("path %s was not found", c.Request.URL.Path))
	})
	r.NoMethod(func(c *gin.Context) {
		errors.ServeError(c.Writer, c.Request, errors.MethodNotAllowed("method %s is not allowed", c.Request.Method))
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

// RegisterAll mounts every module under base, all behind the given
// middleware.
func RegisterAll(r *gin.Engine, base string, middleware []gin.HandlerFunc, regs ...Registrar) {
	grp := r.Group(base, middleware...)
	for _, reg := range regs {
		reg.Register(grp)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
