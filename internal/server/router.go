package server

import (
	"github.com/abduss/cloudbox/internal/auth"
	"github.com/abduss/cloudbox/internal/config"
	"github.com/abduss/cloudbox/internal/file"
	"github.com/abduss/cloudbox/internal/logger"
	"github.com/abduss/cloudbox/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	Logger      *zap.Logger
	DB          Pinger
	ObjectStore *minio.Client
	AuthService *auth.Service
	FileService *file.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, readinessChecks(deps), log.Named("health"))

	metrics.InitMetrics()
	if path := deps.Config.Metrics.PrometheusPath; path != "" {
		metrics.Register(router, path)
	}

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))
		auth.RegisterProtectedRoutes(protected, deps.AuthService)

		if deps.FileService != nil {
			file.RegisterRoutes(protected, deps.FileService)
		}
	}

	return router
}
