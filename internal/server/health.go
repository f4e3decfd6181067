package server

import (
	"context"
	"net/http"
	"time"

	"github.com/abduss/cloudbox/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type readinessCheck struct {
	component string
	check     func(ctx context.Context) error
}

func readinessChecks(deps Dependencies) []readinessCheck {
	var checks []readinessCheck
	if deps.DB != nil {
		checks = append(checks, readinessCheck{component: "postgres", check: deps.DB.Ping})
	}
	if deps.ObjectStore != nil {
		client, bucket := deps.ObjectStore, deps.Config.MinIO.Bucket
		checks = append(checks, readinessCheck{component: "minio", check: func(ctx context.Context) error {
			return storage.CheckBucket(ctx, client, bucket)
		}})
	}
	return checks
}

func registerHealthRoutes(router *gin.Engine, checks []readinessCheck, log *zap.Logger) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		for _, rc := range checks {
			if err := rc.check(ctx); err != nil {
				log.Warn("readiness check failed", zap.String("component", rc.component), zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "degraded",
					"component": rc.component,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

