package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/repomaster/backend/config"
	"github.com/repomaster/backend/internal/handler"
	"github.com/repomaster/backend/internal/metrics"
)

func Setup(cfg *config.Config, generateHandler *handler.GenerateHandler) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		klog.Errorf("[Router] panic: path=%s, err=%v", c.Request.URL.Path, recovered)
		metrics.IncError("router", "panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}))

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", handler.RequestIDHeader},
		ExposeHeaders:   []string{"Content-Length", handler.RequestIDHeader},
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/ping", handler.Ping)
	r.POST("/generate-docs-from-url", generateHandler.Readme)
	r.POST("/generate-dockerfile", generateHandler.Dockerfile)
	r.POST("/generate-docker-compose", generateHandler.DockerCompose)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler()))
	}

	return r
}
