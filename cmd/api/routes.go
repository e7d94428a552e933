package main

import (
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRouter(api *API, rl *middleware.RateLimiter, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth())
	if rl != nil {
		v1.Use(middleware.RateLimit(rl))
	}
	{
		// Videos
		v1.GET("/videos", api.listVideos)
		v1.DELETE("/videos/cache", api.invalidateVideos)
		v1.GET("/videos/:id/comments", api.getVideoComments)

		// Analyses
		v1.POST("/videos/:id/analyses", api.createAnalysis)
		v1.GET("/analyses/:id", api.getAnalysis)

		// Moderation
		v1.POST("/comments/moderate", api.moderateComments)

		// Quota
		v1.GET("/quota", api.getQuota)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/users/:id/quota", api.adminGetQuota)
		admin.PUT("/users/:id/quota", api.adminUpdateLimits)
		admin.DELETE("/users/:id/quota/today", api.adminResetToday)
	}

	return router
}
