package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/http/api"
	playerapi "github.com/Nixie-Tech-LLC/medusa-player/internal/http/api/player/endpoints"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/metrics"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/player"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, orch *player.Orchestrator) {
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger("/api/player/current", "/healthz", "/metrics"))

	// the renderer is a local web shell, possibly served from file:// or a dev server
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/player",
	},
		playerapi.PlayerModule(orch),
	)

	if cfg.DeviceSecret != "" || cfg.OperatorPasswordHash != "" {
		api.MountGroup(r, api.GroupConfig{
			Prefix:       "/api/player",
			Auth:         true,
			SecretKey:    cfg.DeviceSecret,
			PasswordHash: cfg.OperatorPasswordHash,
		},
			playerapi.OperatorModule(orch),
		)
	} else {
		logger.Warn().Msg("no operator credentials configured, /api/player/resync disabled")
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		snap := orch.Current()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "state": snap.State})
	})
}
