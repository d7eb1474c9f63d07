package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/app"
	"github.com/charlesng35/clubhouse/internal/handlers"
	"github.com/charlesng35/clubhouse/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Disabled)
		r.GET("/health/live", handlers.Disabled)
		r.GET("/health/ready", handlers.Disabled)
		return
	}

	health := handlers.NewHealthHandler(manager)
	r.GET("/health", health.Health)
	r.GET("/health/live", health.Live)
	r.GET("/health/ready", health.Ready)
}
