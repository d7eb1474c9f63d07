package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/handlers"
	"github.com/charlesng35/clubhouse/internal/services"
)

func registerActivityRoutes(api *gin.RouterGroup, logs *services.LogService) error {
	activityHandler, err := handlers.NewActivityHandler(logs)
	if err != nil {
		return err
	}

	api.GET("/activity", activityHandler.List)
	return nil
}
