package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/handlers"
	"github.com/charlesng35/clubhouse/internal/services"
)

func registerEventRoutes(api *gin.RouterGroup, events *services.EventService, rsvps *services.RSVPService, loc *time.Location, now func() time.Time) error {
	eventHandler, err := handlers.NewEventHandler(events, loc, now)
	if err != nil {
		return err
	}
	rsvpHandler, err := handlers.NewRSVPHandler(rsvps)
	if err != nil {
		return err
	}

	group := api.Group("/events")
	{
		group.GET("/upcoming", eventHandler.Upcoming)
		group.POST("/:id/rsvp", rsvpHandler.Set)
	}
	return nil
}
