package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/services"
	"github.com/charlesng35/clubhouse/pkg/response"
)

// EventHandler serves the event calendar.
type EventHandler struct {
	service *services.EventService
	now     func() time.Time
	loc     *time.Location
}

// NewEventHandler constructs an event handler evaluating "now" in loc.
func NewEventHandler(service *services.EventService, loc *time.Location, now func() time.Time) (*EventHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("event handler: event service is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &EventHandler{service: service, now: now, loc: loc}, nil
}

// Upcoming lists events from now until the end of the club's calendar year.
func (h *EventHandler) Upcoming(c *gin.Context) {
	count := parseIntQuery(c, "count", 0)
	events, err := h.service.Upcoming(requestContext(c), h.now().In(h.loc), count)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, events, count)
}
