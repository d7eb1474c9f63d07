package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/services"
	"github.com/charlesng35/clubhouse/pkg/response"
)

// ActivityHandler serves the club activity feed.
type ActivityHandler struct {
	logs *services.LogService
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(logs *services.LogService) (*ActivityHandler, error) {
	if logs == nil {
		return nil, fmt.Errorf("activity handler: log service is required")
	}
	return &ActivityHandler{logs: logs}, nil
}

// List returns the newest activity entries, optionally filtered by ?code=.
func (h *ActivityHandler) List(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}

	code := membership.MessageCode(strings.ToUpper(strings.TrimSpace(c.Query("code"))))
	limit := parseIntQuery(c, "limit", 0)
	items, err := h.logs.ListActivity(requestContext(c), code, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, limit)
}
