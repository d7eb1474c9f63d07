package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/middleware"
	"github.com/charlesng35/clubhouse/internal/services"
	"github.com/charlesng35/clubhouse/pkg/errors"
	"github.com/charlesng35/clubhouse/pkg/response"
)

// MemberHandler exposes administrative membership actions and history.
type MemberHandler struct {
	members *services.MembershipService
	logs    *services.LogService
}

// NewMemberHandler constructs a member handler.
func NewMemberHandler(members *services.MembershipService, logs *services.LogService) (*MemberHandler, error) {
	if members == nil || logs == nil {
		return nil, fmt.Errorf("member handler: membership and log services are required")
	}
	return &MemberHandler{members: members, logs: logs}, nil
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

type duesRequest struct {
	// Year defaults to the current dues year.
	Year int `json:"year" validate:"omitempty,min=2000,max=2100"`
}

type logEntryRequest struct {
	Code    string     `json:"code" validate:"required"`
	Message string     `json:"message" validate:"required,notblank,max=2000"`
	Time    *time.Time `json:"time"`
}

func actorFrom(c *gin.Context) (services.Actor, bool) {
	id := middleware.MemberID(c)
	if id == "" {
		response.Error(c, errors.ErrUnauthorized)
		return services.Actor{}, false
	}
	return services.Actor{ID: id, Role: middleware.Role(c)}, true
}

// MembershipLog lists a member's membership history. Members may read their
// own; officers and admins may read anyone's.
func (h *MemberHandler) MembershipLog(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	memberID := strings.TrimSpace(c.Param("id"))
	if memberID != actor.ID && !actor.Role.IsAdministrative() {
		response.Error(c, errors.ErrForbidden)
		return
	}
	if _, err := h.members.Get(requestContext(c), memberID); err != nil {
		response.Error(c, err)
		return
	}

	limit := parseIntQuery(c, "limit", 0)
	items, err := h.logs.ListMembershipLog(requestContext(c), memberID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, limit)
}

// AddLogEntry records a manual membership-log entry.
func (h *MemberHandler) AddLogEntry(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req logEntryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	entry := services.ManualLogEntry{
		MemberID: c.Param("id"),
		Actor:    actor,
		Code:     membership.MessageCode(strings.ToUpper(strings.TrimSpace(req.Code))),
		Message:  req.Message,
	}
	if req.Time != nil {
		entry.Time = *req.Time
	}
	item, err := h.logs.LogEntry(requestContext(c), entry)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}

// Unlock approves a LOCKED account.
func (h *MemberHandler) Unlock(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	member, err := h.members.Unlock(requestContext(c), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// Reject refuses a LOCKED account.
func (h *MemberHandler) Reject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req rejectRequest
	if !bindAndValidate(c, &req) {
		return
	}
	member, err := h.members.Reject(requestContext(c), c.Param("id"), actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// RecordDues records a confirmed dues payment. An empty body means the current year.
func (h *MemberHandler) RecordDues(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req duesRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	member, err := h.members.RecordDuesPaid(requestContext(c), c.Param("id"), actor, req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}
