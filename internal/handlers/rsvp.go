package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/middleware"
	"github.com/charlesng35/clubhouse/internal/rsvp"
	"github.com/charlesng35/clubhouse/internal/services"
	"github.com/charlesng35/clubhouse/pkg/errors"
	"github.com/charlesng35/clubhouse/pkg/response"
)

// RSVPHandler exposes attendance submission.
type RSVPHandler struct {
	service *services.RSVPService
}

// NewRSVPHandler constructs an RSVP handler.
func NewRSVPHandler(service *services.RSVPService) (*RSVPHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("rsvp handler: rsvp service is required")
	}
	return &RSVPHandler{service: service}, nil
}

type setRSVPRequest struct {
	Status string `json:"status" validate:"required,enumci=GOING CANT_GO"`
	// MemberID lets officers answer for somebody else. Empty means the caller.
	MemberID   string  `json:"member_id" validate:"omitempty,max=36"`
	VehicleID  *string `json:"vehicle_id"`
	GuestCount int     `json:"guest_count" validate:"min=0,max=20"`
	IsRider    *bool   `json:"is_rider"`
	Equipment  *string `json:"equipment" validate:"omitempty,max=2000"`
}

// Set creates or updates the caller's RSVP for the event in the path.
// It answers 201 for a new RSVP and 200 for an update.
func (h *RSVPHandler) Set(c *gin.Context) {
	requesterID := middleware.MemberID(c)
	if requesterID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req setRSVPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.SetRSVP(requestContext(c), requesterID, services.SetRSVPInput{
		MemberID:   req.MemberID,
		EventID:    strings.TrimSpace(c.Param("id")),
		Status:     rsvp.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
		VehicleID:  req.VehicleID,
		GuestCount: req.GuestCount,
		IsRider:    req.IsRider,
		Equipment:  req.Equipment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, result.RSVP)
}
