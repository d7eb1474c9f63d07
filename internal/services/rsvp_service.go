package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/lockout"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
	"github.com/charlesng35/clubhouse/internal/rsvp"
	apperrors "github.com/charlesng35/clubhouse/pkg/errors"
	"github.com/charlesng35/clubhouse/pkg/logger"
	"github.com/charlesng35/clubhouse/pkg/metrics"
)

var (
	// ErrEventNotFound is returned when the requested event does not exist.
	ErrEventNotFound = apperrors.New("EVENT_NOT_FOUND", "Event not found", http.StatusNotFound)
	// ErrVehicleNotOwned is returned when an RSVP names somebody else's vehicle.
	ErrVehicleNotOwned = apperrors.New("VEHICLE_NOT_OWNED", "Vehicle does not belong to the member", http.StatusBadRequest)
)

// SetRSVPInput describes one attendance submission.
type SetRSVPInput struct {
	// MemberID is whose RSVP is being set. Empty means the requester.
	MemberID   string
	EventID    string
	Status     rsvp.Status
	VehicleID  *string
	GuestCount int
	IsRider    *bool
	Equipment  *string
}

// RSVPResult reports the stored RSVP and whether it was newly created.
type RSVPResult struct {
	RSVP    models.RSVP
	Created bool
}

// RSVPService stores member attendance for events.
type RSVPService struct {
	db           *gorm.DB
	guestMaxRuns int
	loc          *time.Location
}

// RSVPOption configures an RSVPService.
type RSVPOption func(*RSVPService)

// WithRSVPLocation sets the club timezone used to decide an event's calendar year.
func WithRSVPLocation(loc *time.Location) RSVPOption {
	return func(s *RSVPService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewRSVPService constructs an RSVPService. guestMaxRuns <= 0 uses the default cap.
func NewRSVPService(db *gorm.DB, guestMaxRuns int, opts ...RSVPOption) (*RSVPService, error) {
	if db == nil {
		return nil, errors.New("rsvp service: db is required")
	}
	if guestMaxRuns <= 0 {
		guestMaxRuns = lockout.DefaultGuestMaxRuns
	}
	svc := &RSVPService{db: db, guestMaxRuns: guestMaxRuns, loc: time.UTC}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// SetRSVP creates or updates the RSVP of input.MemberID for input.EventID on
// behalf of requesterID.
func (s *RSVPService) SetRSVP(ctx context.Context, requesterID string, input SetRSVPInput) (*RSVPResult, error) {
	ctx = ensureContext(ctx)
	log := logger.WithModule("rsvp")

	requester, err := s.loadMember(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.AccountStatus.CanParticipate() {
		return nil, apperrors.ErrAccountInactive
	}

	memberID := strings.TrimSpace(input.MemberID)
	if memberID == "" {
		memberID = requester.ID
	}
	target := requester
	if memberID != requester.ID {
		if !requester.Role.IsAdministrative() {
			return nil, apperrors.ErrForbidden
		}
		if target, err = s.loadMember(ctx, memberID); err != nil {
			return nil, err
		}
		if !target.AccountStatus.CanParticipate() {
			return nil, apperrors.ErrAccountInactive
		}
	}

	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", strings.TrimSpace(input.EventID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("rsvp service: load event: %w", err)
	}

	if input.VehicleID != nil {
		if err := s.checkVehicleOwner(ctx, strings.TrimSpace(*input.VehicleID), target.ID); err != nil {
			return nil, err
		}
	}

	intent := rsvp.Intent{
		Status:     input.Status,
		VehicleID:  trimmedPtr(input.VehicleID),
		GuestCount: input.GuestCount,
		IsRider:    input.IsRider,
		Equipment:  input.Equipment,
	}
	if input.VehicleID != nil && intent.VehicleID == nil {
		return nil, apperrors.NewBadRequest("vehicle id must not be blank")
	}

	var result *RSVPResult
	for attempt := 0; attempt < 2; attempt++ {
		result, err = s.apply(ctx, target, event, intent)
		if err == nil || !isUniqueConstraintError(err) {
			break
		}
		// Lost a create race against a concurrent submission; retry as an update.
		log.Debug("rsvp create raced, retrying as update",
			zap.String("member_id", target.ID), zap.String("event_id", event.ID))
	}
	if err != nil {
		metrics.RSVPSubmissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	outcome := "updated"
	if result.Created {
		outcome = "created"
	}
	metrics.RSVPSubmissions.WithLabelValues(outcome).Inc()
	log.Info("rsvp saved",
		zap.String("member_id", target.ID),
		zap.String("event_id", event.ID),
		zap.String("status", result.RSVP.Status),
		zap.String("outcome", outcome),
	)
	return result, nil
}

func (s *RSVPService) apply(ctx context.Context, member *models.Member, event models.Event, intent rsvp.Intent) (*RSVPResult, error) {
	var result RSVPResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored models.RSVP
		var existing *rsvp.Snapshot
		err := tx.Where("member_id = ? AND event_id = ?", member.ID, event.ID).First(&stored).Error
		switch {
		case err == nil:
			existing = &rsvp.Snapshot{
				ID:         stored.ID,
				Status:     rsvp.Status(stored.Status),
				VehicleID:  stored.VehicleID,
				IsRider:    stored.IsRider,
				GuestCount: stored.GuestCount,
				Equipment:  stored.Equipment,
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("load rsvp: %w", err)
		}

		plan, err := rsvp.Reconcile(existing, intent)
		if err != nil {
			return apperrors.NewBadRequest(reconcileMessage(err)).WithInternal(err)
		}

		if member.AccountType == membership.TypeGuest && plan.Status == rsvp.StatusGoing && event.IsRun() {
			runs, err := s.countGoingRuns(tx, member.ID, event)
			if err != nil {
				return err
			}
			check := rsvp.CapacityCheck{
				AccountType:  member.AccountType,
				Intent:       plan.Status,
				EventType:    event.Type,
				AlreadyGoing: existing != nil && existing.Status == rsvp.StatusGoing,
				GoingRuns:    runs,
				Limit:        s.guestMaxRuns,
			}
			if err := rsvp.CheckGuestCapacity(check); err != nil {
				return apperrors.ErrGuestRunLimit.WithInternal(err)
			}
		}

		if plan.Create {
			record := models.RSVP{
				MemberID:   member.ID,
				EventID:    event.ID,
				Status:     string(plan.Status),
				IsRider:    plan.IsRider,
				VehicleID:  plan.VehicleID,
				GuestCount: plan.GuestCount,
			}
			if plan.Equipment != nil {
				record.Equipment = *plan.Equipment
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			result = RSVPResult{RSVP: record, Created: true}
			return nil
		}

		updates := map[string]any{
			"status":      string(plan.Status),
			"is_rider":    plan.IsRider,
			"guest_count": plan.GuestCount,
		}
		switch plan.Vehicle {
		case rsvp.VehicleConnect:
			updates["vehicle_id"] = *plan.VehicleID
		case rsvp.VehicleDisconnect:
			updates["vehicle_id"] = nil
		}
		if plan.Equipment != nil {
			updates["equipment"] = *plan.Equipment
		}
		if err := tx.Model(&models.RSVP{}).Where("id = ?", stored.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update rsvp: %w", err)
		}
		if err := tx.First(&stored, "id = ?", stored.ID).Error; err != nil {
			return fmt.Errorf("reload rsvp: %w", err)
		}
		result = RSVPResult{RSVP: stored}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// countGoingRuns counts the member's GOING RSVPs on other RUN events in the
// calendar year of event.
func (s *RSVPService) countGoingRuns(tx *gorm.DB, memberID string, event models.Event) (int, error) {
	window := lockout.CalendarYear(event.StartTime.In(s.loc))

	var count int64
	err := tx.Model(&models.RSVP{}).
		Joins("JOIN events ON events.id = rsvps.event_id").
		Where("rsvps.member_id = ? AND rsvps.status = ? AND rsvps.event_id <> ?", memberID, string(rsvp.StatusGoing), event.ID).
		Where("events.type = ? AND events.start_time >= ? AND events.start_time <= ?",
			models.EventTypeRun, window.Start.UTC(), window.End.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count guest runs: %w", err)
	}
	return int(count), nil
}

func (s *RSVPService) loadMember(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("rsvp service: load member: %w", err)
	}
	return &member, nil
}

func (s *RSVPService) checkVehicleOwner(ctx context.Context, vehicleID, memberID string) error {
	if vehicleID == "" {
		return nil
	}
	var vehicle models.Vehicle
	if err := s.db.WithContext(ctx).First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVehicleNotOwned
		}
		return fmt.Errorf("rsvp service: load vehicle: %w", err)
	}
	if vehicle.OwnerID != memberID {
		return ErrVehicleNotOwned
	}
	return nil
}

// ForEvent lists the RSVPs of an event with their members.
func (s *RSVPService) ForEvent(ctx context.Context, eventID string, status rsvp.Status) ([]models.RSVP, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Preload("Member").Where("event_id = ?", strings.TrimSpace(eventID))
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var rsvps []models.RSVP
	if err := query.Order("created_at ASC").Find(&rsvps).Error; err != nil {
		return nil, fmt.Errorf("rsvp service: list rsvps: %w", err)
	}
	return rsvps, nil
}

func reconcileMessage(err error) string {
	switch {
	case errors.Is(err, rsvp.ErrRiderWithVehicle):
		return "a member bringing a vehicle cannot ride along"
	case errors.Is(err, rsvp.ErrInvalidIntent):
		return "invalid attendance submission"
	default:
		return "unable to reconcile attendance"
	}
}
