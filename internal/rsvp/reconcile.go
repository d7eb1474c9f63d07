// Package rsvp reconciles a member's submitted attendance with the stored RSVP.
//
// Reconcile computes the writes needed; it never touches storage.
package rsvp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/clubhouse/internal/membership"
)

// Status is the attendance answer of an RSVP.
type Status string

const (
	StatusGoing  Status = "GOING"
	StatusCantGo Status = "CANT_GO"
)

// Valid reports whether s is a known attendance answer.
func (s Status) Valid() bool {
	return s == StatusGoing || s == StatusCantGo
}

var (
	// ErrRiderWithVehicle is returned when a plan would attach a vehicle to a rider.
	ErrRiderWithVehicle = errors.New("rsvp: a member bringing a vehicle cannot be a rider")
	// ErrInvalidIntent is returned for malformed submissions.
	ErrInvalidIntent = errors.New("rsvp: invalid intent")
	// ErrGuestRunLimit is returned when a guest exceeds the yearly run cap.
	ErrGuestRunLimit = errors.New("rsvp: guest run limit reached")
)

// Intent is what the member asked for.
type Intent struct {
	Status     Status
	VehicleID  *string
	GuestCount int
	// IsRider is nil when the caller did not say.
	IsRider   *bool
	Equipment *string
}

// Snapshot is the stored RSVP state relevant to reconciliation.
type Snapshot struct {
	ID         string
	Status     Status
	VehicleID  *string
	IsRider    bool
	GuestCount int
	Equipment  string
}

// VehicleOp is the change applied to the vehicle reference.
type VehicleOp int

const (
	VehicleKeep VehicleOp = iota
	VehicleConnect
	VehicleDisconnect
)

func (op VehicleOp) String() string {
	switch op {
	case VehicleConnect:
		return "connect"
	case VehicleDisconnect:
		return "disconnect"
	default:
		return "keep"
	}
}

// Plan is the minimal set of writes that brings storage in line with an intent.
type Plan struct {
	// Create is true when no RSVP exists yet for the pair.
	Create     bool
	Status     Status
	GuestCount int
	IsRider    bool
	Vehicle    VehicleOp
	// VehicleID is the vehicle to connect. Set only for VehicleConnect.
	VehicleID *string
	// Equipment is nil when the stored note should stay as is.
	Equipment *string
}

// VehicleAttached reports whether the RSVP will reference a vehicle after the plan is applied.
func (p Plan) VehicleAttached(existing *Snapshot) bool {
	switch p.Vehicle {
	case VehicleConnect:
		return true
	case VehicleDisconnect:
		return false
	default:
		return existing != nil && existing.VehicleID != nil
	}
}

// Reconcile turns an intent into a plan. existing is nil when the member has
// not answered for the event yet.
func Reconcile(existing *Snapshot, intent Intent) (Plan, error) {
	if !intent.Status.Valid() {
		return Plan{}, fmt.Errorf("%w: unknown status %q", ErrInvalidIntent, intent.Status)
	}
	if intent.GuestCount < 0 {
		return Plan{}, fmt.Errorf("%w: guest count must not be negative", ErrInvalidIntent)
	}
	if intent.VehicleID != nil && strings.TrimSpace(*intent.VehicleID) == "" {
		return Plan{}, fmt.Errorf("%w: empty vehicle id", ErrInvalidIntent)
	}

	plan := Plan{
		Create:     existing == nil,
		Status:     intent.Status,
		GuestCount: intent.GuestCount,
		Vehicle:    decideVehicle(existing, intent.VehicleID),
		Equipment:  intent.Equipment,
	}
	if plan.Vehicle == VehicleConnect {
		id := *intent.VehicleID
		plan.VehicleID = &id
	}

	attached := plan.VehicleAttached(existing)
	previous := false
	if existing != nil {
		previous = existing.IsRider
	}
	plan.IsRider = ResolveRider(intent.IsRider, attached, plan.Vehicle == VehicleDisconnect, previous)

	if err := CheckInvariant(attached, plan.IsRider); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func decideVehicle(existing *Snapshot, desired *string) VehicleOp {
	hasExisting := existing != nil && existing.VehicleID != nil
	switch {
	case desired != nil:
		return VehicleConnect
	case hasExisting:
		return VehicleDisconnect
	default:
		return VehicleKeep
	}
}

// ResolveRider decides the rider flag for both the create and update paths.
// An explicit caller value always wins; CheckInvariant rejects it afterwards
// if it conflicts with an attached vehicle.
func ResolveRider(explicit *bool, vehicleAttached, vehicleDetached, previous bool) bool {
	switch {
	case explicit != nil:
		return *explicit
	case vehicleAttached:
		return false
	case vehicleDetached:
		return true
	default:
		return previous
	}
}

// CheckInvariant enforces that a member bringing a vehicle is driving.
func CheckInvariant(vehicleAttached, isRider bool) error {
	if vehicleAttached && isRider {
		return ErrRiderWithVehicle
	}
	return nil
}

// CapacityCheck carries the facts needed to apply the guest run cap.
type CapacityCheck struct {
	AccountType membership.AccountType
	Intent      Status
	EventType   string
	// AlreadyGoing is true when the stored RSVP for this event is GOING.
	AlreadyGoing bool
	// GoingRuns counts the member's other GOING RSVPs on RUN events in the
	// target event's calendar year.
	GoingRuns int
	Limit     int
}

// CheckGuestCapacity returns ErrGuestRunLimit when a guest would exceed the cap.
func CheckGuestCapacity(check CapacityCheck) error {
	if check.AccountType != membership.TypeGuest {
		return nil
	}
	if check.Intent != StatusGoing || check.EventType != "RUN" || check.AlreadyGoing {
		return nil
	}
	if check.Limit <= 0 {
		return nil
	}
	if check.GoingRuns >= check.Limit {
		return fmt.Errorf("%w: guests may attend %d runs per year", ErrGuestRunLimit, check.Limit)
	}
	return nil
}
