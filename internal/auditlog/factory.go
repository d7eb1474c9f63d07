// Package auditlog builds membership-log records.
//
// The factory performs no I/O; persistence is the caller's job. Every
// builder stamps the record with the factory clock so tests can pin time.
package auditlog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/clubhouse/internal/membership"
)

// ErrInvalidRecord is returned by Validate for records that cannot be stored.
var ErrInvalidRecord = errors.New("auditlog: invalid record")

// Record is an append-only membership-log entry.
type Record struct {
	Time        time.Time
	Message     string
	MessageCode membership.MessageCode
	// UserID is the member the record concerns.
	UserID string
	// LoggerID is the member who caused the change. Nil for automation.
	LoggerID *string
	Metadata map[string]any
}

// Automated reports whether the record was produced without a human actor.
func (r Record) Automated() bool {
	return r.LoggerID == nil
}

// Validate checks that the record concerns somebody and carries a
// membership-log message code.
func (r Record) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	if !membership.IsMembershipCode(r.MessageCode) {
		return fmt.Errorf("%w: %q is not a membership code", ErrInvalidRecord, r.MessageCode)
	}
	return nil
}

// Details carries the facts a decision record draws on.
type Details struct {
	// LoggerID is the acting member. Nil for automation.
	LoggerID *string
	// Reason is required for rejections.
	Reason string
	// DuesYear is the year a dues payment covers.
	DuesYear int
	// Events are the titles of the runs behind a guest lockout.
	Events []string
}

// Factory produces audit records.
type Factory struct {
	now func() time.Time
}

// NewFactory returns a factory using now as its clock. A nil clock falls back to time.Now.
func NewFactory(now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{now: now}
}

// Entry builds a membership-log record with an arbitrary membership code.
func (f *Factory) Entry(userID string, code membership.MessageCode, message string, loggerID *string) Record {
	return Record{
		Time:        f.now().UTC(),
		Message:     message,
		MessageCode: code,
		UserID:      userID,
		LoggerID:    cloneID(loggerID),
	}
}

// AccountUnlocked records an administrator approving a locked account.
func (f *Factory) AccountUnlocked(userID string, loggerID *string) Record {
	return f.Entry(userID, membership.CodeAccountUnlocked, "Account unlocked", loggerID)
}

// AccountRejected records an administrator rejecting a locked account.
func (f *Factory) AccountRejected(userID string, loggerID *string, reason string) Record {
	message := fmt.Sprintf("Account rejected: %s", strings.TrimSpace(reason))
	return f.Entry(userID, membership.CodeAccountRejected, message, loggerID)
}

// AccountChanged records a change of one account attribute, e.g. the status.
func (f *Factory) AccountChanged(userID, stateName, newState string, loggerID *string) Record {
	message := fmt.Sprintf("%s changed to %q", stateName, newState)
	return f.Entry(userID, membership.CodeAccountChanged, message, loggerID)
}

// DuesPaid records a confirmed dues payment. A year of zero or less is
// left out of the message and metadata.
func (f *Factory) DuesPaid(userID string, year int, loggerID *string) Record {
	if year <= 0 {
		return f.Entry(userID, membership.CodeDuesPaid, "Dues paid", loggerID)
	}
	record := f.Entry(userID, membership.CodeDuesPaid, fmt.Sprintf("Dues paid for %d", year), loggerID)
	record.Metadata = map[string]any{"year": year}
	return record
}

// GuestRestricted records an automated guest lockout. events lists the
// titles of the runs that pushed the member over the threshold.
func (f *Factory) GuestRestricted(userID string, events []string) Record {
	message := "Account restricted after reaching the guest run limit"
	if len(events) > 0 {
		message = fmt.Sprintf("%s: %s", message, strings.Join(events, ", "))
	}
	record := f.Entry(userID, membership.CodeGuestRestricted, message, nil)
	record.Metadata = map[string]any{"events": append([]string(nil), events...)}
	return record
}

// ForDecision builds the single membership-log record that accompanies an
// applied state machine decision. The second return value is false when the
// decision does not call for a record.
func (f *Factory) ForDecision(d membership.Decision, userID string, details Details) (Record, bool) {
	if !d.Allowed {
		return Record{}, false
	}

	var record Record
	switch d.MessageCode {
	case membership.CodeAccountUnlocked:
		record = f.AccountUnlocked(userID, details.LoggerID)
	case membership.CodeAccountRejected:
		record = f.AccountRejected(userID, details.LoggerID, details.Reason)
	case membership.CodeDuesPaid:
		record = f.DuesPaid(userID, details.DuesYear, details.LoggerID)
	case membership.CodeGuestRestricted:
		record = f.GuestRestricted(userID, details.Events)
	default:
		record = f.AccountChanged(userID, "Status", string(d.To), details.LoggerID)
	}

	if record.Metadata == nil {
		record.Metadata = make(map[string]any, 3)
	}
	record.Metadata["transition"] = string(d.Transition)
	record.Metadata["from"] = string(d.From)
	record.Metadata["to"] = string(d.To)
	return record, true
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	copied := *id
	return &copied
}
