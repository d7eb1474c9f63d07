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

	"github.com/charlesng35/clubhouse/internal/auditlog"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
	apperrors "github.com/charlesng35/clubhouse/pkg/errors"
	"github.com/charlesng35/clubhouse/pkg/logger"
	"github.com/charlesng35/clubhouse/pkg/metrics"
)

var (
	// ErrMemberNotFound is returned when the requested member does not exist.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "Member not found", http.StatusNotFound)
	// ErrTransitionNotAllowed is returned when a manual transition fails its guard.
	ErrTransitionNotAllowed = apperrors.New("TRANSITION_NOT_ALLOWED", "The member's current status does not allow this change", http.StatusConflict)
	// ErrStatusChanged is returned when the stored status moved between read and write.
	ErrStatusChanged = errors.New("membership service: status changed concurrently")
	// ErrMissingAuditRecord is returned when an applied decision produced no
	// membership-log record. The status change is rolled back.
	ErrMissingAuditRecord = errors.New("membership service: no audit record for decision")
)

// Actor identifies the member performing an operation.
type Actor struct {
	ID   string
	Role membership.Role
}

// TransitionRequest asks the service to apply one state machine transition.
type TransitionRequest struct {
	MemberID   string
	Transition membership.Transition
	Guard      membership.Guard
	// ActorID is nil for automation.
	ActorID *string
	// Reason is carried into the rejection audit message.
	Reason string
	// Events are the titles of the runs behind a guest lockout.
	Events []string
	// DuesYear, when set, marks dues as current for members paid through that year.
	DuesYear int
}

// TransitionResult describes what ApplyTransition did.
type TransitionResult struct {
	Member   models.Member
	Decision membership.Decision
	Applied  bool
	Log      *models.MembershipLogItem
}

// MembershipService applies state machine decisions to stored members.
type MembershipService struct {
	db      *gorm.DB
	factory *auditlog.Factory
	now     func() time.Time
}

// MembershipOption configures a MembershipService.
type MembershipOption func(*MembershipService)

// WithMembershipClock overrides the service clock.
func WithMembershipClock(now func() time.Time) MembershipOption {
	return func(s *MembershipService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(db *gorm.DB, factory *auditlog.Factory, opts ...MembershipOption) (*MembershipService, error) {
	if db == nil {
		return nil, errors.New("membership service: db is required")
	}
	svc := &MembershipService{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if factory == nil {
		factory = auditlog.NewFactory(svc.now)
	}
	svc.factory = factory
	return svc, nil
}

// Get loads a member by id.
func (s *MembershipService) Get(ctx context.Context, memberID string) (*models.Member, error) {
	ctx = ensureContext(ctx)

	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, "id = ?", strings.TrimSpace(memberID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("membership service: load member: %w", err)
	}
	return &member, nil
}

// ApplyTransition evaluates req against the stored member and, when the
// decision allows it, writes the new status and exactly one membership-log
// item in a single transaction. A disallowed decision is not an error.
func (s *MembershipService) ApplyTransition(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	ctx = ensureContext(ctx)

	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		if err := tx.First(&member, "id = ?", strings.TrimSpace(req.MemberID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("load member: %w", err)
		}

		guard := req.Guard
		if req.DuesYear > 0 && member.DuesPaidYear >= req.DuesYear {
			guard.DuesCurrent = true
		}

		decision := membership.Decide(member.AccountStatus, member.AccountType, req.Transition, guard)
		result.Decision = decision
		result.Member = member
		if !decision.Allowed {
			return nil
		}

		updates := map[string]any{
			"account_status": string(decision.To),
			"updated_at":     s.now().UTC(),
		}
		if req.Transition == membership.TransitionDuesPaid && req.DuesYear > member.DuesPaidYear {
			updates["dues_paid_year"] = req.DuesYear
		}

		res := tx.Model(&models.Member{}).
			Where("id = ? AND account_status = ?", member.ID, string(decision.From)).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStatusChanged
		}

		details := auditlog.Details{
			LoggerID: trimmedPtr(req.ActorID),
			Reason:   req.Reason,
			Events:   req.Events,
		}
		if req.Transition == membership.TransitionDuesPaid {
			details.DuesYear = req.DuesYear
		}
		record, ok := s.factory.ForDecision(decision, member.ID, details)
		if !ok {
			return fmt.Errorf("%w: %s from %s", ErrMissingAuditRecord, req.Transition, decision.From)
		}
		item, err := membershipLogItem(record)
		if err != nil {
			return err
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("write membership log: %w", err)
		}

		member.AccountStatus = decision.To
		if year, ok := updates["dues_paid_year"].(int); ok {
			member.DuesPaidYear = year
		}
		result.Member = member
		result.Applied = true
		result.Log = &item
		return nil
	})

	switch {
	case err == nil && result.Applied:
		metrics.StatusTransitions.WithLabelValues(string(req.Transition), "applied").Inc()
	case err == nil:
		metrics.StatusTransitions.WithLabelValues(string(req.Transition), "skipped").Inc()
	default:
		metrics.StatusTransitions.WithLabelValues(string(req.Transition), "error").Inc()
	}

	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) || errors.Is(err, ErrStatusChanged) {
			return result, err
		}
		return result, fmt.Errorf("membership service: apply %s: %w", req.Transition, err)
	}

	if result.Applied {
		logger.WithModule("membership").Info("membership status changed",
			zap.String("member_id", result.Member.ID),
			zap.String("transition", string(req.Transition)),
			zap.String("from", string(result.Decision.From)),
			zap.String("to", string(result.Decision.To)),
		)
	}
	return result, nil
}

// Unlock approves a LOCKED account.
func (s *MembershipService) Unlock(ctx context.Context, memberID string, actor Actor) (*models.Member, error) {
	return s.manual(ctx, TransitionRequest{
		MemberID:   memberID,
		Transition: membership.TransitionAdminUnlock,
		Guard:      membership.Guard{ActorRole: actor.Role},
		ActorID:    &actor.ID,
	}, actor)
}

// Reject refuses a LOCKED account. reason is required.
func (s *MembershipService) Reject(ctx context.Context, memberID string, actor Actor, reason string) (*models.Member, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewBadRequest("a reason is required to reject an account")
	}
	return s.manual(ctx, TransitionRequest{
		MemberID:   memberID,
		Transition: membership.TransitionAdminReject,
		Guard:      membership.Guard{ActorRole: actor.Role, Reason: reason},
		ActorID:    &actor.ID,
		Reason:     reason,
	}, actor)
}

// RecordDuesPaid records a confirmed dues payment for year.
func (s *MembershipService) RecordDuesPaid(ctx context.Context, memberID string, actor Actor, year int) (*models.Member, error) {
	if year <= 0 {
		year = s.now().Year()
	}
	return s.manual(ctx, TransitionRequest{
		MemberID:   memberID,
		Transition: membership.TransitionDuesPaid,
		Guard:      membership.Guard{ActorRole: actor.Role, PaymentConfirmed: true},
		ActorID:    &actor.ID,
		DuesYear:   year,
	}, actor)
}

func (s *MembershipService) manual(ctx context.Context, req TransitionRequest, actor Actor) (*models.Member, error) {
	if !actor.Role.IsAdministrative() {
		return nil, apperrors.ErrForbidden
	}
	result, err := s.ApplyTransition(ctx, req)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, apperrors.ErrConflict.WithInternal(err)
		}
		return nil, err
	}
	if !result.Applied {
		return nil, ErrTransitionNotAllowed
	}
	return &result.Member, nil
}

// Candidates lists members whose status is a source state of transition,
// narrowed to the given account types when any are supplied.
func (s *MembershipService) Candidates(ctx context.Context, transition membership.Transition, types ...membership.AccountType) ([]models.Member, error) {
	statuses := membership.SourceStatuses(transition)
	if len(statuses) == 0 {
		return nil, nil
	}
	return s.MembersWith(ctx, statuses, types)
}

// MembersWith lists members in any of statuses and, when given, any of types.
func (s *MembershipService) MembersWith(ctx context.Context, statuses []membership.AccountStatus, types []membership.AccountType) ([]models.Member, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Member{})
	if len(statuses) > 0 {
		query = query.Where("account_status IN ?", statusStrings(statuses))
	}
	if len(types) > 0 {
		query = query.Where("account_type IN ?", typeStrings(types))
	}

	var members []models.Member
	if err := query.Order("id ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("membership service: list members: %w", err)
	}
	return members, nil
}

// LockedBefore lists LOCKED accounts created before cutoff.
func (s *MembershipService) LockedBefore(ctx context.Context, cutoff time.Time) ([]models.Member, error) {
	ctx = ensureContext(ctx)

	var members []models.Member
	err := s.db.WithContext(ctx).
		Where("account_status = ? AND created_at < ?", string(membership.StatusLocked), cutoff.UTC()).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("membership service: list locked members: %w", err)
	}
	return members, nil
}

func statusStrings(values []membership.AccountStatus) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}
	return out
}

func typeStrings(values []membership.AccountType) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}
	return out
}
