package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/auditlog"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
	apperrors "github.com/charlesng35/clubhouse/pkg/errors"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// ManualLogEntry is an officer-authored membership-log record.
type ManualLogEntry struct {
	MemberID string
	Actor    Actor
	Code     membership.MessageCode
	Message  string
	// Time is the moment the event happened. Zero means now.
	Time time.Time
}

// LogService persists audit records and serves membership history.
type LogService struct {
	db      *gorm.DB
	factory *auditlog.Factory
}

// NewLogService constructs a LogService.
func NewLogService(db *gorm.DB, factory *auditlog.Factory) (*LogService, error) {
	if db == nil {
		return nil, errors.New("log service: db is required")
	}
	if factory == nil {
		factory = auditlog.NewFactory(nil)
	}
	return &LogService{db: db, factory: factory}, nil
}

// LogEntry stores a manual membership-log entry written by an officer or admin.
func (s *LogService) LogEntry(ctx context.Context, entry ManualLogEntry) (*models.MembershipLogItem, error) {
	ctx = ensureContext(ctx)

	if !entry.Actor.Role.IsAdministrative() {
		return nil, apperrors.ErrForbidden
	}
	memberID := strings.TrimSpace(entry.MemberID)
	if memberID == "" {
		return nil, apperrors.NewBadRequest("member id is required")
	}
	message := strings.TrimSpace(entry.Message)
	if message == "" {
		return nil, apperrors.NewBadRequest("message is required")
	}
	if !membership.IsMembershipCode(entry.Code) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown membership log code %q", entry.Code))
	}

	if err := s.db.WithContext(ctx).Select("id").First(&models.Member{}, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("log service: load member: %w", err)
	}

	actorID := entry.Actor.ID
	record := s.factory.Entry(memberID, entry.Code, message, &actorID)
	if !entry.Time.IsZero() {
		record.Time = entry.Time.UTC()
	}

	item, err := membershipLogItem(record)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("log service: create entry: %w", err)
	}
	return &item, nil
}

// ListMembershipLog returns a member's membership history, newest first.
func (s *LogService) ListMembershipLog(ctx context.Context, memberID string, limit int) ([]models.MembershipLogItem, error) {
	ctx = ensureContext(ctx)

	var items []models.MembershipLogItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(memberID)).
		Order("time DESC").
		Limit(clampLimit(limit)).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("log service: list membership log: %w", err)
	}
	return items, nil
}

// ListActivity returns the public activity feed, newest first. A non-empty
// code narrows the feed to one activity code.
func (s *LogService) ListActivity(ctx context.Context, code membership.MessageCode, limit int) ([]models.ActivityLogItem, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("time DESC").Limit(clampLimit(limit))
	if code != "" {
		if !membership.IsActivityCode(code) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown activity code %q", code))
		}
		query = query.Where("message_code = ?", string(code))
	}

	var items []models.ActivityLogItem
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("log service: list activity: %w", err)
	}
	return items, nil
}

func membershipLogItem(record auditlog.Record) (models.MembershipLogItem, error) {
	if err := record.Validate(); err != nil {
		return models.MembershipLogItem{}, err
	}

	var metadata datatypes.JSON
	if len(record.Metadata) > 0 {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return models.MembershipLogItem{}, fmt.Errorf("log service: marshal metadata: %w", err)
		}
		metadata = datatypes.JSON(encoded)
	}

	return models.MembershipLogItem{
		Time:        record.Time,
		Message:     record.Message,
		MessageCode: string(record.MessageCode),
		UserID:      record.UserID,
		LoggerID:    record.LoggerID,
		Metadata:    metadata,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLogLimit
	case limit > maxLogLimit:
		return maxLogLimit
	default:
		return limit
	}
}
