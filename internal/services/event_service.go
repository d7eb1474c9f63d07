package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/lockout"
	"github.com/charlesng35/clubhouse/internal/models"
	"github.com/charlesng35/clubhouse/internal/rsvp"
)

const (
	defaultUpcomingCount = 10
	maxUpcomingCount     = 100
)

// EventService queries and generates club events.
type EventService struct {
	db *gorm.DB
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	return &EventService{db: db}, nil
}

// Upcoming returns up to count events starting between now and the end of
// now's calendar year, soonest first.
func (s *EventService) Upcoming(ctx context.Context, now time.Time, count int) ([]models.Event, error) {
	ctx = ensureContext(ctx)

	switch {
	case count <= 0:
		count = defaultUpcomingCount
	case count > maxUpcomingCount:
		count = maxUpcomingCount
	}
	yearEnd := lockout.CalendarYear(now).End

	var events []models.Event
	err := s.db.WithContext(ctx).
		Preload("Host").
		Where("start_time >= ? AND start_time <= ?", now.UTC(), yearEnd.UTC()).
		Order("start_time ASC").
		Limit(count).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("event service: upcoming events: %w", err)
	}
	return events, nil
}

// StartingBetween lists events of eventType whose start falls in [from, to).
func (s *EventService) StartingBetween(ctx context.Context, eventType string, from, to time.Time) ([]models.Event, error) {
	return s.between(ctx, "start_time", eventType, from, to)
}

// EndedBetween lists events of eventType whose end falls in [from, to).
func (s *EventService) EndedBetween(ctx context.Context, eventType string, from, to time.Time) ([]models.Event, error) {
	return s.between(ctx, "end_time", eventType, from, to)
}

func (s *EventService) between(ctx context.Context, column, eventType string, from, to time.Time) ([]models.Event, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Preload("Host").
		Where(column+" >= ? AND "+column+" < ?", from.UTC(), to.UTC())
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		query = query.Where("type = ?", eventType)
	}

	var events []models.Event
	if err := query.Order(column + " ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event service: events by %s: %w", column, err)
	}
	return events, nil
}

// AttendanceRows returns every GOING RSVP on a RUN event starting inside
// window, joined with its member and event.
func (s *EventService) AttendanceRows(ctx context.Context, window lockout.Window) ([]lockout.Attendance, error) {
	ctx = ensureContext(ctx)

	var rsvps []models.RSVP
	err := s.db.WithContext(ctx).
		Preload("Member").
		Preload("Event").
		Joins("JOIN events ON events.id = rsvps.event_id").
		Where("rsvps.status = ? AND events.type = ?", string(rsvp.StatusGoing), models.EventTypeRun).
		Where("events.start_time >= ? AND events.start_time <= ?", window.Start.UTC(), window.End.UTC()).
		Find(&rsvps).Error
	if err != nil {
		return nil, fmt.Errorf("event service: attendance rows: %w", err)
	}

	rows := make([]lockout.Attendance, 0, len(rsvps))
	for _, r := range rsvps {
		if r.Member == nil || r.Event == nil {
			continue
		}
		isRider := r.IsRider
		rows = append(rows, lockout.Attendance{
			Member: lockout.MemberRef{
				ID:        r.Member.ID,
				FirstName: r.Member.FirstName,
				LastName:  r.Member.LastName,
				Email:     r.Member.Email,
				Status:    r.Member.AccountStatus,
				Type:      r.Member.AccountType,
			},
			Event: lockout.EventRef{
				ID:        r.Event.ID,
				Title:     r.Event.Title,
				Type:      r.Event.Type,
				StartTime: r.Event.StartTime.In(window.Start.Location()),
			},
			RSVPStatus: r.Status,
			IsRider:    &isRider,
		})
	}
	return rows, nil
}

// GenerateMonthlyMeetings creates the recurring membership meetings of year.
// A meeting that already exists at the computed start is left alone, so the
// call is safe to repeat.
func (s *EventService) GenerateMonthlyMeetings(ctx context.Context, year int, schedule MeetingSchedule) (int, error) {
	ctx = ensureContext(ctx)

	slots, err := schedule.Slots(year)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, slot := range slots {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.Event{}).
			Where("type = ? AND start_time = ?", models.EventTypeMeeting, slot.Start.UTC()).
			Count(&count).Error
		if err != nil {
			return created, fmt.Errorf("event service: check meeting %s: %w", slot.Start.Format(time.DateOnly), err)
		}
		if count > 0 {
			continue
		}

		event := models.Event{
			Title:     schedule.Title,
			Type:      models.EventTypeMeeting,
			StartTime: slot.Start.UTC(),
			EndTime:   slot.End.UTC(),
			Address:   schedule.Location,
		}
		if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
			return created, fmt.Errorf("event service: create meeting %s: %w", slot.Start.Format(time.DateOnly), err)
		}
		created++
	}
	return created, nil
}
