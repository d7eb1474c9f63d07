package services

import (
	"fmt"
	"strings"
	"time"
)

// MeetingSchedule describes the recurring monthly membership meeting.
type MeetingSchedule struct {
	Title    string
	Location string
	Weekday  time.Weekday
	// Week is the 1-based occurrence of Weekday in the month; -1 means the last one.
	Week     int
	Start    time.Duration
	End      time.Duration
	Timezone *time.Location
}

// MeetingSlot is one concrete meeting occurrence.
type MeetingSlot struct {
	Start time.Time
	End   time.Time
}

// ParseMeetingSchedule builds a schedule from configuration strings such as
// "thursday" and "19:00".
func ParseMeetingSchedule(title, location, weekday string, week int, start, end string, loc *time.Location) (MeetingSchedule, error) {
	day, err := parseWeekday(weekday)
	if err != nil {
		return MeetingSchedule{}, err
	}
	startOffset, err := parseClock(start)
	if err != nil {
		return MeetingSchedule{}, fmt.Errorf("meeting schedule: start: %w", err)
	}
	endOffset, err := parseClock(end)
	if err != nil {
		return MeetingSchedule{}, fmt.Errorf("meeting schedule: end: %w", err)
	}
	if endOffset <= startOffset {
		return MeetingSchedule{}, fmt.Errorf("meeting schedule: end %s must be after start %s", end, start)
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(title) == "" {
		title = "General Membership Meeting"
	}

	schedule := MeetingSchedule{
		Title:    strings.TrimSpace(title),
		Location: strings.TrimSpace(location),
		Weekday:  day,
		Week:     week,
		Start:    startOffset,
		End:      endOffset,
		Timezone: loc,
	}
	if _, err := schedule.Slots(2000); err != nil {
		return MeetingSchedule{}, err
	}
	return schedule, nil
}

// Slots returns the twelve meetings of year.
func (m MeetingSchedule) Slots(year int) ([]MeetingSlot, error) {
	if m.Week == 0 || m.Week < -1 || m.Week > 4 {
		return nil, fmt.Errorf("meeting schedule: week must be 1-4 or -1, got %d", m.Week)
	}
	loc := m.Timezone
	if loc == nil {
		loc = time.UTC
	}

	slots := make([]MeetingSlot, 0, 12)
	for month := time.January; month <= time.December; month++ {
		day := nthWeekday(year, month, m.Weekday, m.Week, loc)
		midnight := time.Date(year, month, day, 0, 0, 0, 0, loc)
		slots = append(slots, MeetingSlot{
			Start: wallClock(midnight, m.Start),
			End:   wallClock(midnight, m.End),
		})
	}
	return slots, nil
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, week int, loc *time.Location) int {
	if week == -1 {
		last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
		offset := (int(last.Weekday()) - int(weekday) + 7) % 7
		return last.Day() - offset
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return 1 + offset + (week-1)*7
}

// wallClock adds a time-of-day to midnight without drifting across DST changes.
func wallClock(midnight time.Time, offset time.Duration) time.Time {
	hours := int(offset / time.Hour)
	minutes := int((offset % time.Hour) / time.Minute)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), hours, minutes, 0, 0, midnight.Location())
}

func parseWeekday(value string) (time.Weekday, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if value == name || (len(value) >= 3 && strings.HasPrefix(name, value)) {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("meeting schedule: unknown weekday %q", value)
}

func parseClock(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}
