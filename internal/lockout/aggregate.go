// Package lockout decides which guest members have driven to enough runs to
// lose guest privileges.
package lockout

import (
	"sort"
	"time"

	"github.com/charlesng35/clubhouse/internal/membership"
)

// DefaultGuestMaxRuns is the lockout threshold used when none is configured.
const DefaultGuestMaxRuns = 3

// Event types and RSVP statuses the aggregator inspects.
const (
	EventTypeRun = "RUN"
	RSVPGoing    = "GOING"
)

// MemberRef is the slice of a member the aggregator needs.
type MemberRef struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Status    membership.AccountStatus
	Type      membership.AccountType
}

// EventRef is the slice of an event the aggregator needs.
type EventRef struct {
	ID        string
	Title     string
	Type      string
	StartTime time.Time
}

// Attendance is one RSVP joined with its member and event.
type Attendance struct {
	Member     MemberRef
	Event      EventRef
	RSVPStatus string
	IsRider    *bool
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// CalendarYearToDate returns [Jan 1 00:00, now] in now's location.
func CalendarYearToDate(now time.Time) Window {
	return Window{
		Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()),
		End:   now,
	}
}

// CalendarYear returns the whole calendar year containing t.
func CalendarYear(t time.Time) Window {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}

// Lockout pairs a member with the runs that pushed them over the threshold.
type Lockout struct {
	Member MemberRef
	Events []EventRef
}

// Qualifies reports whether a row counts toward the guest run limit.
func Qualifies(row Attendance, window Window) bool {
	if row.Member.Type != membership.TypeGuest {
		return false
	}
	if row.RSVPStatus != RSVPGoing {
		return false
	}
	if row.IsRider != nil && *row.IsRider {
		return false
	}
	if row.Event.Type != EventTypeRun {
		return false
	}
	return window.Contains(row.Event.StartTime)
}

// Aggregate groups qualifying rows per member and returns the members whose
// distinct run count reached threshold and who are not already LIMITED.
// Output is ordered by member id; each member's events by start time.
func Aggregate(rows []Attendance, window Window, threshold int) []Lockout {
	if threshold <= 0 {
		threshold = DefaultGuestMaxRuns
	}

	type group struct {
		member MemberRef
		events map[string]EventRef
	}
	groups := make(map[string]*group)

	for _, row := range rows {
		if !Qualifies(row, window) {
			continue
		}
		g, ok := groups[row.Member.ID]
		if !ok {
			g = &group{member: row.Member, events: make(map[string]EventRef)}
			groups[row.Member.ID] = g
		}
		g.events[row.Event.ID] = row.Event
	}

	var out []Lockout
	for _, g := range groups {
		if len(g.events) < threshold || g.member.Status == membership.StatusLimited {
			continue
		}
		events := make([]EventRef, 0, len(g.events))
		for _, event := range g.events {
			events = append(events, event)
		}
		sort.Slice(events, func(i, j int) bool {
			if events[i].StartTime.Equal(events[j].StartTime) {
				return events[i].ID < events[j].ID
			}
			return events[i].StartTime.Before(events[j].StartTime)
		})
		out = append(out, Lockout{Member: g.member, Events: events})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Member.ID < out[j].Member.ID
	})
	return out
}

// CountQualifying returns the number of distinct qualifying events for memberID.
func CountQualifying(rows []Attendance, window Window, memberID string) int {
	seen := make(map[string]struct{})
	for _, row := range rows {
		if row.Member.ID != memberID || !Qualifies(row, window) {
			continue
		}
		seen[row.Event.ID] = struct{}{}
	}
	return len(seen)
}

// EventTitles lists the titles of a lockout's events in order.
func (l Lockout) EventTitles() []string {
	titles := make([]string, 0, len(l.Events))
	for _, event := range l.Events {
		titles = append(titles, event.Title)
	}
	return titles
}
