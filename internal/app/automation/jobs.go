package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/clubhouse/internal/lockout"
	"github.com/charlesng35/clubhouse/internal/membership"
	"github.com/charlesng35/clubhouse/internal/models"
	"github.com/charlesng35/clubhouse/internal/notifications"
	"github.com/charlesng35/clubhouse/internal/rsvp"
	"github.com/charlesng35/clubhouse/internal/services"
)

// Job names as they appear in reports and logs.
const (
	JobBadger             = "badger"
	JobDeactivate         = "deactivate"
	JobCleanSlate         = "clean-slate"
	JobMeetings           = "meetings"
	JobDuesReminder       = "dues-reminder"
	JobDelinquentize      = "delinquentize"
	JobEventReminders     = "event-reminders"
	JobRunReportReminders = "run-report-reminders"
	JobGuestLockout       = "guest-lockout"
	JobLockedAccounts     = "locked-accounts"
)

var duesPayingTypes = []membership.AccountType{membership.TypeFull, membership.TypeAssociate}

type job struct {
	name string
	run  func(ctx context.Context, report *Report, tally *JobReport) error
}

func (r *Runner) jobsFor(trigger Trigger) ([]job, error) {
	switch trigger {
	case TriggerJan1:
		jobs := []job{
			{name: JobBadger, run: r.badger},
			{name: JobDeactivate, run: r.deactivate},
			{name: JobCleanSlate, run: r.cleanSlate},
		}
		if r.meetings != nil {
			jobs = append(jobs, job{name: JobMeetings, run: r.generateMeetings})
		}
		return jobs, nil
	case TriggerMar1:
		return []job{{name: JobDuesReminder, run: r.duesReminder}}, nil
	case TriggerApr1:
		return []job{{name: JobDelinquentize, run: r.delinquentize}}, nil
	case TriggerNightly:
		return []job{
			{name: JobEventReminders, run: r.eventReminders},
			{name: JobRunReportReminders, run: r.runReportReminders},
			{name: JobGuestLockout, run: r.guestLockout},
			{name: JobLockedAccounts, run: r.lockedAccounts},
		}, nil
	default:
		return nil, fmt.Errorf("automation: unknown trigger %q", trigger)
	}
}

// each runs fn for every item with bounded parallelism and waits for all of
// them. fn reports its own failures; one item never cancels another.
func each[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

// changeSet collects the members a job moved, for the board summary.
type changeSet struct {
	mu      sync.Mutex
	members []models.Member
}

func (c *changeSet) add(member models.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = append(c.members, member)
}

func (c *changeSet) recipients() []notifications.Recipient {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.Slice(c.members, func(i, j int) bool { return c.members[i].ID < c.members[j].ID })
	out := make([]notifications.Recipient, 0, len(c.members))
	for _, member := range c.members {
		out = append(out, notifications.RecipientFromMember(member))
	}
	return out
}

// transitionJob describes a status sweep over the candidates of one transition.
type transitionJob struct {
	transition membership.Transition
	types      []membership.AccountType
	// notify is sent to each member whose status changed.
	notify func(ctx context.Context, member notifications.Recipient) error
	// board, when set, receives every changed member once all pipelines settled.
	board func(ctx context.Context, changed []notifications.Recipient) error
}

func (r *Runner) sweep(ctx context.Context, report *Report, tally *JobReport, spec transitionJob) error {
	candidates, err := r.deps.Members.Candidates(ctx, spec.transition, spec.types...)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	report.update(tally, func(t *JobReport) { t.Candidates = len(candidates) })

	year := r.Today().Year()
	changed := &changeSet{}
	each(ctx, r.concurrency, candidates, func(ctx context.Context, candidate models.Member) {
		member, ok := r.apply(ctx, report, tally, services.TransitionRequest{
			MemberID:   candidate.ID,
			Transition: spec.transition,
			DuesYear:   year,
		})
		if !ok {
			return
		}
		changed.add(*member)
		if spec.notify != nil {
			recipient := notifications.RecipientFromMember(*member)
			r.notify(ctx, report, tally, member.ID, func(ctx context.Context) error {
				return spec.notify(ctx, recipient)
			})
		}
	})

	if recipients := changed.recipients(); spec.board != nil && len(recipients) > 0 {
		r.notify(ctx, report, tally, "board", func(ctx context.Context) error {
			return spec.board(ctx, recipients)
		})
	}
	return nil
}

// apply runs the decide and persist steps of one member pipeline. It
// returns the updated member when the status changed.
func (r *Runner) apply(ctx context.Context, report *Report, tally *JobReport, req services.TransitionRequest) (*models.Member, bool) {
	result, err := r.deps.Members.ApplyTransition(ctx, req)
	switch {
	case errors.Is(err, services.ErrStatusChanged):
		report.update(tally, func(t *JobReport) { t.Skipped++ })
		r.log.Debug("member status changed concurrently; skipping",
			zap.String("job", tally.Name), zap.String("member_id", req.MemberID))
		return nil, false
	case err != nil:
		report.update(tally, func(t *JobReport) { t.Failed++ })
		report.fail(fmt.Errorf("%s: member %s: %w", tally.Name, req.MemberID, err))
		r.log.Error("membership transition failed",
			zap.String("job", tally.Name), zap.String("member_id", req.MemberID), zap.Error(err))
		return nil, false
	case !result.Applied:
		report.update(tally, func(t *JobReport) { t.Skipped++ })
		return nil, false
	}
	report.update(tally, func(t *JobReport) { t.Applied++ })
	return &result.Member, true
}

// notify sends one message. A failure is recorded and logged; it never
// undoes the state change that preceded it.
func (r *Runner) notify(ctx context.Context, report *Report, tally *JobReport, recipient string, send func(context.Context) error) {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	if err := send(sendCtx); err != nil {
		report.update(tally, func(t *JobReport) { t.NotifyFailed++ })
		report.fail(fmt.Errorf("%s: notify %s: %w", tally.Name, recipient, err))
		r.log.Warn("notification failed",
			zap.String("job", tally.Name), zap.String("recipient", recipient), zap.Error(err))
		return
	}
	report.update(tally, func(t *JobReport) { t.Notified++ })
}

func (r *Runner) badger(ctx context.Context, report *Report, tally *JobReport) error {
	year := r.Today().Year()
	return r.sweep(ctx, report, tally, transitionJob{
		transition: membership.TransitionBadger,
		types:      duesPayingTypes,
		notify: func(ctx context.Context, member notifications.Recipient) error {
			return r.deps.Notifier.PastDue(ctx, member, year)
		},
	})
}

func (r *Runner) deactivate(ctx context.Context, report *Report, tally *JobReport) error {
	return r.sweep(ctx, report, tally, transitionJob{
		transition: membership.TransitionDeactivate,
		types:      duesPayingTypes,
		notify:     r.deps.Notifier.Inactive,
		board:      r.deps.Notifier.BoardInactive,
	})
}

func (r *Runner) cleanSlate(ctx context.Context, report *Report, tally *JobReport) error {
	year := r.Today().Year()
	return r.sweep(ctx, report, tally, transitionJob{
		transition: membership.TransitionCleanSlate,
		types:      []membership.AccountType{membership.TypeGuest},
		notify: func(ctx context.Context, member notifications.Recipient) error {
			return r.deps.Notifier.CleanSlate(ctx, member, year)
		},
	})
}

func (r *Runner) delinquentize(ctx context.Context, report *Report, tally *JobReport) error {
	year := r.Today().Year()
	return r.sweep(ctx, report, tally, transitionJob{
		transition: membership.TransitionDelinquentize,
		notify: func(ctx context.Context, member notifications.Recipient) error {
			return r.deps.Notifier.Delinquent(ctx, member, year)
		},
		board: func(ctx context.Context, changed []notifications.Recipient) error {
			return r.deps.Notifier.BoardDelinquent(ctx, changed, year)
		},
	})
}

func (r *Runner) generateMeetings(ctx context.Context, report *Report, tally *JobReport) error {
	year := r.Today().Year()
	created, err := r.deps.Events.GenerateMonthlyMeetings(ctx, year, *r.meetings)
	if err != nil {
		return fmt.Errorf("generate meetings for %d: %w", year, err)
	}
	report.update(tally, func(t *JobReport) {
		t.Candidates = 12
		t.Applied = created
		t.Skipped = 12 - created
	})
	return nil
}

func (r *Runner) duesReminder(ctx context.Context, report *Report, tally *JobReport) error {
	members, err := r.deps.Members.MembersWith(ctx, []membership.AccountStatus{membership.StatusPastDue}, duesPayingTypes)
	if err != nil {
		return fmt.Errorf("load past-due members: %w", err)
	}
	report.update(tally, func(t *JobReport) { t.Candidates = len(members) })

	year := r.Today().Year()
	each(ctx, r.concurrency, members, func(ctx context.Context, member models.Member) {
		if member.DuesPaidYear >= year {
			report.update(tally, func(t *JobReport) { t.Skipped++ })
			return
		}
		recipient := notifications.RecipientFromMember(member)
		r.notify(ctx, report, tally, member.ID, func(ctx context.Context) error {
			return r.deps.Notifier.DuesReminder(ctx, recipient, year)
		})
	})
	return nil
}

// eventReminders tells everybody going to tomorrow's runs about them.
func (r *Runner) eventReminders(ctx context.Context, report *Report, tally *JobReport) error {
	from := startOfDay(r.Today()).AddDate(0, 0, 1)
	events, err := r.deps.Events.StartingBetween(ctx, models.EventTypeRun, from, from.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("load tomorrow's runs: %w", err)
	}

	type reminder struct {
		member notifications.Recipient
		event  notifications.EventSummary
	}
	var reminders []reminder
	for _, event := range events {
		attendees, err := r.deps.RSVPs.ForEvent(ctx, event.ID, rsvp.StatusGoing)
		if err != nil {
			return fmt.Errorf("load attendees of %s: %w", event.ID, err)
		}
		summary := r.deps.Notifier.Summarise(event)
		for _, attendee := range attendees {
			if attendee.Member == nil {
				continue
			}
			reminders = append(reminders, reminder{member: notifications.RecipientFromMember(*attendee.Member), event: summary})
		}
	}
	report.update(tally, func(t *JobReport) { t.Candidates = len(reminders) })

	each(ctx, r.concurrency, reminders, func(ctx context.Context, item reminder) {
		r.notify(ctx, report, tally, item.member.ID, func(ctx context.Context) error {
			return r.deps.Notifier.RunReminder(ctx, item.member, item.event)
		})
	})
	return nil
}

// runReportReminders asks the host of each run that ended yesterday for a trip report.
func (r *Runner) runReportReminders(ctx context.Context, report *Report, tally *JobReport) error {
	today := startOfDay(r.Today())
	events, err := r.deps.Events.EndedBetween(ctx, models.EventTypeRun, today.AddDate(0, 0, -1), today)
	if err != nil {
		return fmt.Errorf("load yesterday's runs: %w", err)
	}
	report.update(tally, func(t *JobReport) { t.Candidates = len(events) })

	each(ctx, r.concurrency, events, func(ctx context.Context, event models.Event) {
		if event.Host == nil {
			report.update(tally, func(t *JobReport) { t.Skipped++ })
			return
		}
		host := notifications.RecipientFromMember(*event.Host)
		summary := r.deps.Notifier.Summarise(event)
		r.notify(ctx, report, tally, host.ID, func(ctx context.Context) error {
			return r.deps.Notifier.RunReportReminder(ctx, host, summary)
		})
	})
	return nil
}

// guestLockout restricts guests who drove to too many runs this year.
func (r *Runner) guestLockout(ctx context.Context, report *Report, tally *JobReport) error {
	window := lockout.CalendarYearToDate(r.Today())
	rows, err := r.deps.Events.AttendanceRows(ctx, window)
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}
	lockouts := lockout.Aggregate(rows, window, r.guestMaxRuns)
	report.update(tally, func(t *JobReport) { t.Candidates = len(lockouts) })

	var (
		mu         sync.Mutex
		restricted []notifications.GuestLockout
	)
	each(ctx, r.concurrency, lockouts, func(ctx context.Context, l lockout.Lockout) {
		member, ok := r.apply(ctx, report, tally, services.TransitionRequest{
			MemberID:   l.Member.ID,
			Transition: membership.TransitionGuestLockout,
			Guard: membership.Guard{
				QualifyingRuns: len(l.Events),
				GuestMaxRuns:   r.guestMaxRuns,
			},
			Events: l.EventTitles(),
		})
		if !ok {
			return
		}

		entry := notifications.GuestLockout{
			Member: notifications.RecipientFromMember(*member),
			Events: r.summariseRefs(l.Events),
		}
		mu.Lock()
		restricted = append(restricted, entry)
		mu.Unlock()

		r.notify(ctx, report, tally, member.ID, func(ctx context.Context) error {
			return r.deps.Notifier.GuestRestricted(ctx, entry.Member, entry.Events, r.guestMaxRuns)
		})
	})

	if len(restricted) == 0 {
		return nil
	}
	sort.Slice(restricted, func(i, j int) bool { return restricted[i].Member.ID < restricted[j].Member.ID })
	r.notify(ctx, report, tally, "board", func(ctx context.Context) error {
		return r.deps.Notifier.BoardGuestRestricted(ctx, restricted, r.guestMaxRuns)
	})
	return nil
}

// lockedAccounts reminds the board of signups still awaiting approval.
func (r *Runner) lockedAccounts(ctx context.Context, report *Report, tally *JobReport) error {
	members, err := r.deps.Members.LockedBefore(ctx, r.now().Add(-r.lockedAfter))
	if err != nil {
		return fmt.Errorf("load locked accounts: %w", err)
	}
	report.update(tally, func(t *JobReport) { t.Candidates = len(members) })
	if len(members) == 0 {
		return nil
	}

	recipients := make([]notifications.Recipient, 0, len(members))
	for _, member := range members {
		recipients = append(recipients, notifications.RecipientFromMember(member))
	}
	days := int(r.lockedAfter / (24 * time.Hour))
	r.notify(ctx, report, tally, "board", func(ctx context.Context) error {
		return r.deps.Notifier.BoardLockedAccounts(ctx, recipients, days)
	})
	return nil
}

func (r *Runner) summariseRefs(events []lockout.EventRef) []notifications.EventSummary {
	out := make([]notifications.EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, r.deps.Notifier.Summarise(models.Event{
			BaseModel: models.BaseModel{ID: e.ID},
			Title:     e.Title,
			Type:      e.Type,
			StartTime: e.StartTime,
		}))
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
