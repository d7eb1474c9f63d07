// Package automation runs the club's calendar-driven membership jobs.
//
// A Runner evaluates the fixed triggers due on the current club day, claims
// each one in the claim store so a day is processed at most once, and fans
// out per-member pipelines of decide, persist and notify.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/clubhouse/internal/cache"
	"github.com/charlesng35/clubhouse/internal/lockout"
	"github.com/charlesng35/clubhouse/internal/notifications"
	"github.com/charlesng35/clubhouse/internal/services"
	"github.com/charlesng35/clubhouse/pkg/logger"
	"github.com/charlesng35/clubhouse/pkg/metrics"
)

const (
	defaultConcurrency = 8
	defaultClaimTTL    = 36 * time.Hour
	defaultSchedule    = "15 3 * * *"
	defaultLockedAfter = 72 * time.Hour
	defaultSendTimeout = 30 * time.Second
	claimKeyPrefix     = "automation"
)

// Dependencies are the collaborators the jobs operate on.
type Dependencies struct {
	Members  *services.MembershipService
	Events   *services.EventService
	RSVPs    *services.RSVPService
	Notifier *notifications.Notifier
	// Claims guards each (trigger, day) pair. Nil disables the guard.
	Claims cache.Store
}

func (d Dependencies) validate() error {
	switch {
	case d.Members == nil:
		return errors.New("automation: membership service is required")
	case d.Events == nil:
		return errors.New("automation: event service is required")
	case d.RSVPs == nil:
		return errors.New("automation: rsvp service is required")
	case d.Notifier == nil:
		return errors.New("automation: notifier is required")
	}
	return nil
}

// Runner executes triggers on demand or on a cron schedule.
type Runner struct {
	deps         Dependencies
	cron         *cron.Cron
	now          func() time.Time
	loc          *time.Location
	log          *zap.Logger
	concurrency  int
	guestMaxRuns int
	claimTTL     time.Duration
	lockedAfter  time.Duration
	sendTimeout  time.Duration
	schedule     string
	meetings     *services.MeetingSchedule
	recorder     RunRecorder
}

// RunRecorder receives the outcome of every trigger run that was not skipped.
type RunRecorder interface {
	RecordRun(trigger string, finishedAt time.Time, err error)
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used to decide which day it is.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the club timezone in which calendar days are evaluated.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLogger overrides the runner logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithConcurrency bounds the number of member pipelines running at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithGuestMaxRuns sets the guest lockout threshold.
func WithGuestMaxRuns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.guestMaxRuns = n
		}
	}
}

// WithClaimTTL sets how long a (trigger, day) claim is held.
func WithClaimTTL(ttl time.Duration) Option {
	return func(r *Runner) {
		if ttl > 0 {
			r.claimTTL = ttl
		}
	}
}

// WithLockedReminderAfter sets how old a LOCKED account must be before the board is reminded.
func WithLockedReminderAfter(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.lockedAfter = d
		}
	}
}

// WithSendTimeout bounds each e-mail delivery.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithSchedule overrides the cron specification used by Start.
func WithSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithMeetingSchedule enables generation of the monthly membership meetings on Jan 1.
func WithMeetingSchedule(schedule services.MeetingSchedule) Option {
	return func(r *Runner) {
		r.meetings = &schedule
	}
}

// WithRunRecorder reports finished runs to rec, e.g. a health tracker.
func WithRunRecorder(rec RunRecorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner constructs a Runner with sensible defaults.
func NewRunner(deps Dependencies, opts ...Option) (*Runner, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		deps:         deps,
		now:          time.Now,
		loc:          time.Local,
		log:          logger.WithModule("automation"),
		concurrency:  defaultConcurrency,
		guestMaxRuns: lockout.DefaultGuestMaxRuns,
		claimTTL:     defaultClaimTTL,
		lockedAfter:  defaultLockedAfter,
		sendTimeout:  defaultSendTimeout,
		schedule:     defaultSchedule,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger), cron.WithLocation(r.loc))
	}
	return r, nil
}

// Start registers the daily run with the cron scheduler and launches it.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.RunDue(context.Background())
	}); err != nil {
		return fmt.Errorf("automation: schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.log.Info("automation scheduled", zap.String("schedule", r.schedule))
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (r *Runner) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// Today returns the current time in the club timezone.
func (r *Runner) Today() time.Time {
	return r.now().In(r.loc)
}

// RunDue runs every trigger due today, annual ones before nightly.
func (r *Runner) RunDue(ctx context.Context) []*Report {
	today := r.Today()
	var due []Trigger
	for _, trigger := range AllTriggers {
		if trigger.DueOn(today) {
			due = append(due, trigger)
			continue
		}
		r.log.Info("automation trigger not due today; skipping",
			zap.String("trigger", string(trigger)),
			zap.String("day", today.Format(time.DateOnly)))
	}
	return r.runAll(ctx, due)
}

// RunAnnual runs the annual triggers due today, if any.
func (r *Runner) RunAnnual(ctx context.Context) []*Report {
	var due []Trigger
	for _, trigger := range TriggersDueOn(r.Today()) {
		if trigger.Annual() {
			due = append(due, trigger)
		}
	}
	return r.runAll(ctx, due)
}

// RunNightly runs the nightly trigger.
func (r *Runner) RunNightly(ctx context.Context) *Report {
	return r.Run(ctx, TriggerNightly)
}

func (r *Runner) runAll(ctx context.Context, triggers []Trigger) []*Report {
	reports := make([]*Report, 0, len(triggers))
	for _, trigger := range triggers {
		reports = append(reports, r.Run(ctx, trigger))
	}
	return reports
}

// Run executes one trigger for today. A trigger that does not fire today is
// rejected with ErrTriggerNotDue. Failures are logged and recorded in the
// returned report; they are never returned to the scheduler.
func (r *Runner) Run(ctx context.Context, trigger Trigger) *Report {
	if ctx == nil {
		ctx = context.Background()
	}

	today := r.Today()
	key := ClaimKey(trigger, today)
	report := newReport(trigger, today, key)
	report.Started = r.now()
	log := r.log.With(zap.String("trigger", string(trigger)), zap.String("day", today.Format(time.DateOnly)))

	jobs, err := r.jobsFor(trigger)
	if err != nil {
		report.fail(err)
		report.Finished = r.now()
		metrics.AutomationRuns.WithLabelValues(string(trigger), "failed").Inc()
		log.Error("automation trigger rejected", zap.Error(err))
		return report
	}
	if !trigger.DueOn(today) {
		report.fail(fmt.Errorf("%w: %s on %s", ErrTriggerNotDue, trigger, today.Format(time.DateOnly)))
		report.Finished = r.now()
		metrics.AutomationRuns.WithLabelValues(string(trigger), "not_due").Inc()
		log.Warn("automation trigger not due today; rejected")
		return report
	}

	if !r.claim(ctx, key, report, log) {
		report.Skipped = true
		report.Finished = r.now()
		metrics.AutomationRuns.WithLabelValues(string(trigger), "skipped").Inc()
		log.Info("automation trigger already claimed; skipping", zap.String("key", key))
		return report
	}

	log.Info("automation trigger started")
	for _, j := range jobs {
		tally := report.job(j.name)
		if err := j.run(ctx, report, tally); err != nil {
			wrapped := fmt.Errorf("%s: %w", j.name, err)
			report.update(tally, func(t *JobReport) { t.Fatal = wrapped })
			report.fail(wrapped)
			log.Error("automation job aborted", zap.String("job", j.name), zap.Error(err))
		}
	}
	report.Finished = r.now()

	if report.Fatal() {
		r.release(key, log)
	}

	result := "completed"
	if report.Err() != nil {
		result = "failed"
	}
	metrics.AutomationRuns.WithLabelValues(string(trigger), result).Inc()
	metrics.AutomationDuration.WithLabelValues(string(trigger)).Observe(report.Finished.Sub(report.Started).Seconds())
	if r.recorder != nil {
		r.recorder.RecordRun(string(trigger), report.Finished, report.Err())
	}

	totals := report.Totals()
	log.Info("automation trigger finished",
		zap.Int("candidates", totals.Candidates),
		zap.Int("applied", totals.Applied),
		zap.Int("skipped", totals.Skipped),
		zap.Int("failed", totals.Failed),
		zap.Int("notified", totals.Notified),
		zap.Int("notify_failed", totals.NotifyFailed),
		zap.Duration("duration", report.Finished.Sub(report.Started)),
	)
	return report
}

// ClaimKey returns the idempotency key of trigger on day.
func ClaimKey(trigger Trigger, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", claimKeyPrefix, trigger, day.Format(time.DateOnly))
}

// claim returns false when another run already holds the key. Claim store
// errors are logged and the run proceeds.
func (r *Runner) claim(ctx context.Context, key string, report *Report, log *zap.Logger) bool {
	if r.deps.Claims == nil {
		return true
	}
	ok, err := r.deps.Claims.Claim(ctx, key, []byte(report.Started.UTC().Format(time.RFC3339)), r.claimTTL)
	if err != nil {
		log.Warn("claim store unavailable; running without idempotency guard", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

func (r *Runner) release(key string, log *zap.Logger) {
	if r.deps.Claims == nil {
		return
	}
	// The run context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Claims.Delete(ctx, key); err != nil {
		log.Warn("failed to release automation claim", zap.String("key", key), zap.Error(err))
		return
	}
	log.Info("automation claim released after fatal failure", zap.String("key", key))
}
