// Package bootstrap wires the long-lived collaborators shared by the server
// and the automation command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/app"
	"github.com/charlesng35/clubhouse/internal/app/automation"
	"github.com/charlesng35/clubhouse/internal/auditlog"
	"github.com/charlesng35/clubhouse/internal/cache"
	"github.com/charlesng35/clubhouse/internal/database"
	"github.com/charlesng35/clubhouse/internal/monitoring"
	"github.com/charlesng35/clubhouse/internal/monitoring/checks"
	"github.com/charlesng35/clubhouse/internal/notifications"
	"github.com/charlesng35/clubhouse/internal/services"
	"github.com/charlesng35/clubhouse/pkg/logger"
	"github.com/charlesng35/clubhouse/pkg/mail"
)

// NightlyTrigger is the trigger whose freshness the automation probe watches.
const NightlyTrigger = string(automation.TriggerNightly)

// Runtime bundles the database, claim store, services and notifier.
type Runtime struct {
	Config   *app.Config
	Location *time.Location
	DB       *gorm.DB
	// Redis is nil when Redis is disabled or unreachable.
	Redis    *cache.RedisStore
	Claims   cache.Store
	Factory  *auditlog.Factory
	Members  *services.MembershipService
	Logs     *services.LogService
	Events   *services.EventService
	RSVPs    *services.RSVPService
	Notifier *notifications.Notifier
	Tracker  *monitoring.RunTracker

	mailer mail.Mailer
	now    func() time.Time
	log    *zap.Logger
}

// Option customises Open.
type Option func(*Runtime)

// WithClock overrides the clock handed to services and the runner.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMailer replaces the SMTP mailer, primarily for testing.
func WithMailer(m mail.Mailer) Option {
	return func(r *Runtime) {
		if m != nil {
			r.mailer = m
		}
	}
}

// LoadConfig resolves path to a directory and loads the configuration from it.
// An empty path uses the default search locations.
func LoadConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return app.LoadConfig(path)
	}
	return app.LoadConfig(filepath.Dir(path))
}

// Open connects to the database and Redis and constructs every service.
// Resources acquired before a failure are released.
func Open(ctx context.Context, cfg *app.Config, opts ...Option) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is nil")
	}

	rt = &Runtime{
		Config:  cfg,
		Tracker: monitoring.NewRunTracker(),
		now:     time.Now,
		log:     logger.WithModule("bootstrap"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if rt.Location, err = cfg.Club.Location(); err != nil {
		return rt, err
	}

	if rt.DB, err = openDatabase(cfg); err != nil {
		return rt, err
	}
	rt.Claims = cache.NewDatabaseStore(rt.DB)

	if cfg.Cache.Redis.Enabled {
		client, redisErr := cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			rt.log.Warn("redis unavailable; claims fall back to the database", zap.Error(redisErr))
		} else {
			rt.Redis = cache.NewRedisStore(client)
			rt.Claims = rt.Redis
			rt.log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	rt.Factory = auditlog.NewFactory(rt.now)
	if rt.Members, err = services.NewMembershipService(rt.DB, rt.Factory, services.WithMembershipClock(rt.now)); err != nil {
		return rt, fmt.Errorf("initialise membership service: %w", err)
	}
	if rt.Logs, err = services.NewLogService(rt.DB, rt.Factory); err != nil {
		return rt, fmt.Errorf("initialise log service: %w", err)
	}
	if rt.Events, err = services.NewEventService(rt.DB); err != nil {
		return rt, fmt.Errorf("initialise event service: %w", err)
	}
	if rt.RSVPs, err = services.NewRSVPService(rt.DB, cfg.Membership.GuestMaxRuns, services.WithRSVPLocation(rt.Location)); err != nil {
		return rt, fmt.Errorf("initialise rsvp service: %w", err)
	}

	if rt.mailer == nil {
		if rt.mailer, err = mail.NewSMTPMailer(cfg.Email.SMTPSettings()); err != nil {
			return rt, fmt.Errorf("initialise mailer: %w", err)
		}
	}
	if rt.Notifier, err = notifications.New(rt.mailer, NotifierConfig(cfg, rt.Location)); err != nil {
		return rt, fmt.Errorf("initialise notifier: %w", err)
	}
	return rt, nil
}

// NotifierConfig derives the notification settings from the club configuration.
func NotifierConfig(cfg *app.Config, loc *time.Location) notifications.Config {
	from := strings.TrimSpace(cfg.Email.Addresses.NoReply)
	if from == "" {
		from = strings.TrimSpace(cfg.Email.SMTP.From)
	}
	return notifications.Config{
		ClubName:      cfg.Club.Name,
		SubjectPrefix: cfg.Club.ShortName,
		BaseURL:       cfg.Club.BaseURL,
		From:          from,
		ReplyTo:       cfg.Email.Addresses.Secretary,
		Board:         cfg.Email.Addresses.Board,
		Location:      loc,
	}
}

// NewRunner builds the automation runner from the configuration. Finished runs
// are reported to the runtime tracker.
func (r *Runtime) NewRunner(opts ...automation.Option) (*automation.Runner, error) {
	cfg := r.Config
	meetings, err := services.ParseMeetingSchedule(
		cfg.Club.Meeting.Title,
		cfg.Club.Meeting.Location,
		cfg.Club.Meeting.Weekday,
		cfg.Club.Meeting.Week,
		cfg.Club.Meeting.StartTime,
		cfg.Club.Meeting.EndTime,
		r.Location,
	)
	if err != nil {
		return nil, fmt.Errorf("parse meeting schedule: %w", err)
	}

	base := []automation.Option{
		automation.WithNow(r.now),
		automation.WithLocation(r.Location),
		automation.WithConcurrency(cfg.Automation.Concurrency),
		automation.WithGuestMaxRuns(cfg.Membership.GuestMaxRuns),
		automation.WithClaimTTL(cfg.Automation.ClaimTTL),
		automation.WithLockedReminderAfter(cfg.Membership.LockedReminderAfter),
		automation.WithSendTimeout(cfg.Automation.SendTimeout),
		automation.WithSchedule(cfg.Automation.Schedule),
		automation.WithMeetingSchedule(meetings),
		automation.WithRunRecorder(r.Tracker),
	}
	return automation.NewRunner(automation.Dependencies{
		Members:  r.Members,
		Events:   r.Events,
		RSVPs:    r.RSVPs,
		Notifier: r.Notifier,
		Claims:   r.Claims,
	}, append(base, opts...)...)
}

// HealthManager registers the liveness and readiness probes for this runtime.
// tracker is nil when automation does not run in-process.
func (r *Runtime) HealthManager(tracker *monitoring.RunTracker) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(checks.Database(r.DB, 0))

	manager.RegisterReadiness(checks.Database(r.DB, 0))
	var pinger checks.RedisPinger
	if r.Redis != nil {
		pinger = r.Redis
	}
	manager.RegisterReadiness(checks.Redis(pinger, r.Config.Cache.Redis.Enabled, 0))
	manager.RegisterReadiness(checks.Automation(tracker, NightlyTrigger, 0, r.now))
	return manager
}

// Close releases Redis and the database. It is safe on a partially opened runtime.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.Redis != nil {
		err = multierr.Append(err, r.Redis.Close())
		r.Redis = nil
	}
	if r.DB != nil {
		if sqlDB, dbErr := r.DB.DB(); dbErr != nil {
			err = multierr.Append(err, dbErr)
		} else {
			err = multierr.Append(err, sqlDB.Close())
		}
		r.DB = nil
	}
	if err != nil {
		r.log.Warn("runtime shutdown", zap.Error(err))
	}
	return err
}

func openDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
