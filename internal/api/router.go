package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/app"
	"github.com/charlesng35/clubhouse/internal/auditlog"
	iauth "github.com/charlesng35/clubhouse/internal/auth"
	"github.com/charlesng35/clubhouse/internal/middleware"
	"github.com/charlesng35/clubhouse/internal/monitoring"
	"github.com/charlesng35/clubhouse/internal/services"
)

const (
	defaultRateLimit  = 100
	defaultRateWindow = time.Minute
)

// RouterOption customises NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	now    func() time.Time
	health *monitoring.HealthManager
}

// WithClock overrides the clock used for audit records and calendar queries.
func WithClock(now func() time.Time) RouterOption {
	return func(o *routerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHealth serves the probes registered on manager.
func WithHealth(manager *monitoring.HealthManager) RouterOption {
	return func(o *routerOptions) {
		o.health = manager
	}
}

// NewRouter builds the Gin engine, wires middleware and registers the member API.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, opts ...RouterOption) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	options := routerOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	loc, err := cfg.Club.Location()
	if err != nil {
		return nil, err
	}

	factory := auditlog.NewFactory(options.now)
	members, err := services.NewMembershipService(db, factory, services.WithMembershipClock(options.now))
	if err != nil {
		return nil, err
	}
	logs, err := services.NewLogService(db, factory)
	if err != nil {
		return nil, err
	}
	events, err := services.NewEventService(db)
	if err != nil {
		return nil, err
	}
	rsvps, err := services.NewRSVPService(db, cfg.Membership.GuestMaxRuns, services.WithRSVPLocation(loc))
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, options.health)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))
	api.Use(middleware.RateLimit(defaultRateLimit, defaultRateWindow))

	if err := registerEventRoutes(api, events, rsvps, loc, options.now); err != nil {
		return nil, err
	}
	if err := registerMemberRoutes(api, members, logs); err != nil {
		return nil, err
	}
	if err := registerActivityRoutes(api, logs); err != nil {
		return nil, err
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
