package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/clubhouse/internal/api"
	"github.com/charlesng35/clubhouse/internal/app"
	"github.com/charlesng35/clubhouse/internal/app/automation"
	"github.com/charlesng35/clubhouse/internal/app/bootstrap"
	"github.com/charlesng35/clubhouse/internal/app/maintenance"
	iauth "github.com/charlesng35/clubhouse/internal/auth"
	"github.com/charlesng35/clubhouse/internal/monitoring"
)

// serverStack bundles long-lived services used by the HTTP server.
type serverStack struct {
	Runtime *bootstrap.Runtime
	Runner  *automation.Runner
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapServer opens the runtime, starts background jobs and builds the router.
func bootstrapServer(ctx context.Context, cfg *app.Config, log *zap.Logger, opts ...bootstrap.Option) (*serverStack, error) {
	stack := &serverStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var err error
	stack.Runtime, err = bootstrap.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Runtime.DB, maintenance.WithCacheSchedule(cfg.Automation.CleanupSpec))
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	var tracker *monitoring.RunTracker
	if cfg.Automation.Embedded {
		stack.Runner, err = stack.Runtime.NewRunner()
		if err != nil {
			return nil, fmt.Errorf("initialise automation: %w", err)
		}
		if err := stack.Runner.Start(); err != nil {
			return nil, err
		}
		tracker = stack.Runtime.Tracker
	}

	stack.Router, err = api.NewRouter(stack.Runtime.DB, jwtSvc, cfg,
		api.WithHealth(stack.Runtime.HealthManager(tracker)),
	)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources.
func (s *serverStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Runner != nil {
		<-s.Runner.Stop().Done()
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Runtime != nil {
		_ = s.Runtime.Close()
	}
}
