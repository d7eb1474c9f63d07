// Command automation runs the membership triggers due today and exits.
//
// It is meant to be invoked once a day by an external scheduler. Job
// failures are logged and do not change the exit status; only
// configuration and start-up errors do.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/charlesng35/clubhouse/internal/app"
	"github.com/charlesng35/clubhouse/internal/app/automation"
	"github.com/charlesng35/clubhouse/internal/app/bootstrap"
	"github.com/charlesng35/clubhouse/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, opts ...bootstrap.Option) ([]*automation.Report, error) {
	fs := flag.NewFlagSet("clubhouse-automation", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := app.ConfigureLoggingWithFormat(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("automation")

	rt, err := bootstrap.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	runner, err := rt.NewRunner()
	if err != nil {
		return nil, fmt.Errorf("initialise automation: %w", err)
	}

	reports := runner.RunDue(ctx)
	for _, report := range reports {
		if err := report.Err(); err != nil {
			log.Warn("automation trigger finished with failures",
				zap.String("trigger", string(report.Trigger)),
				zap.Int("failures", len(report.Errors())),
				zap.Error(err))
		}
	}
	return reports, nil
}
