package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/app/automation"
	"github.com/charlesng35/clubhouse/internal/app/bootstrap"
	"github.com/charlesng35/clubhouse/pkg/mail"
)

const testConfig = `server:
  log_level: error
database:
  path: "memory:automation_cmd"
  max_open_conns: 1
club:
  timezone: UTC
automation:
  concurrency: 1
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testConfig), 0o600))
	return dir
}

func TestRunExecutesDueTriggers(t *testing.T) {
	dir := writeConfig(t)
	jan1 := time.Date(2026, time.January, 1, 6, 0, 0, 0, time.UTC)

	reports, err := run(context.Background(), []string{"-config", dir},
		bootstrap.WithClock(func() time.Time { return jan1 }),
		bootstrap.WithMailer(mail.NewRecorder()),
	)
	require.NoError(t, err)

	triggers := make([]automation.Trigger, 0, len(reports))
	for _, report := range reports {
		triggers = append(triggers, report.Trigger)
	}
	require.Equal(t, []automation.Trigger{automation.TriggerJan1, automation.TriggerNightly}, triggers)
}

func TestRunRejectsArguments(t *testing.T) {
	_, err := run(context.Background(), []string{"extra"})
	require.Error(t, err)
}

func TestRunHelp(t *testing.T) {
	_, err := run(context.Background(), []string{"-help"})
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestRunMissingConfig(t *testing.T) {
	_, err := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}
