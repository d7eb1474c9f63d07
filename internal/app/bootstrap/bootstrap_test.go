package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/app"
	"github.com/charlesng35/clubhouse/internal/app/automation"
	"github.com/charlesng35/clubhouse/internal/cache"
	"github.com/charlesng35/clubhouse/internal/monitoring"
	"github.com/charlesng35/clubhouse/pkg/mail"
)

var fixedNow = time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = "memory:" + strings.ReplaceAll(t.Name(), "/", "_")
	cfg.Database.MaxOpenConns = 1
	cfg.Automation.Concurrency = 1
	cfg.Club.Timezone = "UTC"
	cfg.Auth.JWT.Secret = "test-secret"
	return cfg
}

func openRuntime(t *testing.T, cfg *app.Config) *Runtime {
	t.Helper()
	rt, err := Open(context.Background(), cfg,
		WithClock(func() time.Time { return fixedNow }),
		WithMailer(mail.NewRecorder()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenUsesDatabaseClaimsWithoutRedis(t *testing.T) {
	rt := openRuntime(t, testConfig(t))

	require.NotNil(t, rt.DB)
	require.Nil(t, rt.Redis)
	require.IsType(t, &cache.DatabaseStore{}, rt.Claims)
	require.NotNil(t, rt.Members)
	require.NotNil(t, rt.Logs)
	require.NotNil(t, rt.Events)
	require.NotNil(t, rt.RSVPs)
	require.NotNil(t, rt.Notifier)
	require.Equal(t, time.UTC, rt.Location)
}

func TestOpenUsesRedisClaimsWhenReachable(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = srv.Addr()

	rt := openRuntime(t, cfg)
	require.NotNil(t, rt.Redis)
	require.Same(t, rt.Redis, rt.Claims)
}

func TestOpenFallsBackWhenRedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = addr
	cfg.Cache.Redis.Timeout = 200 * time.Millisecond

	rt := openRuntime(t, cfg)
	require.Nil(t, rt.Redis)
	require.IsType(t, &cache.DatabaseStore{}, rt.Claims)
}

func TestOpenRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Club.Timezone = "Mars/Olympus_Mons"

	rt, err := Open(context.Background(), cfg)
	require.Error(t, err)
	require.Nil(t, rt)

	_, err = Open(context.Background(), nil)
	require.Error(t, err)
}

func TestNewRunnerRecordsRuns(t *testing.T) {
	rt := openRuntime(t, testConfig(t))

	runner, err := rt.NewRunner()
	require.NoError(t, err)

	report := runner.RunNightly(context.Background())
	require.False(t, report.Skipped)
	require.NoError(t, report.Err())

	run, ok := rt.Tracker.Lookup(NightlyTrigger)
	require.True(t, ok)
	require.Equal(t, uint64(1), run.TotalRuns)

	again := runner.RunNightly(context.Background())
	require.True(t, again.Skipped)
}

func TestNewRunnerRejectsBadMeeting(t *testing.T) {
	cfg := testConfig(t)
	cfg.Club.Meeting.Weekday = "someday"
	rt := openRuntime(t, cfg)

	_, err := rt.NewRunner(automation.WithConcurrency(1))
	require.Error(t, err)
}

func TestHealthManagerReportsUp(t *testing.T) {
	rt := openRuntime(t, testConfig(t))

	manager := rt.HealthManager(monitoring.NewRunTracker())
	require.Equal(t, monitoring.StatusUp, manager.EvaluateLiveness(context.Background()).Status)

	report := manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Len(t, report.Checks, 3)
}

func TestNotifierConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.Addresses.NoReply = ""
	cfg.Email.SMTP.From = "club@example.com"

	got := NotifierConfig(cfg, time.UTC)
	require.Equal(t, "club@example.com", got.From)
	require.Equal(t, cfg.Club.Name, got.ClubName)
	require.Equal(t, cfg.Email.Addresses.Board, got.Board)
}

func TestLoadConfigPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9191\n"), 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)

	cfg, err = LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)

	_, err = LoadConfig(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
