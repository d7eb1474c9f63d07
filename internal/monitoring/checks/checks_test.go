package checks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/cache"
	"github.com/charlesng35/clubhouse/internal/database/testutil"
	"github.com/charlesng35/clubhouse/internal/monitoring"
	"github.com/charlesng35/clubhouse/internal/monitoring/checks"
)

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	result := checks.Database(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "open=")

	missing := checks.Database(nil, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, missing.Status)
}

func TestRedisCheck(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := cache.NewRedisStore(client)
	require.Equal(t, monitoring.StatusUp, checks.Redis(store, true, time.Second).Run(context.Background()).Status)

	disabled := checks.Redis(nil, false, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, disabled.Status)
	require.Contains(t, disabled.Details, "disabled")

	require.Equal(t, monitoring.StatusDegraded, checks.Redis(nil, true, 0).Run(context.Background()).Status)

	server.Close()
	require.NotEqual(t, monitoring.StatusUp, checks.Redis(store, true, time.Second).Run(context.Background()).Status)
}

func TestAutomationCheck(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tracker := monitoring.NewRunTracker()
	check := checks.Automation(tracker, "nightly", 36*time.Hour, clock)

	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	now = now.Add(48 * time.Hour)
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "never ran")

	tracker.RecordRun("nightly", now.Add(-time.Hour), nil)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	tracker.RecordRun("annual-apr1", now, errors.New("delinquentize: db closed"))
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "annual-apr1")

	now = now.Add(72 * time.Hour)
	tracker.RecordRun("annual-apr1", now, nil)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "last success")

	disabled := checks.Automation(nil, "nightly", 0, nil).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, disabled.Status)
}
