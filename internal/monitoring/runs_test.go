package monitoring_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/monitoring"
)

func TestRunTrackerRecordsOutcomes(t *testing.T) {
	tracker := monitoring.NewRunTracker()
	first := time.Date(2025, time.March, 1, 3, 15, 0, 0, time.UTC)

	tracker.RecordRun("nightly", first, nil)
	tracker.RecordRun("nightly", first.Add(24*time.Hour), errors.New("smtp down"))
	tracker.RecordRun("annual-mar1", first, nil)
	tracker.RecordRun("", first, nil)

	nightly, ok := tracker.Lookup("nightly")
	require.True(t, ok)
	require.EqualValues(t, 2, nightly.TotalRuns)
	require.EqualValues(t, 1, nightly.ConsecutiveFailures)
	require.Equal(t, "smtp down", nightly.LastError)
	require.Equal(t, first, nightly.LastSuccessAt)

	tracker.RecordRun("nightly", first.Add(48*time.Hour), nil)
	nightly, _ = tracker.Lookup("nightly")
	require.Zero(t, nightly.ConsecutiveFailures)
	require.Empty(t, nightly.LastError)

	snapshot := tracker.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, "annual-mar1", snapshot[0].Trigger)

	_, ok = tracker.Lookup("annual-jan1")
	require.False(t, ok)

	var nilTracker *monitoring.RunTracker
	nilTracker.RecordRun("nightly", first, nil)
	require.Nil(t, nilTracker.Snapshot())
}
