package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/clubhouse/internal/monitoring"
)

const defaultAutomationMaxAge = 36 * time.Hour

// Automation reports whether the nightly trigger keeps running. A trigger
// that has never run is healthy until the server has been up for maxAge.
// Any trigger with consecutive failures degrades the probe.
func Automation(tracker *monitoring.RunTracker, nightly string, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultAutomationMaxAge
	}
	if now == nil {
		now = time.Now
	}
	started := now()

	return monitoring.NewCheck("automation", func(ctx context.Context) monitoring.ProbeResult {
		if tracker == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "embedded automation disabled"}
		}

		current := now()
		status := monitoring.StatusUp
		var problems []string

		run, ok := tracker.Lookup(nightly)
		switch {
		case !ok && current.Sub(started) > maxAge:
			status = monitoring.StatusDegraded
			problems = append(problems, nightly+": never ran")
		case ok && !run.LastSuccessAt.IsZero() && current.Sub(run.LastSuccessAt) > maxAge:
			status = monitoring.StatusDegraded
			problems = append(problems, nightly+": last success "+run.LastSuccessAt.Format(time.RFC3339))
		}

		for _, run := range tracker.Snapshot() {
			if run.ConsecutiveFailures > 0 {
				status = monitoring.StatusDegraded
				problems = append(problems, run.Trigger+": "+run.LastError)
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
