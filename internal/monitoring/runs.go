package monitoring

import (
	"sort"
	"sync"
	"time"
)

// TriggerRun is the last known outcome of one automation trigger.
type TriggerRun struct {
	Trigger             string    `json:"trigger"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastSuccessAt       time.Time `json:"last_success_at,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	TotalRuns           uint64    `json:"total_runs"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
}

// RunTracker records automation trigger outcomes for the health probes.
// The zero value is ready to use.
type RunTracker struct {
	mu   sync.Mutex
	runs map[string]*TriggerRun
}

// NewRunTracker returns an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{}
}

// RecordRun stores the outcome of a finished trigger run. A nil err marks success.
func (t *RunTracker) RecordRun(trigger string, finishedAt time.Time, err error) {
	if t == nil || trigger == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runs == nil {
		t.runs = make(map[string]*TriggerRun)
	}
	run, ok := t.runs[trigger]
	if !ok {
		run = &TriggerRun{Trigger: trigger}
		t.runs[trigger] = run
	}
	run.TotalRuns++
	run.LastRunAt = finishedAt.UTC()
	if err != nil {
		run.ConsecutiveFailures++
		run.LastError = err.Error()
		return
	}
	run.ConsecutiveFailures = 0
	run.LastError = ""
	run.LastSuccessAt = run.LastRunAt
}

// Snapshot returns a copy of every recorded trigger, sorted by name.
func (t *RunTracker) Snapshot() []TriggerRun {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TriggerRun, 0, len(t.runs))
	for _, run := range t.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trigger < out[j].Trigger })
	return out
}

// Lookup returns the recorded outcome of trigger.
func (t *RunTracker) Lookup(trigger string) (TriggerRun, bool) {
	if t == nil {
		return TriggerRun{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[trigger]
	if !ok {
		return TriggerRun{}, false
	}
	return *run, true
}
