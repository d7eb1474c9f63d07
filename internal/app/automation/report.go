package automation

import (
	"sync"
	"time"

	"go.uber.org/multierr"
)

// JobReport tallies one job of a trigger run.
type JobReport struct {
	Name       string
	Candidates int
	Applied    int
	Skipped    int
	Failed     int
	Notified   int
	// NotifyFailed counts e-mails that could not be sent. The state change stands.
	NotifyFailed int
	// Fatal is set when the job could not start, e.g. its candidate query failed.
	Fatal error
}

// Report summarises a trigger run. It is safe for concurrent use by the
// goroutines of a job.
type Report struct {
	Trigger  Trigger
	Date     time.Time
	Key      string
	Started  time.Time
	Finished time.Time
	// Skipped is set when another run already claimed the trigger for the day.
	Skipped bool

	mu   sync.Mutex
	jobs []*JobReport
	errs error
}

func newReport(trigger Trigger, date time.Time, key string) *Report {
	return &Report{Trigger: trigger, Date: date, Key: key}
}

func (r *Report) job(name string) *JobReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := &JobReport{Name: name}
	r.jobs = append(r.jobs, job)
	return job
}

// update applies fn to a job tally under the report lock.
func (r *Report) update(job *JobReport, fn func(*JobReport)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(job)
}

// fail records a per-record or fatal failure.
func (r *Report) fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = multierr.Append(r.errs, err)
}

// Jobs returns a snapshot of the job tallies in execution order.
func (r *Report) Jobs() []JobReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobReport, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}

// Job returns the tally of the named job.
func (r *Report) Job(name string) (JobReport, bool) {
	for _, job := range r.Jobs() {
		if job.Name == name {
			return job, true
		}
	}
	return JobReport{}, false
}

// Err returns every failure recorded during the run, combined.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

// Errors returns the individual failures recorded during the run.
func (r *Report) Errors() []error {
	return multierr.Errors(r.Err())
}

// Fatal reports whether any job failed to start.
func (r *Report) Fatal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.Fatal != nil {
			return true
		}
	}
	return false
}

// Totals sums the job tallies.
func (r *Report) Totals() JobReport {
	total := JobReport{Name: string(r.Trigger)}
	for _, job := range r.Jobs() {
		total.Candidates += job.Candidates
		total.Applied += job.Applied
		total.Skipped += job.Skipped
		total.Failed += job.Failed
		total.Notified += job.Notified
		total.NotifyFailed += job.NotifyFailed
	}
	return total
}
