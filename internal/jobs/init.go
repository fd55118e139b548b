package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Scheduled pairs a job with how often it runs
type Scheduled struct {
	Job      Job
	Interval time.Duration
}

// Runner holds the registered jobs by name, for the scheduler and for
// manual triggers
type Runner struct {
	jobs map[string]Scheduled
}

// NewRunner registers jobs by their names
func NewRunner(jobs ...Scheduled) *Runner {
	r := &Runner{jobs: make(map[string]Scheduled, len(jobs))}
	for _, s := range jobs {
		r.jobs[s.Job.Name()] = s
	}
	return r
}

// Names lists registered jobs alphabetically
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger runs one job now
func (r *Runner) Trigger(ctx context.Context, name string) ([]TenantResult, error) {
	s, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return s.Job.Run(ctx)
}

// Has reports whether name is registered
func (r *Runner) Has(name string) bool {
	_, ok := r.jobs[name]
	return ok
}

// Start launches every job with a positive interval in the background
func (r *Runner) Start(ctx context.Context) {
	for _, s := range r.jobs {
		if s.Interval <= 0 {
			continue
		}
		go RunScheduled(ctx, s.Job, s.Interval)
	}
}
