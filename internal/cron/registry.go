package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled work. Run must be safe to repeat: a cycle
// that fails halfway is simply run again on the next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs keyed by name, run in registration order.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register adds job. Names must be unique since they label metrics and logs.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron: nil job")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron: job name required")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron: job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// MustRegister is Register for wiring code where a duplicate is a programming error.
func (r *Registry) MustRegister(jobs ...Job) *Registry {
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Names lists job names in run order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Name())
	}
	return out
}
