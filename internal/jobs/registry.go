package jobs

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	jobNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

type registered struct {
	job      Job
	schedule cron.Schedule
}

type Registry struct {
	mu   sync.RWMutex
	jobs map[string]registered
}

type Info struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"nextRun"`
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]registered)}
}

// ValidateSchedule parses expr with the same parser the registry uses.
func ValidateSchedule(expr string) error {
	_, err := scheduleParser.Parse(expr)
	return err
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("register: nil job")
	}
	name := job.Name()
	if !jobNamePattern.MatchString(name) {
		return fmt.Errorf("register %q: invalid job name", name)
	}
	schedule, err := scheduleParser.Parse(job.Schedule())
	if err != nil {
		return fmt.Errorf("register %q: invalid schedule %q: %w", name, job.Schedule(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("register %q: already registered", name)
	}
	r.jobs[name] = registered{job: job, schedule: schedule}
	return nil
}

func (r *Registry) MustRegister(jobs ...Job) {
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.jobs[name]
	if !ok {
		return nil, false
	}
	return entry.job, true
}

// List returns jobs sorted by name with their next run after now.
func (r *Registry) List(now time.Time) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.jobs))
	for name, entry := range r.jobs {
		out = append(out, Info{
			Name:     name,
			Schedule: entry.job.Schedule(),
			NextRun:  entry.schedule.Next(now).UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
