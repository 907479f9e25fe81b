// Package scheduler runs the periodic maintenance jobs of the portal.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobInfo is a snapshot of a registered job.
type JobInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	Status     JobStatus `json:"status"`
	LastRun    time.Time `json:"lastRun"`
	NextRun    time.Time `json:"nextRun"`
	RunCount   int       `json:"runCount"`
	ErrorCount int       `json:"errorCount"`
	LastError  string    `json:"lastError,omitempty"`
}

// JobFunc is the work of a job. The context is cancelled when the scheduler stops.
type JobFunc func(ctx context.Context) error

type job struct {
	info   JobInfo
	gocron gocron.Job
}

// Scheduler wraps gocron and keeps run statistics per job.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*job
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: s,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}, nil
}

func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.Lock()
	for id, j := range s.jobs {
		if next, err := j.gocron.NextRun(); err == nil {
			j.info.NextRun = next
		} else {
			log.Warn("failed to get next run of job", "id", id, "error", err)
		}
	}
	s.mu.Unlock()
	log.Info("job scheduler started", "jobs", len(s.jobs))
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.gocron.Shutdown()
}

// AddCronJob registers a job on a cron schedule. Jobs never overlap with themselves.
func (s *Scheduler) AddCronJob(id, name, schedule string, fn JobFunc) error {
	schedule = strings.TrimSpace(schedule)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("job %s already registered", id)
	}
	gj, err := s.gocron.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(s.wrap(id, fn)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	s.jobs[id] = &job{
		info:   JobInfo{ID: id, Name: name, Schedule: schedule, Status: JobStatusScheduled},
		gocron: gj,
	}
	log.Debug("added job to scheduler", "id", id, "schedule", schedule)
	return nil
}

// RunNow triggers a job outside its schedule.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	log.Info("manually triggering job", "id", id)
	if err := j.gocron.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// Jobs returns a snapshot of all jobs ordered by id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, j.info)
	}
	slices.SortFunc(infos, func(a, b JobInfo) int { return strings.Compare(a.ID, b.ID) })
	return infos
}

// Job returns a snapshot of a single job.
func (s *Scheduler) Job(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return j.info, true
}

func (s *Scheduler) wrap(id string, fn JobFunc) func() {
	return func() {
		s.update(id, func(info *JobInfo) {
			info.Status = JobStatusRunning
			info.LastRun = time.Now()
			info.RunCount++
		})

		err := fn(s.ctx)

		s.update(id, func(info *JobInfo) {
			if err != nil {
				log.Error("job failed", "id", id, "error", err)
				info.Status = JobStatusFailed
				info.ErrorCount++
				info.LastError = err.Error()
			} else {
				log.Debug("job completed", "id", id)
				info.Status = JobStatusCompleted
				info.LastError = ""
			}
		})
	}
}

func (s *Scheduler) update(id string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(&j.info)
	if next, err := j.gocron.NextRun(); err == nil {
		j.info.NextRun = next
	}
}
