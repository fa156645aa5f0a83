package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/stratbook/internal/metrics"
	"github.com/wonny/stratbook/pkg/logger"
	"github.com/wonny/stratbook/pkg/retry"
)

// OnceSchedule is reported for jobs registered with After
const OnceSchedule = "once"

// ErrJobNotFound is returned for unknown job names
var ErrJobNotFound = errors.New("job not found")

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	pending map[string]*time.Timer
	mu      sync.RWMutex

	// Cancelled on Stop so running jobs can wind down
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Retry configuration (idempotent jobs only)
	retry retry.Policy
}

// New creates a new scheduler
func New(log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  log.Component("scheduler"),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		history: make(map[string]*JobHistory),
		pending: make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
		retry: retry.Policy{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Minute,
			MaxDelay:     5 * time.Minute,
			Multiplier:   2,
		},
	}
}

// SetRetryPolicy replaces the retry policy for idempotent jobs
func (s *Scheduler) SetRetryPolicy(p retry.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retry = p
}

// SetLocation evaluates cron schedules in loc (default: local time).
// Must be called before any job is added.
func (s *Scheduler) SetLocation(loc *time.Location) {
	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(loc))
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.track(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	if _, ok := s.history[jobName]; !ok {
		s.history[jobName] = &JobHistory{}
	}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobName]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	s.cron.Remove(s.entries[jobName])
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")

	return nil
}

// After runs fn once after delay. A pending run with the same name is
// replaced. Pending runs are dropped on Stop.
func (s *Scheduler) After(name string, delay time.Duration, fn func(ctx context.Context) error) {
	job := funcJob{name: name, fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.pending[name]; ok {
		old.Stop()
		s.logger.WithField("job", name).Warn("Replacing pending one-shot job")
	}
	if _, ok := s.history[name]; !ok {
		s.history[name] = &JobHistory{}
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.pending[name] == timer {
			delete(s.pending, name)
		}
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		s.runTracked(job)
	})
	s.pending[name] = timer

	s.logger.WithFields(map[string]interface{}{
		"job":   name,
		"delay": delay.String(),
	}).Info("One-shot job scheduled")
}

// Pending returns names of one-shot jobs that have not fired yet
func (s *Scheduler) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")

	s.mu.Lock()
	for name, timer := range s.pending {
		if timer.Stop() {
			s.logger.WithField("job", name).Warn("Dropping pending one-shot job")
		}
		delete(s.pending, name)
	}
	s.mu.Unlock()

	s.cancel()
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.wg.Wait()

	s.logger.Info("Scheduler stopped")
}

// RunJob runs a specific job immediately (outside of schedule)
func (s *Scheduler) RunJob(jobName string) error {
	job, err := s.job(jobName)
	if err != nil {
		return err
	}

	go s.track(job)
	return nil
}

// RunJobSync runs a job in the caller's goroutine and returns its result
func (s *Scheduler) RunJobSync(ctx context.Context, jobName string) (JobResult, error) {
	job, err := s.job(jobName)
	if err != nil {
		return JobResult{}, err
	}

	result := s.runJob(ctx, job)
	if !result.Success {
		return result, errors.New(result.Error)
	}
	return result, nil
}

func (s *Scheduler) job(jobName string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	return job, nil
}

// track runs job under the scheduler's context
func (s *Scheduler) track(job Job) {
	s.wg.Add(1)
	defer s.wg.Done()
	s.runTracked(job)
}

func (s *Scheduler) runTracked(job Job) {
	if s.ctx.Err() != nil {
		return
	}
	s.runJob(s.ctx, job)
}

// WaitPending blocks until every one-shot job has fired and every running
// job has finished, or ctx is done
func (s *Scheduler) WaitPending(ctx context.Context) error {
	for len(s.Pending()) > 0 {
		if err := retry.Sleep(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runJob executes a job, retrying only idempotent ones
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	jobName := job.Name()
	startTime := time.Now()

	s.logger.WithField("job", jobName).Info("Job started")

	attempts := 0
	run := func(ctx context.Context) error {
		attempts++
		return job.Run(ctx)
	}

	var err error
	if retryable(job) {
		s.mu.RLock()
		policy := s.retry
		s.mu.RUnlock()

		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			s.logger.WithFields(map[string]interface{}{
				"job":     jobName,
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err.Error(),
			}).Warn("Job execution failed, retrying")
		}
		err = retry.Do(ctx, policy, run)
	} else {
		err = run(ctx)
	}

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Success:   err == nil,
		Attempts:  attempts,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	history, exists := s.history[jobName]
	if !exists {
		history = &JobHistory{}
		s.history[jobName] = history
	}
	history.AddResult(result)
	s.mu.Unlock()

	if result.Success {
		metrics.JobRuns.WithLabelValues(jobName, "success").Inc()
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
		}).Info("Job completed successfully")
	} else {
		metrics.JobRuns.WithLabelValues(jobName, "failure").Inc()
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
			"attempts": attempts,
			"error":    result.Error,
		}).Error("Job failed")
	}

	return result
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	return &JobHistory{Results: history.GetLatestResults(len(history.Results))}, nil
}

// GetAllJobs returns all registered jobs, sorted by name
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats returns statistics for every job with history
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, history := range s.history {
		latestResults := history.GetLatestResults(1)
		failedResults := history.GetFailedResults()

		var lastRun *time.Time
		var lastSuccess *time.Time
		var lastFailure *time.Time

		if len(latestResults) > 0 {
			lastResult := latestResults[0]
			lastRun = &lastResult.StartTime

			if lastResult.Success {
				lastSuccess = &lastResult.StartTime
			} else {
				lastFailure = &lastResult.StartTime
			}
		}

		schedule := OnceSchedule
		if job, ok := s.jobs[jobName]; ok {
			schedule = job.Schedule()
		}

		var next *time.Time
		if id, ok := s.entries[jobName]; ok {
			if entry := s.cron.Entry(id); !entry.Next.IsZero() {
				next = &entry.Next
			}
		}

		stats[jobName] = JobStats{
			JobName:      jobName,
			Schedule:     schedule,
			TotalRuns:    len(history.Results),
			SuccessCount: len(history.Results) - len(failedResults),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
			LastRun:      lastRun,
			LastSuccess:  lastSuccess,
			LastFailure:  lastFailure,
			NextRun:      next,
		}
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}
