// Package scheduler runs supplier imports and the archive sweep on a small
// worker pool, triggered by the daily schedule or on request.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eshop/backend/internal/domain/bulk"
)

type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// JobKind is what a job does.
type JobKind string

const (
	JobKindImport JobKind = "IMPORT"
	JobKindSweep  JobKind = "SWEEP"
)

// Job is one queued unit of work. Once submitted, its status fields belong
// to the worker running it.
type Job struct {
	ID       uuid.UUID
	Kind     JobKind
	Supplier string
	Trigger  bulk.Trigger

	// MaxRetries is how many times a failed job is queued again.
	MaxRetries int
	RetryCount int

	Status     JobStatus
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewImportJob creates a job importing supplier.
func NewImportJob(supplier string, trigger bulk.Trigger, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       JobKindImport,
		Supplier:   supplier,
		Trigger:    trigger,
		MaxRetries: maxRetries,
		Status:     JobQueued,
	}
}

// NewSweepJob creates an archive sweep job. Sweeps are not retried; the
// next day's sweep catches up.
func NewSweepJob() *Job {
	return &Job{ID: uuid.New(), Kind: JobKindSweep, Trigger: bulk.TriggerSchedule, Status: JobQueued}
}

func (j *Job) begin() {
	j.Status = JobRunning
	j.StartedAt = time.Now()
	j.FinishedAt = time.Time{}
	j.LastError = ""
}

func (j *Job) finish(err error) {
	j.FinishedAt = time.Now()
	if err != nil {
		j.Status = JobFailed
		j.LastError = err.Error()
		return
	}
	j.Status = JobSucceeded
}

// Retryable reports whether a failed job has retries left.
func (j *Job) Retryable() bool {
	return j.Status == JobFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) logFields() []zap.Field {
	fields := []zap.Field{zap.Stringer("job_id", j.ID), zap.String("kind", string(j.Kind))}
	if j.Supplier != "" {
		fields = append(fields, zap.String("supplier", j.Supplier))
	}
	if j.RetryCount > 0 {
		fields = append(fields, zap.Int("retry", j.RetryCount))
	}
	return fields
}

// JobExecutor runs one job.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

type Config struct {
	// MaxConcurrentJobs is the worker count, so at most this many suppliers
	// import at once.
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	QueueSize         int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 3,
		JobTimeout:        2 * time.Hour,
		RetryAttempts:     2,
		RetryDelay:        5 * time.Minute,
		QueueSize:         100,
	}
}

// Scheduler is a fixed pool of workers draining a bounded queue. Failed
// jobs come back through a timer after Config.RetryDelay.
type Scheduler struct {
	cfg      Config
	executor JobExecutor
	logger   *zap.Logger

	mu      sync.Mutex
	queue   chan *Job
	stop    context.CancelFunc
	retries map[uuid.UUID]*time.Timer
	workers sync.WaitGroup
}

func NewScheduler(cfg Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, executor: executor, logger: logger}
}

// Start launches the workers. Calling it on a started scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return nil
	}

	ctx, s.stop = context.WithCancel(ctx)
	s.queue = make(chan *Job, s.cfg.QueueSize)
	s.retries = make(map[uuid.UUID]*time.Timer)
	for id := range s.cfg.MaxConcurrentJobs {
		s.workers.Add(1)
		go s.work(ctx, id, s.queue)
	}

	s.logger.Info("scheduler started",
		zap.Int("workers", s.cfg.MaxConcurrentJobs),
		zap.Int("queue_size", s.cfg.QueueSize),
		zap.Duration("job_timeout", s.cfg.JobTimeout),
	)
	return nil
}

// Stop drops pending retries, cancels running jobs and waits for the
// workers until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return nil
	}
	for _, t := range s.retries {
		t.Stop()
	}
	s.retries = nil
	close(s.queue)
	s.queue = nil
	s.stop()
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out, jobs still running")
		return ctx.Err()
	}
}

// SubmitJob queues job. It never blocks: a full queue is an error.
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueue(job)
}

// enqueue requires s.mu.
func (s *Scheduler) enqueue(job *Job) error {
	if s.queue == nil {
		return ErrSchedulerNotRunning
	}
	select {
	case s.queue <- job:
		s.logger.Debug("job queued", job.logFields()...)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// SubmitImport queues an import of supplier with the configured retries.
func (s *Scheduler) SubmitImport(supplier string, trigger bulk.Trigger) (*Job, error) {
	job := NewImportJob(supplier, trigger, s.cfg.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Scheduler) work(ctx context.Context, id int, queue <-chan *Job) {
	defer s.workers.Done()
	for job := range queue {
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, id, job)
	}
}

func (s *Scheduler) run(ctx context.Context, worker int, job *Job) {
	log := s.logger.With(append(job.logFields(), zap.Int("worker", worker))...)
	job.begin()
	log.Info("job started")

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	cancel()
	job.finish(err)

	if err == nil {
		log.Info("job finished", zap.Duration("took", job.FinishedAt.Sub(job.StartedAt)))
		return
	}
	log.Error("job failed", zap.Error(err))
	if job.Retryable() && ctx.Err() == nil {
		s.scheduleRetry(job)
	}
}

func (s *Scheduler) scheduleRetry(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return
	}
	job.RetryCount++
	job.Status = JobQueued
	s.retries[job.ID] = time.AfterFunc(s.cfg.RetryDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.retries == nil {
			return
		}
		delete(s.retries, job.ID)
		if err := s.enqueue(job); err != nil {
			s.logger.Warn("retry dropped", append(job.logFields(), zap.Error(err))...)
		}
	})
	s.logger.Info("job retry scheduled", append(job.logFields(),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", s.cfg.RetryDelay),
	)...)
}
