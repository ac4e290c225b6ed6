package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/bulk"
)

// JobSubmitter queues jobs.
type JobSubmitter interface {
	SubmitJob(job *Job) error
}

type CronTriggerConfig struct {
	// SweepTime is the daily HH:MM of the archive sweep. Empty disables it.
	SweepTime     string
	CheckInterval time.Duration
	RetryAttempts int
}

func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		SweepTime:     "03:30",
		CheckInterval: time.Minute,
	}
}

// ParseClock validates an HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour(), t.Minute(), nil
}

// CronTrigger submits the imports of active suppliers at their configured
// times of day and the archive sweep once a day.
type CronTrigger struct {
	config    CronTriggerConfig
	submitter JobSubmitter
	entries   importapp.EntrySource
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
	// fired maps a job key to the last minute it was submitted for, so a
	// slot fires once however short the check interval.
	fired map[string]string
}

func NewCronTrigger(config CronTriggerConfig, submitter JobSubmitter, entries importapp.EntrySource, logger *zap.Logger) *CronTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config:    config,
		submitter: submitter,
		entries:   entries,
		logger:    logger,
		now:       time.Now,
		fired:     make(map[string]string),
	}
}

// Validate checks every configured time.
func (c *CronTrigger) Validate() error {
	if c.config.SweepTime != "" {
		if _, _, err := ParseClock(c.config.SweepTime); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}
	for _, e := range c.entries.Entries() {
		for _, at := range e.Schedule {
			if _, _, err := ParseClock(at); err != nil {
				return fmt.Errorf("supplier %s: %w", e.Name, err)
			}
		}
	}
	return nil
}

// Start validates the schedule and begins checking the clock. Starting a
// running trigger does nothing.
func (c *CronTrigger) Start(ctx context.Context) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}
	ctx, c.stop = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.tick(ctx, c.done)

	c.logger.Info("cron trigger started",
		zap.String("sweep_time", c.config.SweepTime),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop ends the clock loop, waiting at most until ctx expires.
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return nil
	}
	stop()

	select {
	case <-done:
		c.logger.Info("cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) tick(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(c.now())
		}
	}
}

// checkAndTrigger submits every slot due at the minute of now.
func (c *CronTrigger) checkAndTrigger(now time.Time) {
	clock := now.Format("15:04")
	slot := now.Format("2006-01-02 15:04")

	if c.config.SweepTime != "" && sameClock(c.config.SweepTime, clock) && c.markFired("sweep", slot) {
		c.submit(NewSweepJob())
	}

	for _, e := range c.entries.Entries() {
		if !e.Active {
			continue
		}
		for _, at := range e.Schedule {
			if sameClock(at, clock) && c.markFired("import:"+strings.ToLower(e.Name), slot) {
				c.submit(NewImportJob(e.Name, bulk.TriggerSchedule, c.config.RetryAttempts))
			}
		}
	}
}

func (c *CronTrigger) markFired(key, slot string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired[key] == slot {
		return false
	}
	c.fired[key] = slot
	return true
}

func (c *CronTrigger) submit(job *Job) {
	if err := c.submitter.SubmitJob(job); err != nil {
		c.logger.Error("scheduled job not queued", append(job.logFields(), zap.Error(err))...)
		return
	}
	c.logger.Info("scheduled job queued", job.logFields()...)
}

// sameClock compares an HH:MM setting with clock, tolerating "6:00".
func sameClock(setting, clock string) bool {
	h, m, err := ParseClock(setting)
	if err != nil {
		return false
	}
	return fmt.Sprintf("%02d:%02d", h, m) == clock
}
