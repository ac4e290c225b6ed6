package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned by submissions before Start or after Stop.
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	// ErrJobQueueFull is returned when every queue slot is taken.
	ErrJobQueueFull = errors.New("scheduler: job queue is full")
	// ErrInvalidClock is returned for schedule times that are not HH:MM.
	ErrInvalidClock = errors.New("scheduler: invalid time of day")
)
