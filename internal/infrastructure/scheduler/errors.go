package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a job on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrUnknownJob is returned for job names that were never registered
	ErrUnknownJob = errors.New("unknown scheduler job")

	// ErrRunInProgress is returned when a job is triggered while a previous
	// run still holds its guard
	ErrRunInProgress = errors.New("a run of this job is already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
