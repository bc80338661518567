package scheduler

import "errors"

var (
	// ErrTaskNotFound is returned when running a task that was never registered
	ErrTaskNotFound = errors.New("scheduler: task not found")

	// ErrDuplicateTask is returned when a task name is registered twice
	ErrDuplicateTask = errors.New("scheduler: task already registered")

	// ErrInvalidSchedule is returned for cron expressions the parser rejects
	ErrInvalidSchedule = errors.New("scheduler: invalid cron schedule")
)
