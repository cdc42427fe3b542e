package pulp

import (
	"context"
	"fmt"
	"time"

	"pulptool/pkg/logger"
)

// Backoff tunables for task polling, variables so tests can shrink them.
// The interval grows by the factor after every poll up to the cap.
var (
	taskInitialInterval = 2 * time.Second
	taskMaxInterval     = 30 * time.Second
	taskBackoffFactor   = 1.5
)

// DefaultTaskTimeout bounds how long WaitForTask polls by default.
const DefaultTaskTimeout = 24 * time.Hour

// nextPollInterval advances the backoff: multiply by the factor, capped
// at the maximum interval.
func nextPollInterval(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * taskBackoffFactor)
	if next > taskMaxInterval {
		next = taskMaxInterval
	}
	return next
}

// WaitForTask polls a task href until it reaches a terminal state or the
// timeout elapses. A non-positive timeout means DefaultTaskTimeout.
//
// On timeout the last successfully fetched task is returned even when it
// is still non-terminal, so callers keep whatever partial state the server
// reported; ErrPollTimeout is raised only when no fetch ever succeeded.
func (c *Client) WaitForTask(ctx context.Context, href string, timeout time.Duration) (*Task, error) {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}

	start := time.Now()
	interval := taskInitialInterval
	polls := 0
	var last *Task

	for time.Since(start) < timeout {
		polls++
		logger.Debug("Waiting for task", "task", href, "poll", polls, "elapsed", time.Since(start).Round(time.Millisecond))

		var task Task
		err := c.Get(ctx, href, &task)
		c.metrics.RecordTaskPoll()
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			logger.Warn("Task poll failed", "task", href, "error", err)
		} else {
			last = &task
			if task.IsComplete() {
				logger.Info("Task finished", "task", href, "state", task.State, "polls", polls, "elapsed", time.Since(start).Round(time.Millisecond))
				return &task, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
		interval = nextPollInterval(interval)
	}

	logger.Error("Timed out waiting for task", "task", href, "timeout", timeout, "polls", polls)
	if last != nil {
		return last, nil
	}
	return nil, fmt.Errorf("%w: %s after %s", ErrPollTimeout, href, timeout)
}
