package counter

import (
	"context"

	"github.com/sweeney/tickdemo/internal/rtos"
)

// SemaphoreConsumer returns a task body that blocks on sem and increments c
// once per token taken.
func SemaphoreConsumer(c *Counter, sem *rtos.Semaphore) rtos.TaskFunc {
	return func(ctx context.Context, t *rtos.Task) error {
		for {
			if err := sem.Take(ctx, t, rtos.WaitForever); err != nil {
				return err
			}
			c.Increment(SourceSemaphore)
		}
	}
}

// NotificationConsumer returns a task body that blocks on the task's own
// notification and increments c once per wake-up. Notifications posted
// before the task runs again collapse into one increment.
func NotificationConsumer(c *Counter) rtos.TaskFunc {
	return func(ctx context.Context, t *rtos.Task) error {
		for {
			if _, err := t.NotifyTake(ctx, true, rtos.WaitForever); err != nil {
				return err
			}
			c.Increment(SourceNotification)
		}
	}
}

// ResetCallback returns a timer callback that zeroes c. onReset, if set, is
// called after a successful reset and must not block.
func ResetCallback(c *Counter, onReset func()) func(*rtos.Timer) {
	return func(*rtos.Timer) {
		if c.Reset() && onReset != nil {
			onReset()
		}
	}
}
