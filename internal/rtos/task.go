package rtos

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
)

// Priority orders tasks. Higher values are more important.
type Priority int

const (
	PriorityIdle Priority = 0
	PriorityLow  Priority = 1
	PriorityHigh Priority = 2
	PriorityMax  Priority = 5
)

// TaskState is the externally observable state of a task.
type TaskState string

const (
	StateRunning   TaskState = "RUNNING"
	StateBlocked   TaskState = "BLOCKED"
	StateSuspended TaskState = "SUSPENDED"
	StateDeleted   TaskState = "DELETED"
)

// TaskFunc is a task body. It should loop on rtos waits and return when one
// of them returns an error.
type TaskFunc func(ctx context.Context, t *Task) error

// TaskInfo is a point-in-time view of a task.
type TaskInfo struct {
	Name     string
	Priority Priority
	State    TaskState
	Started  bool
}

// Task is a schedulable unit. The handle is a reference only: holders may
// suspend, resume, notify or delete the task but never own its goroutine.
type Task struct {
	k        *Kernel
	name     string
	priority Priority
	body     TaskFunc

	// Guarded by k.mu.
	suspended   bool
	blocked     bool
	started     bool
	finished    bool
	deleted     bool
	waiter      *waiter
	notifyValue uint32
	notifyQ     waitQueue

	done chan struct{}
}

// TaskOption configures CreateTask.
type TaskOption func(*Task)

// WithStartSuspended creates the task suspended. Its body does not start
// until the first Resume.
func WithStartSuspended() TaskOption {
	return func(t *Task) {
		t.suspended = true
	}
}

// CreateTask starts a new task running body.
func (k *Kernel) CreateTask(name string, priority Priority, body TaskFunc, opts ...TaskOption) (*Task, error) {
	if body == nil {
		return nil, fmt.Errorf("create task %q: %w", name, ErrNilFunc)
	}
	t := &Task{
		k:        k,
		name:     name,
		priority: priority,
		body:     body,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	k.mu.Lock()
	if err := k.ctx.Err(); err != nil {
		k.mu.Unlock()
		return nil, fmt.Errorf("create task %q: %w", name, ErrKernelClosed)
	}
	k.tasks = append(k.tasks, t)
	k.addBusy()
	k.mu.Unlock()

	k.wg.Add(1)
	go t.run()
	return t, nil
}

func (t *Task) run() {
	k := t.k
	defer k.wg.Done()
	defer close(t.done)
	defer func() {
		k.mu.Lock()
		t.finished = true
		if !t.blocked {
			t.blocked = true
			k.busy--
			if k.busy == 0 {
				close(k.idleCh)
			}
		}
		k.mu.Unlock()
	}()

	k.mu.Lock()
	err := k.block(k.ctx, t, nil, WaitForever, func() bool { return true })
	if err == nil {
		t.started = true
	}
	k.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("rtos: task %s panicked: %v\n%s", t.name, p, debug.Stack())
		}
	}()
	if err := t.body(k.ctx, t); err != nil && err != ErrKernelClosed && err != context.Canceled {
		log.Printf("rtos: task %s exited: %v", t.name, err)
	}
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Priority returns the task priority.
func (t *Task) Priority() Priority {
	return t.priority
}

// Suspend removes the task from scheduling. A running task stops at its next
// wait; a blocked task stays blocked and ignores signals until resumed.
// Suspending a suspended task is a no-op.
func (t *Task) Suspend() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if t.finished {
		return
	}
	t.suspended = true
}

// Resume makes a suspended task schedulable again. The wait it was parked in
// is re-evaluated.
func (t *Task) Resume() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if !t.suspended {
		return
	}
	t.suspended = false
	if t.waiter != nil {
		t.k.wake(t.waiter)
	}
}

// SuspendSelf suspends the calling task and blocks until another task
// resumes it. Only the task itself may call it.
func (t *Task) SuspendSelf(ctx context.Context) error {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()
	t.suspended = true
	return k.block(ctx, t, nil, WaitForever, func() bool { return true })
}

// IsSuspended reports whether the task is suspended.
func (t *Task) IsSuspended() bool {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.suspended && !t.finished
}

// State returns the current task state.
func (t *Task) State() TaskState {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.stateLocked()
}

func (t *Task) stateLocked() TaskState {
	switch {
	case t.finished || t.deleted:
		return StateDeleted
	case t.suspended:
		return StateSuspended
	case t.blocked:
		return StateBlocked
	default:
		return StateRunning
	}
}

func (t *Task) infoLocked() TaskInfo {
	return TaskInfo{
		Name:     t.name,
		Priority: t.priority,
		State:    t.stateLocked(),
		Started:  t.started,
	}
}

// Delete stops the task. Its current or next wait returns ErrTaskDeleted.
func (t *Task) Delete() {
	t.k.mu.Lock()
	t.deleted = true
	if t.waiter != nil {
		t.k.wake(t.waiter)
	}
	t.k.mu.Unlock()
}

// Done is closed when the task body has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Notify posts a notification to the task, incrementing its value.
func (t *Task) Notify() {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	t.notifyValue++
	t.notifyQ.wakeOne(t.k)
}

// NotifyTake waits for the task's own notification value to become non-zero
// and returns it. With clear set the value is zeroed, otherwise decremented.
func (t *Task) NotifyTake(ctx context.Context, clear bool, timeout Tick) (uint32, error) {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineAfter(timeout)
	err := k.block(ctx, t, &t.notifyQ, deadline, func() bool { return t.notifyValue > 0 })
	if err != nil {
		return 0, err
	}
	v := t.notifyValue
	if clear {
		t.notifyValue = 0
	} else {
		t.notifyValue--
	}
	return v, nil
}

// Delay blocks the task for n ticks relative to now.
func (k *Kernel) Delay(ctx context.Context, t *Task, n Tick) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	deadline := k.deadlineAfter(n)
	return k.block(ctx, t, nil, deadline, func() bool { return k.now >= deadline })
}

// WaitUntil blocks until the tick counter reaches deadline.
func (k *Kernel) WaitUntil(ctx context.Context, t *Task, deadline Tick) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.block(ctx, t, nil, deadline, func() bool { return k.now >= deadline })
}

// DelayUntil advances *lastWake by period and blocks until that absolute
// tick. A deadline already in the past returns at once, so a periodic loop
// built on it does not drift.
func (k *Kernel) DelayUntil(ctx context.Context, t *Task, lastWake *Tick, period Tick) error {
	if period == 0 {
		return ErrInvalidPeriod
	}
	*lastWake += period
	err := k.WaitUntil(ctx, t, *lastWake)
	if err == ErrTimeout {
		return nil
	}
	return err
}
