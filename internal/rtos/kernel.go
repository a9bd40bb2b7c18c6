// Package rtos provides the scheduler primitives the demo tasks are written
// against: a tick counter, suspendable tasks, semaphores, per-task
// notifications, bounded queues and periodic software timers.
//
// Tasks are goroutines. Every blocking call takes the calling *Task so the
// kernel knows which tasks are blocked, which lets tests advance time one tick
// at a time and wait until every task has reacted (see Step and WaitIdle).
// Priorities are carried as task metadata only; the Go runtime does the
// actual scheduling.
package rtos

import (
	"container/heap"
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Tick is the scheduler's unit of time.
type Tick uint64

const (
	// NoWait makes a blocking call return immediately when it cannot proceed.
	NoWait Tick = 0
	// WaitForever blocks until the call can proceed.
	WaitForever Tick = math.MaxUint64
)

// DefaultTickRate is the number of ticks per second (1 tick = 1 ms).
const DefaultTickRate = 1000

// Kernel owns the tick counter and all scheduler state. A single lock guards
// every primitive created from the kernel.
type Kernel struct {
	mu       sync.Mutex
	now      Tick
	tickRate int
	timeouts timeoutHeap
	timers   []*Timer
	tasks    []*Task

	busy   int
	idleCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKernel creates a kernel with the given tick rate in Hz. A rate <= 0
// selects DefaultTickRate.
func NewKernel(tickRate int) *Kernel {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	ctx, cancel := context.WithCancel(context.Background())
	k := &Kernel{
		tickRate: tickRate,
		idleCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	close(k.idleCh)
	heap.Init(&k.timeouts)
	return k
}

// TickRate returns the configured ticks per second.
func (k *Kernel) TickRate() int {
	return k.tickRate
}

// Ticks converts a wall-clock duration to ticks, rounding down.
func (k *Kernel) Ticks(d time.Duration) Tick {
	if d <= 0 {
		return 0
	}
	return Tick(d * time.Duration(k.tickRate) / time.Second)
}

// Duration converts ticks back to wall-clock time.
func (k *Kernel) Duration(t Tick) time.Duration {
	return time.Duration(t) * time.Second / time.Duration(k.tickRate)
}

// Now returns the current tick count.
func (k *Kernel) Now() Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

// Advance moves the tick counter forward n ticks, one at a time. On each
// tick the due timer callbacks run first, on the calling goroutine, which
// acts as the timer service; then waiters whose deadline is reached are
// released.
func (k *Kernel) Advance(n Tick) {
	for i := Tick(0); i < n; i++ {
		k.mu.Lock()
		k.now++
		due := k.dueTimers()
		k.mu.Unlock()

		for _, t := range due {
			t.fire()
		}

		k.mu.Lock()
		for k.timeouts.Len() > 0 && k.timeouts[0].deadline <= k.now {
			w := heap.Pop(&k.timeouts).(*waiter)
			k.wake(w)
		}
		k.mu.Unlock()
	}
}

// Step advances the kernel n ticks and, after every tick, waits until all
// tasks are blocked, suspended or finished. It gives deterministic
// tick-by-tick execution for tests and simulations.
func (k *Kernel) Step(ctx context.Context, n Tick) error {
	if err := k.WaitIdle(ctx); err != nil {
		return err
	}
	for i := Tick(0); i < n; i++ {
		k.Advance(1)
		if err := k.WaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WaitIdle blocks until no task is runnable.
func (k *Kernel) WaitIdle(ctx context.Context) error {
	for {
		k.mu.Lock()
		if k.busy == 0 {
			k.mu.Unlock()
			return nil
		}
		ch := k.idleCh
		k.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run drives the tick counter from wall-clock time until ctx is done.
func (k *Kernel) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.Duration(1))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-k.ctx.Done():
			return nil
		case <-ticker.C:
			k.Advance(1)
		}
	}
}

// Close cancels every task and waits for their goroutines to return.
func (k *Kernel) Close() {
	k.cancel()
	k.wg.Wait()
}

// Tasks returns a snapshot of all tasks, highest priority first.
func (k *Kernel) Tasks() []TaskInfo {
	k.mu.Lock()
	infos := make([]TaskInfo, 0, len(k.tasks))
	for _, t := range k.tasks {
		infos = append(infos, t.infoLocked())
	}
	k.mu.Unlock()

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Priority > infos[j].Priority
	})
	return infos
}

func (k *Kernel) markBlocked(t *Task) {
	if t == nil || t.blocked {
		return
	}
	t.blocked = true
	k.busy--
	if k.busy == 0 {
		close(k.idleCh)
	}
}

func (k *Kernel) markRunnable(t *Task) {
	if t == nil || !t.blocked {
		return
	}
	t.blocked = false
	k.addBusy()
}

func (k *Kernel) addBusy() {
	if k.busy == 0 {
		k.idleCh = make(chan struct{})
	}
	k.busy++
}
