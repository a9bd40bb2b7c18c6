package rtos

import (
	"container/heap"
	"context"
)

// waiter is one blocked call. It is released by closing ready.
type waiter struct {
	task     *Task
	ready    chan struct{}
	woken    bool
	queue    *waitQueue
	deadline Tick
	index    int // position in the timeout heap, -1 when absent
}

// waitQueue is a FIFO of waiters blocked on the same primitive.
type waitQueue struct {
	waiters []*waiter
}

func (q *waitQueue) push(w *waiter) {
	w.queue = q
	q.waiters = append(q.waiters, w)
}

func (q *waitQueue) remove(w *waiter) {
	for i, x := range q.waiters {
		if x == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}
	w.queue = nil
}

// wakeOne releases the oldest waiter whose task is not suspended.
// Caller holds k.mu.
func (q *waitQueue) wakeOne(k *Kernel) {
	for _, w := range q.waiters {
		if w.task != nil && w.task.suspended {
			continue
		}
		k.wake(w)
		return
	}
}

// timeoutHeap orders waiters by deadline.
type timeoutHeap []*waiter

func (h timeoutHeap) Len() int           { return len(h) }
func (h timeoutHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }
func (h timeoutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timeoutHeap) Push(x any) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[:n-1]
	return w
}

// wake releases w. Caller holds k.mu.
func (k *Kernel) wake(w *waiter) {
	if w.woken {
		return
	}
	w.woken = true
	if w.queue != nil {
		w.queue.remove(w)
	}
	if w.index >= 0 {
		heap.Remove(&k.timeouts, w.index)
	}
	if w.task != nil && w.task.waiter == w {
		w.task.waiter = nil
	}
	close(w.ready)
	k.markRunnable(w.task)
}

// deadlineAfter converts a relative timeout into an absolute deadline.
func (k *Kernel) deadlineAfter(timeout Tick) Tick {
	if timeout == WaitForever || k.now > WaitForever-timeout {
		return WaitForever
	}
	return k.now + timeout
}

// block waits until ready reports true while t is not suspended. Caller holds
// k.mu; it is released while waiting and held again on return. q may be nil
// for waits that are only released by time or by Resume. A nil t is an
// external caller that is never suspended and is not tracked as a task.
func (k *Kernel) block(ctx context.Context, t *Task, q *waitQueue, deadline Tick, ready func() bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := k.ctx.Err(); err != nil {
			return ErrKernelClosed
		}
		if t != nil && t.deleted {
			return ErrTaskDeleted
		}
		suspended := t != nil && t.suspended
		if !suspended && ready() {
			return nil
		}
		if !suspended && deadline != WaitForever && k.now >= deadline {
			return ErrTimeout
		}

		w := &waiter{task: t, ready: make(chan struct{}), index: -1}
		if q != nil {
			q.push(w)
		}
		// A suspended task has no timeout; Resume re-evaluates the deadline.
		if !suspended && deadline != WaitForever {
			w.deadline = deadline
			heap.Push(&k.timeouts, w)
		}
		if t != nil {
			t.waiter = w
		}
		k.markBlocked(t)
		k.mu.Unlock()

		select {
		case <-w.ready:
		case <-ctx.Done():
		case <-k.ctx.Done():
		}

		k.mu.Lock()
		if !w.woken {
			k.wake(w)
		}
	}
}
