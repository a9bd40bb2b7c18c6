package rtos

import (
	"context"
	"fmt"
)

// Queue is a bounded FIFO. Send blocks while the queue is full and Receive
// blocks while it is empty. Items are copied in and out by value.
type Queue[T any] struct {
	k     *Kernel
	buf   []T
	head  int
	count int
	sendQ waitQueue
	recvQ waitQueue
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](k *Kernel, capacity int) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	return &Queue[T]{k: k, buf: make([]T, capacity)}, nil
}

// Send appends v, waiting up to timeout ticks for room.
func (q *Queue[T]) Send(ctx context.Context, t *Task, v T, timeout Tick) error {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineAfter(timeout)
	if err := k.block(ctx, t, &q.sendQ, deadline, func() bool { return q.count < len(q.buf) }); err != nil {
		return err
	}
	q.push(v)
	return nil
}

// TrySend appends v if there is room.
func (q *Queue[T]) TrySend(v T) bool {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	if q.count == len(q.buf) {
		return false
	}
	q.push(v)
	return true
}

// Receive removes the oldest item, waiting up to timeout ticks for one.
func (q *Queue[T]) Receive(ctx context.Context, t *Task, timeout Tick) (T, error) {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineAfter(timeout)
	if err := k.block(ctx, t, &q.recvQ, deadline, func() bool { return q.count > 0 }); err != nil {
		var zero T
		return zero, err
	}
	return q.pop(), nil
}

// TryReceive removes the oldest item if there is one.
func (q *Queue[T]) TryReceive() (T, bool) {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// push and pop require k.mu.
func (q *Queue[T]) push(v T) {
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	q.recvQ.wakeOne(q.k)
}

func (q *Queue[T]) pop() T {
	var zero T
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.sendQ.wakeOne(q.k)
	return v
}
