package rtos

import (
	"context"
	"fmt"
)

// Semaphore is a counting semaphore. A binary semaphore has a maximum count
// of one and starts empty.
type Semaphore struct {
	k     *Kernel
	count uint32
	max   uint32
	q     waitQueue
}

// NewBinarySemaphore creates an empty binary semaphore.
func (k *Kernel) NewBinarySemaphore() *Semaphore {
	return &Semaphore{k: k, max: 1}
}

// NewCountingSemaphore creates a semaphore holding initial of max tokens.
func (k *Kernel) NewCountingSemaphore(max, initial uint32) (*Semaphore, error) {
	if max == 0 || initial > max {
		return nil, fmt.Errorf("counting semaphore max=%d initial=%d: %w", max, initial, ErrInvalidCapacity)
	}
	return &Semaphore{k: k, count: initial, max: max}, nil
}

// Give releases one token. It returns false if the semaphore is already full.
// Give never blocks and is safe from timer callbacks.
func (s *Semaphore) Give() bool {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	if s.count >= s.max {
		return false
	}
	s.count++
	s.q.wakeOne(s.k)
	return true
}

// Take acquires one token, waiting up to timeout ticks.
func (s *Semaphore) Take(ctx context.Context, t *Task, timeout Tick) error {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineAfter(timeout)
	if err := k.block(ctx, t, &s.q, deadline, func() bool { return s.count > 0 }); err != nil {
		return err
	}
	s.count--
	return nil
}

// TryTake acquires one token without waiting.
func (s *Semaphore) TryTake() bool {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Count returns the number of available tokens.
func (s *Semaphore) Count() uint32 {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.count
}
