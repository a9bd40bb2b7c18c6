package rtos

import "errors"

var (
	// ErrTimeout is returned when a blocking call's timeout elapses.
	ErrTimeout = errors.New("rtos: timeout")
	// ErrTaskDeleted is returned to a task that was deleted while blocked.
	ErrTaskDeleted = errors.New("rtos: task deleted")
	// ErrKernelClosed is returned once the kernel has been closed.
	ErrKernelClosed = errors.New("rtos: kernel closed")
	// ErrInvalidCapacity is returned for a queue or semaphore with no room.
	ErrInvalidCapacity = errors.New("rtos: invalid capacity")
	// ErrInvalidPeriod is returned for a timer or periodic wait with a zero period.
	ErrInvalidPeriod = errors.New("rtos: invalid period")
	// ErrNilFunc is returned when a task body or timer callback is nil.
	ErrNilFunc = errors.New("rtos: nil function")
)
