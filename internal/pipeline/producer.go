// Package pipeline runs the periodic tick producers and the consumer that
// aggregates their messages into per-tick rows.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/rtos"
)

// DefaultHorizon is the last tick index a producer emits.
const DefaultHorizon rtos.Tick = 15

// TickMessage is sent by a producer each time its period elapses.
type TickMessage struct {
	TickIndex rtos.Tick
	Tag       int
}

// ProducerConfig parameterizes one producer.
type ProducerConfig struct {
	Tag     int
	Period  rtos.Tick
	Horizon rtos.Tick

	// RebaseOnResume restarts elapsed-tick accounting when the producer is
	// resumed after passing its horizon. By default the producer keeps its
	// first baseline and suspends again straight away.
	RebaseOnResume bool
}

// NewQueue creates the tick queue sized so that every message of one full
// run of producers producers fits without blocking.
func NewQueue(k *rtos.Kernel, horizon rtos.Tick, producers int) (*rtos.Queue[TickMessage], error) {
	q, err := rtos.NewQueue[TickMessage](k, int(horizon)*producers)
	if err != nil {
		return nil, fmt.Errorf("tick queue: %w", err)
	}
	return q, nil
}

// Producer returns a task body that waits for every multiple of cfg.Period
// ticks since its first run and sends the elapsed tick count tagged with
// cfg.Tag. Once the elapsed count passes cfg.Horizon it suspends itself and
// stays suspended until resumed from outside.
func Producer(k *rtos.Kernel, q *rtos.Queue[TickMessage], cfg ProducerConfig, m *metrics.Metrics) rtos.TaskFunc {
	if cfg.Horizon == 0 {
		cfg.Horizon = DefaultHorizon
	}
	return func(ctx context.Context, t *rtos.Task) error {
		if cfg.Period == 0 {
			return rtos.ErrInvalidPeriod
		}
		start := k.Now()
		lastWake := start

		for {
			if err := k.DelayUntil(ctx, t, &lastWake, cfg.Period); err != nil {
				return err
			}
			elapsed := lastWake - start

			if elapsed > cfg.Horizon {
				if err := t.SuspendSelf(ctx); err != nil {
					return err
				}
				if cfg.RebaseOnResume {
					start = k.Now()
					lastWake = start
				}
				continue
			}

			msg := TickMessage{TickIndex: elapsed, Tag: cfg.Tag}
			if err := q.Send(ctx, t, msg, rtos.WaitForever); err != nil {
				return err
			}
			m.RecordProduced(cfg.Tag)
			m.RecordQueueDepth("ticks", q.Len())
		}
	}
}
