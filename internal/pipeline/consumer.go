package pipeline

import (
	"context"
	"log"

	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/render"
	"github.com/sweeney/tickdemo/internal/rtos"
)

// ConsumerConfig wires the aggregation consumer.
type ConsumerConfig struct {
	Queue   *rtos.Queue[TickMessage]
	Buffer  *Buffer
	Surface *render.Surface
	Layer   *render.TextLayer
	Period  rtos.Tick
	Metrics *metrics.Metrics

	// OnRows receives the rows after every cycle that changed them.
	OnRows func(rows []string)
}

// Consumer returns a task body that, once per period, takes at most one
// message off the queue, adds it to the buffer and redraws the rows. A
// backlog is worked off one message per cycle.
func Consumer(k *rtos.Kernel, cfg ConsumerConfig) rtos.TaskFunc {
	if cfg.Period == 0 {
		cfg.Period = render.DefaultFramePeriod
	}
	return func(ctx context.Context, t *rtos.Task) error {
		lastWake := k.Now()
		for {
			if err := k.DelayUntil(ctx, t, &lastWake, cfg.Period); err != nil {
				return err
			}

			msg, ok := cfg.Queue.TryReceive()
			if !ok {
				continue
			}
			cfg.Metrics.RecordConsumed()
			cfg.Metrics.RecordQueueDepth("ticks", cfg.Queue.Len())
			if !cfg.Buffer.Add(msg) {
				cfg.Metrics.RecordDropped()
				log.Printf("pipeline: tick %d full, dropped tag %d", msg.TickIndex, msg.Tag)
				continue
			}

			rows := cfg.Buffer.Rows()
			if cfg.Surface != nil && cfg.Layer != nil {
				cfg.Surface.Update(func() { cfg.Layer.SetLines(rows) })
			}
			if cfg.OnRows != nil {
				cfg.OnRows(rows)
			}
		}
	}
}
