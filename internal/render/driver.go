package render

import (
	"context"
	"fmt"
	"log"

	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/rtos"
)

// DefaultFramePeriod is the render period in ticks (50 Hz at 1 ms ticks).
const DefaultFramePeriod rtos.Tick = 20

// DriverConfig wires the render driver.
type DriverConfig struct {
	Surface *Surface
	Input   input.Source
	Buttons *input.Buffer

	// Handle receives the buffered input state once per frame.
	Handle func(s input.State, now rtos.Tick)
	// HUD draws per-frame text on top of the layers, under the screen lock.
	HUD func(s Screen)
	// OnFrame runs after each presented frame.
	OnFrame func(now rtos.Tick, fps int)

	Period  rtos.Tick
	Metrics *metrics.Metrics
}

// Driver returns the render task body. It binds the screen, then once per
// frame period fetches input, copies it into the button buffer, hands it to
// Handle, composes the frame and presents it. It is the only caller of
// UpdateScreen.
func Driver(k *rtos.Kernel, cfg DriverConfig) rtos.TaskFunc {
	if cfg.Period == 0 {
		cfg.Period = DefaultFramePeriod
	}
	if cfg.Buttons == nil {
		cfg.Buttons = &input.Buffer{}
	}
	return func(ctx context.Context, t *rtos.Task) error {
		presenter, err := cfg.Surface.Screen().Bind()
		if err != nil {
			return fmt.Errorf("render driver: %w", err)
		}
		fps := NewFPS(k.TickRate())
		lastWake := k.Now()

		for {
			frame(k, cfg, presenter, fps)
			if err := k.DelayUntil(ctx, t, &lastWake, cfg.Period); err != nil {
				return err
			}
		}
	}
}

func frame(k *rtos.Kernel, cfg DriverConfig, presenter Presenter, fps *FPS) {
	if cfg.Input != nil {
		if err := cfg.Input.FetchEvents(true); err != nil {
			log.Printf("render: fetch events: %v", err)
		}
		cfg.Buttons.Update(cfg.Input)
	}

	now := k.Now()
	if st, ok := cfg.Buttons.Read(); ok && cfg.Handle != nil {
		cfg.Handle(st, now)
	}

	avg := fps.Sample(now)
	err := cfg.Surface.Compose(White, func(s Screen) error {
		if cfg.HUD != nil {
			cfg.HUD(s)
		}
		s.DrawText(fmt.Sprintf("FPS: %2d", avg), Width/2, Height-FontSize*1.5, Skyblue)
		return presenter.UpdateScreen()
	})
	if err != nil {
		log.Printf("render: update screen: %v", err)
		return
	}

	cfg.Metrics.RecordFrame(avg)
	if cfg.OnFrame != nil {
		cfg.OnFrame(now, avg)
	}
}
