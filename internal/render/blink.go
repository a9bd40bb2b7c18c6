package render

import (
	"context"

	"github.com/sweeney/tickdemo/internal/rtos"
)

// CircleRadius is the radius of the blinking circles.
const CircleRadius = 40

// Blinker returns a task body that shows layer for half of period and hides
// it for the other half. The layer must already be added to surf.
func Blinker(k *rtos.Kernel, surf *Surface, layer *CircleLayer, period rtos.Tick) rtos.TaskFunc {
	half := period / 2
	if half == 0 {
		half = 1
	}
	return func(ctx context.Context, t *rtos.Task) error {
		for {
			surf.Update(func() { layer.Visible = true })
			if err := k.Delay(ctx, t, half); err != nil {
				return err
			}
			surf.Update(func() { layer.Visible = false })
			if err := k.Delay(ctx, t, half); err != nil {
				return err
			}
		}
	}
}
