package render

import "github.com/sweeney/tickdemo/internal/rtos"

// FPSAverageCount is the number of frames averaged by FPS.
const FPSAverageCount = 50

// FPS computes a moving average of frames per second from frame ticks.
// Not safe for concurrent use.
type FPS struct {
	tickRate int
	periods  [FPSAverageCount]int
	total    int
	index    int
	count    int
	prev     rtos.Tick
}

// NewFPS creates a meter for a kernel running at tickRate Hz.
func NewFPS(tickRate int) *FPS {
	return &FPS{tickRate: tickRate}
}

// Sample records a frame at tick now and returns the average FPS.
func (f *FPS) Sample(now rtos.Tick) int {
	if f.count < FPSAverageCount {
		f.count++
	} else {
		f.total -= f.periods[f.index]
	}

	if now != f.prev {
		f.periods[f.index] = f.tickRate / int(now-f.prev)
		f.prev = now
	} else {
		f.periods[f.index] = 0
	}
	f.total += f.periods[f.index]
	f.index = (f.index + 1) % FPSAverageCount

	return f.total / f.count
}
