package input

import "github.com/sweeney/tickdemo/internal/rtos"

// DefaultChip is the GPIO character device holding the button lines.
const DefaultChip = "gpiochip0"

// DefaultPins maps keys to BCM line offsets for the button board.
var DefaultPins = map[Key]int{
	KeyA: 5,
	KeyB: 6,
	KeyE: 13,
	KeyS: 19,
	KeyQ: 26,
}

// GPIOConfig configures a GPIOSource.
type GPIOConfig struct {
	Chip string
	Pins map[Key]int
	// Hold is how long a line must stay at a new level before it counts.
	Hold rtos.Tick
	// Now supplies the current tick for contact-bounce filtering.
	Now func() rtos.Tick
}
