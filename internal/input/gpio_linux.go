//go:build linux

package input

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/tickdemo/internal/debounce"
	"github.com/sweeney/tickdemo/internal/rtos"
)

type gpioLine struct {
	key    Key
	line   *gpiocdev.Line
	filter *debounce.Level
}

// GPIOSource reads active-low push buttons through the Linux GPIO character
// device. Lines are requested as inputs with pull-ups, so a pressed button
// reads 0.
type GPIOSource struct {
	chip  *gpiocdev.Chip
	lines []gpioLine
	cfg   GPIOConfig

	mu    sync.Mutex
	state State
}

// NewGPIOSource requests the configured lines.
func NewGPIOSource(cfg GPIOConfig) (*GPIOSource, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	if len(cfg.Pins) == 0 {
		cfg.Pins = DefaultPins
	}

	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	s := &GPIOSource{chip: chip, cfg: cfg}
	for key, pin := range cfg.Pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", key, pin, err)
		}
		s.lines = append(s.lines, gpioLine{key: key, line: line, filter: debounce.NewLevel(cfg.Hold)})
	}
	return s, nil
}

// FetchEvents samples every line. GPIO sampling never blocks, so
// nonblocking has no effect.
func (s *GPIOSource) FetchEvents(nonblocking bool) error {
	now := s.now()
	var next State
	for _, l := range s.lines {
		v, err := l.line.Value()
		if err != nil {
			return fmt.Errorf("read %s pin: %w", l.key, err)
		}
		l.filter.Process(v == 0, now)
		next.Keys[l.key] = l.filter.Baselined && l.filter.Stable
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

func (s *GPIOSource) now() rtos.Tick {
	if s.cfg.Now == nil {
		return 0
	}
	return s.cfg.Now()
}

// Snapshot returns the last sampled state.
func (s *GPIOSource) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the lines and the chip. Lines are put back to plain inputs
// first so the pins are left in their boot state.
func (s *GPIOSource) Close() error {
	var errs []error
	for _, l := range s.lines {
		if err := l.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.key, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.key, err))
		}
	}
	s.lines = nil
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
