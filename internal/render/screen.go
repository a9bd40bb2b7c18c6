// Package render is the drawing boundary: a Screen that tasks draw on, a
// screen lock shared by everything that draws, and the render driver task
// that is the only caller of UpdateScreen.
package render

import (
	"errors"
	"image/color"
	"sync"
)

// Screen dimensions used by the demo layout.
const (
	Width    = 640
	Height   = 480
	FontSize = 13
)

// Palette.
var (
	White   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	Black   = color.RGBA{0x00, 0x00, 0x00, 0xff}
	Red     = color.RGBA{0xe0, 0x1b, 0x24, 0xff}
	Skyblue = color.RGBA{0x87, 0xce, 0xeb, 0xff}
	Gray    = color.RGBA{0x9a, 0x99, 0x96, 0xff}
)

// ErrAlreadyBound is returned by a second Bind.
var ErrAlreadyBound = errors.New("render: screen already bound")

// Screen is the drawing surface. Draw calls go to a back buffer that becomes
// visible on the next UpdateScreen.
type Screen interface {
	Clear(c color.Color)
	DrawText(text string, x, y float64, c color.Color)
	DrawFilledBox(x, y, w, h float64, c color.Color)
	DrawCircle(x, y, r float64, c color.Color)

	// Bind claims the right to present frames. It succeeds once per screen.
	Bind() (Presenter, error)
}

// Presenter publishes the back buffer. Only the task that bound the screen
// holds one.
type Presenter interface {
	UpdateScreen() error
}

// Layer is retained content redrawn on every frame.
type Layer interface {
	Draw(s Screen)
}

// Surface pairs a Screen with the screen lock. Tasks change their layers
// inside Update; the render driver composes frames inside Compose.
type Surface struct {
	mu     sync.Mutex
	screen Screen
	layers []Layer
}

// NewSurface creates a surface over s.
func NewSurface(s Screen) *Surface {
	return &Surface{screen: s}
}

// Screen returns the underlying screen.
func (s *Surface) Screen() Screen {
	return s.screen
}

// AddLayer appends a layer; later layers draw on top.
func (s *Surface) AddLayer(l Layer) {
	s.mu.Lock()
	s.layers = append(s.layers, l)
	s.mu.Unlock()
}

// Update runs fn holding the screen lock.
func (s *Surface) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Compose clears the back buffer to bg, draws every layer and then fn, all
// under the screen lock. fn usually ends with UpdateScreen.
func (s *Surface) Compose(bg color.Color, fn func(Screen) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen.Clear(bg)
	for _, l := range s.layers {
		l.Draw(s.screen)
	}
	if fn == nil {
		return nil
	}
	return fn(s.screen)
}

// TextLayer draws lines of text from a top-left origin. Mutate it only
// inside Surface.Update.
type TextLayer struct {
	X, Y  float64
	Color color.Color
	lines []string
}

// NewTextLayer creates an empty text layer.
func NewTextLayer(x, y float64, c color.Color) *TextLayer {
	return &TextLayer{X: x, Y: y, Color: c}
}

// SetLines replaces the text.
func (l *TextLayer) SetLines(lines []string) {
	l.lines = append(l.lines[:0], lines...)
}

// Lines returns a copy of the text.
func (l *TextLayer) Lines() []string {
	return append([]string(nil), l.lines...)
}

// Draw renders one line per FontSize*1.5 pixels.
func (l *TextLayer) Draw(s Screen) {
	for i, line := range l.lines {
		s.DrawText(line, l.X, l.Y+float64(i)*FontSize*1.5, l.Color)
	}
}

// CircleLayer draws a filled circle while visible.
type CircleLayer struct {
	X, Y, R float64
	Color   color.Color
	Visible bool
}

// Draw renders the circle if visible.
func (l *CircleLayer) Draw(s Screen) {
	if l.Visible {
		s.DrawCircle(l.X, l.Y, l.R, l.Color)
	}
}
