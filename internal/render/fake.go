package render

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
)

// FakeScreen records draw calls for test assertions. The ops of the frame
// being drawn accumulate in the back buffer and move to Frames on
// UpdateScreen.
type FakeScreen struct {
	mu     sync.Mutex
	back   []string
	Frames [][]string
	bound  bool

	// UpdateError, if set, is returned by UpdateScreen.
	UpdateError error
}

// NewFakeScreen creates an empty FakeScreen.
func NewFakeScreen() *FakeScreen {
	return &FakeScreen{}
}

func (f *FakeScreen) record(format string, args ...any) {
	f.mu.Lock()
	f.back = append(f.back, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

// Clear starts a new back buffer.
func (f *FakeScreen) Clear(c color.Color) {
	f.mu.Lock()
	f.back = nil
	f.mu.Unlock()
}

// DrawText records a text op.
func (f *FakeScreen) DrawText(text string, x, y float64, c color.Color) {
	f.record("text %q %.0f,%.0f", text, x, y)
}

// DrawFilledBox records a box op.
func (f *FakeScreen) DrawFilledBox(x, y, w, h float64, c color.Color) {
	f.record("box %.0f,%.0f %.0fx%.0f", x, y, w, h)
}

// DrawCircle records a circle op.
func (f *FakeScreen) DrawCircle(x, y, r float64, c color.Color) {
	f.record("circle %.0f,%.0f r%.0f", x, y, r)
}

// Bind claims the fake once.
func (f *FakeScreen) Bind() (Presenter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound {
		return nil, ErrAlreadyBound
	}
	f.bound = true
	return fakePresenter{f}, nil
}

type fakePresenter struct {
	f *FakeScreen
}

func (p fakePresenter) UpdateScreen() error {
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	if p.f.UpdateError != nil {
		return p.f.UpdateError
	}
	p.f.Frames = append(p.f.Frames, append([]string(nil), p.f.back...))
	return nil
}

// FrameCount returns the number of presented frames.
func (f *FakeScreen) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Frames)
}

// LastFrame returns the ops of the last presented frame joined by newlines.
func (f *FakeScreen) LastFrame() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Frames) == 0 {
		return ""
	}
	return strings.Join(f.Frames[len(f.Frames)-1], "\n")
}
