package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"

	"github.com/fogleman/gg"
)

// Canvas is a Screen backed by an in-memory RGBA image drawn with gg. Each
// UpdateScreen copies the back buffer into the front frame served to
// viewers.
type Canvas struct {
	dc    *gg.Context
	bound atomic.Bool

	mu    sync.RWMutex
	front *image.RGBA
	frame uint64
}

// NewCanvas creates a canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(White)
	dc.Clear()
	c := &Canvas{dc: dc}
	c.front = c.snapshot()
	return c
}

// Clear fills the back buffer.
func (c *Canvas) Clear(col color.Color) {
	c.dc.SetColor(col)
	c.dc.Clear()
}

// DrawText draws text with its baseline at y.
func (c *Canvas) DrawText(text string, x, y float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawString(text, x, y)
}

// DrawFilledBox draws a filled rectangle.
func (c *Canvas) DrawFilledBox(x, y, w, h float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(x, y, w, h)
	c.dc.Fill()
}

// DrawCircle draws a filled circle.
func (c *Canvas) DrawCircle(x, y, r float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawCircle(x, y, r)
	c.dc.Fill()
}

// Bind claims the canvas for one presenter.
func (c *Canvas) Bind() (Presenter, error) {
	if !c.bound.CompareAndSwap(false, true) {
		return nil, ErrAlreadyBound
	}
	return canvasPresenter{c}, nil
}

type canvasPresenter struct {
	c *Canvas
}

func (p canvasPresenter) UpdateScreen() error {
	front := p.c.snapshot()
	p.c.mu.Lock()
	p.c.front = front
	p.c.frame++
	p.c.mu.Unlock()
	return nil
}

func (c *Canvas) snapshot() *image.RGBA {
	src := c.dc.Image().(*image.RGBA)
	return &image.RGBA{
		Pix:    append([]uint8(nil), src.Pix...),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
}

// Frame returns the last presented frame and its sequence number. The image
// must not be modified.
func (c *Canvas) Frame() (*image.RGBA, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.front, c.frame
}

// WritePNG encodes the last presented frame.
func (c *Canvas) WritePNG(w io.Writer) error {
	img, _ := c.Frame()
	return png.Encode(w, img)
}
