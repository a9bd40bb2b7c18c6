package render

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/rtos"
)

func newTestKernel(t *testing.T) (*rtos.Kernel, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	k := rtos.NewKernel(1000)
	t.Cleanup(k.Close)
	return k, ctx
}

func TestFPSMovingAverage(t *testing.T) {
	f := NewFPS(1000)

	if got := f.Sample(0); got != 0 {
		t.Errorf("first sample = %d, want 0", got)
	}
	if got := f.Sample(20); got != 25 {
		t.Errorf("second sample = %d, want 25", got)
	}

	now := rtos.Tick(20)
	var got int
	for i := 0; i < FPSAverageCount; i++ {
		now += 20
		got = f.Sample(now)
	}
	if got != 50 {
		t.Errorf("steady state = %d, want 50", got)
	}
}

func TestFPSSameTickCountsAsZero(t *testing.T) {
	f := NewFPS(1000)
	f.Sample(10)
	if got := f.Sample(10); got != 50 {
		// 100 (10 ticks) and 0 (same tick) average to 50
		t.Errorf("got %d, want 50", got)
	}
}

func TestComposeDrawsLayersInOrder(t *testing.T) {
	fake := NewFakeScreen()
	surf := NewSurface(fake)
	text := NewTextLayer(10, 20, Black)
	circle := &CircleLayer{X: 100, Y: 100, R: 40, Color: Red}
	surf.AddLayer(text)
	surf.AddLayer(circle)

	surf.Update(func() {
		text.SetLines([]string{"one", "two"})
		circle.Visible = true
	})

	p, err := fake.Bind()
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	err = surf.Compose(White, func(s Screen) error {
		s.DrawText("hud", 0, 0, Black)
		return p.UpdateScreen()
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	want := strings.Join([]string{
		`text "one" 10,20`,
		`text "two" 10,40`,
		`circle 100,100 r40`,
		`text "hud" 0,0`,
	}, "\n")
	if got := fake.LastFrame(); got != want {
		t.Errorf("frame ops:\n%s\nwant:\n%s", got, want)
	}
}

func TestComposeReturnsPresenterError(t *testing.T) {
	fake := NewFakeScreen()
	fake.UpdateError = errors.New("lost context")
	surf := NewSurface(fake)
	p, _ := fake.Bind()

	err := surf.Compose(White, func(Screen) error { return p.UpdateScreen() })
	if err == nil {
		t.Fatal("expected error from UpdateScreen")
	}
	if fake.FrameCount() != 0 {
		t.Errorf("failed update presented %d frames", fake.FrameCount())
	}
}

func TestBindOnce(t *testing.T) {
	for _, s := range []Screen{NewFakeScreen(), NewCanvas(32, 32)} {
		if _, err := s.Bind(); err != nil {
			t.Fatalf("%T first Bind: %v", s, err)
		}
		if _, err := s.Bind(); !errors.Is(err, ErrAlreadyBound) {
			t.Errorf("%T second Bind: got %v, want ErrAlreadyBound", s, err)
		}
	}
}

func TestCanvasPresentsBackBuffer(t *testing.T) {
	c := NewCanvas(64, 64)
	p, err := c.Bind()
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	c.Clear(White)
	c.DrawCircle(32, 32, 10, Red)

	img, seq := c.Frame()
	if seq != 0 {
		t.Errorf("frame before UpdateScreen = %d, want 0", seq)
	}
	if got := img.RGBAAt(32, 32); got != White {
		t.Errorf("front buffer changed before UpdateScreen: %v", got)
	}

	if err := p.UpdateScreen(); err != nil {
		t.Fatalf("UpdateScreen: %v", err)
	}
	img, seq = c.Frame()
	if seq != 1 {
		t.Errorf("frame = %d, want 1", seq)
	}
	if got := img.RGBAAt(32, 32); got != Red {
		t.Errorf("center pixel = %v, want %v", got, Red)
	}

	var buf bytes.Buffer
	if err := c.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("png bounds = %v, want 64x64", b)
	}
}

func TestBlinkerTogglesEveryHalfPeriod(t *testing.T) {
	k, ctx := newTestKernel(t)
	surf := NewSurface(NewFakeScreen())
	layer := &CircleLayer{X: 10, Y: 10, R: CircleRadius, Color: Red}
	surf.AddLayer(layer)

	if _, err := k.CreateTask("blink", rtos.PriorityLow, Blinker(k, surf, layer, 1000)); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	visible := func() bool {
		var v bool
		surf.Update(func() { v = layer.Visible })
		return v
	}

	tests := []struct {
		step rtos.Tick
		want bool
	}{
		{step: 0, want: true},
		{step: 499, want: true},
		{step: 1, want: false},
		{step: 500, want: true},
		{step: 500, want: false},
	}
	for _, tt := range tests {
		if err := k.Step(ctx, tt.step); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if got := visible(); got != tt.want {
			t.Errorf("at tick %d visible = %v, want %v", k.Now(), got, tt.want)
		}
	}
}

func TestDriverPresentsFramesAndHandlesInput(t *testing.T) {
	k, ctx := newTestKernel(t)
	fake := NewFakeScreen()
	surf := NewSurface(fake)
	src := input.NewFake()
	src.Press(input.KeyA)

	var mu sync.Mutex
	var handled []rtos.Tick
	var frames int

	_, err := k.CreateTask("render", rtos.PriorityMax, Driver(k, DriverConfig{
		Surface: surf,
		Input:   src,
		Handle: func(s input.State, now rtos.Tick) {
			if !s.Pressed(input.KeyA) {
				return
			}
			mu.Lock()
			handled = append(handled, now)
			mu.Unlock()
		},
		HUD: func(s Screen) {
			s.DrawText("Counter: 0", 10, 10, Black)
		},
		OnFrame: func(now rtos.Tick, fps int) {
			mu.Lock()
			frames++
			mu.Unlock()
		},
	}))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := k.Step(ctx, 40); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := fake.FrameCount(); got != 3 {
		t.Errorf("presented %d frames, want 3 (ticks 0, 20, 40)", got)
	}
	mu.Lock()
	if frames != 3 {
		t.Errorf("OnFrame ran %d times, want 3", frames)
	}
	if len(handled) != 3 || handled[2] != 40 {
		t.Errorf("handled at %v, want [0 20 40]", handled)
	}
	mu.Unlock()

	last := fake.LastFrame()
	if !strings.Contains(last, `"Counter: 0"`) {
		t.Errorf("HUD missing from frame:\n%s", last)
	}
	if !strings.Contains(last, `"FPS: 33"`) {
		// samples 0, 50, 50 average to 33
		t.Errorf("FPS text missing from frame:\n%s", last)
	}
	if src.Fetches() != 3 {
		t.Errorf("fetched events %d times, want 3", src.Fetches())
	}
	if _, err := fake.Bind(); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("driver did not hold the screen binding: %v", err)
	}
}
