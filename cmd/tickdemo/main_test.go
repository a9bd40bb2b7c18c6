package main

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/tickdemo/internal/app"
	"github.com/sweeney/tickdemo/internal/config"
	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/mqtt"
	"github.com/sweeney/tickdemo/internal/render"
	"github.com/sweeney/tickdemo/internal/rtos"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", overrides{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.TickRateHz != 1000 {
		t.Errorf("TickRateHz: got %d, want 1000", cfg.TickRateHz)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: got %q, want :8080", cfg.HTTP.Addr)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	off := "off"
	broker := "tcp://localhost:1883"
	tick := 500
	debounce := uint64(50)

	cfg, err := loadConfig("", overrides{HTTP: &off, Broker: &broker, TickRate: &tick, Debounce: &debounce})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("HTTP.Addr: got %q, want disabled", cfg.HTTP.Addr)
	}
	if cfg.MQTT.Broker != broker {
		t.Errorf("MQTT.Broker: got %q, want %q", cfg.MQTT.Broker, broker)
	}
	if cfg.TickRateHz != 500 {
		t.Errorf("TickRateHz: got %d, want 500", cfg.TickRateHz)
	}
	if cfg.Input.DebounceTicks != 50 {
		t.Errorf("DebounceTicks: got %d, want 50", cfg.Input.DebounceTicks)
	}
}

func TestLoadConfigFileThenOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickdemo.yaml")
	data := []byte("dispatch:\n  policy: alternate\nhttp:\n  addr: \":9000\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	addr := ":9100"

	cfg, err := loadConfig(path, overrides{HTTP: &addr})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Dispatch.Policy != "alternate" {
		t.Errorf("Policy: got %q, want alternate", cfg.Dispatch.Policy)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Errorf("HTTP.Addr: got %q, want flag value :9100", cfg.HTTP.Addr)
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	tick := 0
	if _, err := loadConfig("", overrides{TickRate: &tick}); err == nil {
		t.Error("expected error for a zero tick rate")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), overrides{}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestGPIOPins(t *testing.T) {
	pins, err := gpioPins(map[string]int{"a": 5, "E": 13})
	if err != nil {
		t.Fatalf("gpioPins: %v", err)
	}
	if pins[input.KeyA] != 5 || pins[input.KeyE] != 13 || len(pins) != 2 {
		t.Errorf("pins: got %v", pins)
	}

	if _, err := gpioPins(map[string]int{"x": 1}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestOpenInputRemoteKeys(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.Input.RemoteKeys = true
	pub := mqtt.NewFakePublisher()

	src, err := openInput(cfg, rtos.NewKernel(1000), pub)
	if err != nil {
		t.Fatalf("openInput: %v", err)
	}
	defer src.Close()

	if !pub.Deliver(cfg.Input.KeyTopic, []byte(`{"key":"b","pressed":true}`)) {
		t.Fatal("no subscriber on the key topic")
	}
	if err := src.FetchEvents(true); err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if !src.Snapshot().Pressed(input.KeyB) {
		t.Error("remote B press not visible in the input snapshot")
	}
}

func TestOpenInputNoSources(t *testing.T) {
	src, err := openInput(config.Default(), rtos.NewKernel(1000), nil)
	if err != nil {
		t.Fatalf("openInput: %v", err)
	}
	if err := src.FetchEvents(true); err != nil {
		t.Errorf("FetchEvents: %v", err)
	}
	if src.Snapshot().Pressed(input.KeyA) {
		t.Error("empty input reports a pressed key")
	}
}

// --- supervise tests ---

func newSystem(t *testing.T, keys input.Source, pub mqtt.Publisher) *app.System {
	t.Helper()
	cfg := config.Default()
	cfg.HTTP.Addr = ""
	sys, err := app.New(app.Options{
		Config:    cfg,
		Screen:    render.NewFakeScreen(),
		Input:     keys,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(sys.Close)
	return sys
}

func TestSuperviseSignal(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	sys := newSystem(t, input.NewFake(), pub)
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM

	reason, err := supervise(context.Background(), sys, sig)
	if err != nil {
		t.Fatalf("supervise returned error: %v", err)
	}
	if reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", reason)
	}

	sys.PublishStatus("SHUTDOWN", reason)
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Reason != "SIGTERM" {
		t.Errorf("system events: got %+v, want one SHUTDOWN with reason SIGTERM", pub.SystemEvents)
	}
}

func TestSuperviseQuitKey(t *testing.T) {
	keys := input.NewFake()
	keys.Press(input.KeyQ)
	sys := newSystem(t, keys, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reason, err := supervise(ctx, sys, make(chan os.Signal))
	if err != nil {
		t.Fatalf("supervise returned error: %v", err)
	}
	if reason != "QUIT" {
		t.Errorf("reason: got %q, want QUIT", reason)
	}
}

func TestSuperviseContextCancelled(t *testing.T) {
	sys := newSystem(t, input.NewFake(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reason, err := supervise(ctx, sys, make(chan os.Signal))
	if err != nil {
		t.Fatalf("supervise returned error: %v", err)
	}
	if reason != "STOPPED" {
		t.Errorf("reason: got %q, want STOPPED", reason)
	}
}
