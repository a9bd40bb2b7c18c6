// Package config loads the demo's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/tickdemo/internal/debounce"
)

// Config is the complete tickdemo configuration. Periods are in scheduler
// ticks.
type Config struct {
	TickRateHz       int            `yaml:"tick_rate_hz"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"`
	Input            InputConfig    `yaml:"input"`
	Dispatch         DispatchConfig `yaml:"dispatch"`
	Counter          CounterConfig  `yaml:"counter"`
	Pipeline         PipelineConfig `yaml:"pipeline"`
	Mode             ModeConfig     `yaml:"mode"`
	Render           RenderConfig   `yaml:"render"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	HTTP             HTTPConfig     `yaml:"http"`
}

// InputConfig selects input sources and debouncing.
type InputConfig struct {
	DebounceMs     int        `yaml:"debounce_ms"`
	DebounceTicks  uint64     `yaml:"debounce_ticks"` // overrides debounce_ms when > 0
	SharedDebounce bool       `yaml:"shared_debounce"` // one gate for every key
	GPIO           GPIOConfig `yaml:"gpio"`
	RemoteKeys     bool       `yaml:"remote_keys"` // subscribe to key presses over MQTT
	KeyTopic       string     `yaml:"key_topic"`
}

// GPIOConfig maps buttons on a GPIO chip to keys.
type GPIOConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Chip      string         `yaml:"chip"`
	HoldTicks uint64         `yaml:"hold_ticks"`
	Pins      map[string]int `yaml:"pins"` // key name -> line offset
}

// DispatchConfig selects the dispatcher policy: keyed or alternate.
type DispatchConfig struct {
	Policy string `yaml:"policy"`
}

// CounterConfig configures the reset timer.
type CounterConfig struct {
	ResetPeriodTicks uint64 `yaml:"reset_period_ticks"`
}

// PipelineConfig configures the tick producers.
type PipelineConfig struct {
	Periods        []uint64 `yaml:"periods"` // one producer per entry
	HorizonTicks   uint64   `yaml:"horizon_ticks"`
	RebaseOnResume bool     `yaml:"rebase_on_resume"`
}

// ModeConfig configures the mode state machine.
type ModeConfig struct {
	PollPeriodTicks uint64 `yaml:"poll_period_ticks"`
	Initial         string `yaml:"initial"` // A or B
}

// RenderConfig configures the render driver.
type RenderConfig struct {
	FramePeriodTicks uint64 `yaml:"frame_period_ticks"`
	BlinkPeriodsMs   []int  `yaml:"blink_periods_ms"`
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	HeartbeatS int    `yaml:"heartbeat_s"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DebounceWindowTicks returns the key debounce window in ticks: DebounceTicks
// when set, otherwise DebounceMs at the configured tick rate.
func (c *Config) DebounceWindowTicks() uint64 {
	if c.Input.DebounceTicks > 0 {
		return c.Input.DebounceTicks
	}
	d := time.Duration(c.Input.DebounceMs) * time.Millisecond
	return uint64(d * time.Duration(c.TickRateHz) / time.Second)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TickRateHz:       1000,
		ShutdownTimeoutS: 5,
		Input: InputConfig{
			DebounceMs: debounce.DefaultWindowMs,
			GPIO: GPIOConfig{
				Chip:      "gpiochip0",
				HoldTicks: 5,
				Pins:      map[string]int{"a": 5, "b": 6, "e": 13, "s": 19, "q": 26},
			},
			KeyTopic: "tickdemo/input/keys",
		},
		Dispatch: DispatchConfig{Policy: "keyed"},
		Counter:  CounterConfig{ResetPeriodTicks: 10000},
		Pipeline: PipelineConfig{
			Periods:      []uint64{1, 2, 3, 4},
			HorizonTicks: 15,
		},
		Mode: ModeConfig{
			PollPeriodTicks: 300,
			Initial:         "A",
		},
		Render: RenderConfig{
			FramePeriodTicks: 20,
			BlinkPeriodsMs:   []int{1000, 500},
		},
		MQTT: MQTTConfig{HeartbeatS: 900},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
