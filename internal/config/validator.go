package config

import (
	"fmt"
)

var validKeys = map[string]bool{"a": true, "b": true, "e": true, "s": true, "q": true}

// Validate checks the configuration and fills in derived defaults.
func Validate(cfg *Config) error {
	if cfg.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if cfg.Input.DebounceMs < 0 {
		return fmt.Errorf("input.debounce_ms must be >= 0")
	}

	switch cfg.Dispatch.Policy {
	case "keyed", "alternate":
	case "":
		cfg.Dispatch.Policy = "keyed"
	default:
		return fmt.Errorf("dispatch.policy must be keyed or alternate, got %q", cfg.Dispatch.Policy)
	}

	if cfg.Counter.ResetPeriodTicks == 0 {
		return fmt.Errorf("counter.reset_period_ticks must be > 0")
	}
	if cfg.Mode.PollPeriodTicks == 0 {
		return fmt.Errorf("mode.poll_period_ticks must be > 0")
	}
	switch cfg.Mode.Initial {
	case "A", "B":
	case "":
		cfg.Mode.Initial = "A"
	default:
		return fmt.Errorf("mode.initial must be A or B, got %q", cfg.Mode.Initial)
	}
	if cfg.Render.FramePeriodTicks == 0 {
		return fmt.Errorf("render.frame_period_ticks must be > 0")
	}
	for _, ms := range cfg.Render.BlinkPeriodsMs {
		if ms <= 0 {
			return fmt.Errorf("render.blink_periods_ms entries must be > 0, got %d", ms)
		}
	}

	if err := ValidatePipeline(cfg.Pipeline); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}

	if cfg.Input.GPIO.Enabled {
		if cfg.Input.GPIO.Chip == "" {
			return fmt.Errorf("input.gpio.chip is required when gpio is enabled")
		}
		for key := range cfg.Input.GPIO.Pins {
			if !validKeys[key] {
				return fmt.Errorf("input.gpio.pins: unknown key %q", key)
			}
		}
	}
	if cfg.Input.RemoteKeys {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("input.remote_keys requires mqtt.broker")
		}
		if cfg.Input.KeyTopic == "" {
			cfg.Input.KeyTopic = "tickdemo/input/keys"
		}
	}
	if cfg.MQTT.HeartbeatS < 0 {
		return fmt.Errorf("mqtt.heartbeat_s must be >= 0")
	}

	return nil
}

// ValidatePipeline checks producer periods and the horizon.
func ValidatePipeline(p PipelineConfig) error {
	if len(p.Periods) < 2 || len(p.Periods) > 4 {
		return fmt.Errorf("periods: need 2 to 4 producers, got %d", len(p.Periods))
	}
	seen := make(map[uint64]bool, len(p.Periods))
	for i, period := range p.Periods {
		if period == 0 {
			return fmt.Errorf("periods[%d] must be > 0", i)
		}
		if seen[period] {
			return fmt.Errorf("periods[%d]: period %d used twice", i, period)
		}
		seen[period] = true
	}
	if p.HorizonTicks == 0 {
		return fmt.Errorf("horizon_ticks must be > 0")
	}
	return nil
}
