// Command tickdemo runs the tick-driven multitasking demonstrator: debounced
// keys drive a shared counter through a semaphore and a task notification,
// a mode key swaps to a producer/consumer pipeline, and the state is shown
// on a rendered screen, an HTTP status page and MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/tickdemo/internal/app"
	"github.com/sweeney/tickdemo/internal/config"
	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/mqtt"
	"github.com/sweeney/tickdemo/internal/rtos"
	"github.com/sweeney/tickdemo/internal/status"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (built-in defaults when empty)")
	httpAddr := flag.String("http", "", `HTTP status address, overrides the config ("off" disables)`)
	broker := flag.String("broker", "", "MQTT broker address, overrides the config")
	tick := flag.Int("tick", 0, "Tick rate in Hz, overrides the config")
	debounce := flag.Uint64("debounce", 0, "Key debounce window in ticks, overrides the config")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")

	flag.Parse()

	var o overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			o.HTTP = httpAddr
		case "broker":
			o.Broker = broker
		case "tick":
			o.TickRate = tick
		case "debounce":
			o.Debounce = debounce
		}
	})

	cfg, err := loadConfig(*configPath, o)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// overrides holds the flags given on the command line. Nil fields were not
// set and leave the config value alone.
type overrides struct {
	HTTP     *string
	Broker   *string
	TickRate *int
	Debounce *uint64
}

func loadConfig(path string, o overrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if o.HTTP != nil {
		cfg.HTTP.Addr = *o.HTTP
		if cfg.HTTP.Addr == "off" {
			cfg.HTTP.Addr = ""
		}
	}
	if o.Broker != nil {
		cfg.MQTT.Broker = *o.Broker
	}
	if o.TickRate != nil {
		cfg.TickRateHz = *o.TickRate
	}
	if o.Debounce != nil {
		cfg.Input.DebounceTicks = *o.Debounce
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	runID := uuid.NewString()
	k := rtos.NewKernel(cfg.TickRateHz)

	var publisher mqtt.Publisher
	var subscriber input.Subscriber
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
		if err != nil {
			k.Close()
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, subscriber = p, p
	}

	src, err := openInput(cfg, k, subscriber)
	if err != nil {
		k.Close()
		return err
	}
	defer src.Close()

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(runID, time.Now(), app.StatusConfig(cfg))
	sys, err := app.New(app.Options{
		Config:    cfg,
		Kernel:    k,
		Input:     src,
		Publisher: publisher,
		Tracker:   tracker,
	})
	if err != nil {
		return fmt.Errorf("init demo: %w", err)
	}
	defer sys.Close()

	sys.PublishStatus("STARTUP", "")
	log.Printf("started: run=%s tick=%dHz debounce=%d policy=%s producers=%v broker=%q http=%q",
		runID, cfg.TickRateHz, cfg.DebounceWindowTicks(), cfg.Dispatch.Policy, cfg.Pipeline.Periods, cfg.MQTT.Broker, cfg.HTTP.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	reason, err := supervise(context.Background(), sys, sigCh)
	sys.PublishStatus("SHUTDOWN", reason)
	return err
}

// supervise runs sys until a signal arrives, the quit key is pressed or a
// component fails, and returns the shutdown reason.
func supervise(ctx context.Context, sys *app.System, sig <-chan os.Signal) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sys.Run(ctx)
	}()

	select {
	case s := <-sig:
		log.Printf("received %v, shutting down", s)
		cancel()
		return signalName(s), <-done
	case err := <-done:
		if errors.Is(err, app.ErrQuit) {
			log.Printf("quit key pressed, shutting down")
			return "QUIT", nil
		}
		if err == nil {
			return "STOPPED", nil
		}
		return "ERROR", err
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// openInput combines the enabled key sources. With none enabled the demo
// runs without keys.
func openInput(cfg *config.Config, k *rtos.Kernel, sub input.Subscriber) (input.Source, error) {
	var sources []input.Source
	fail := func(err error) (input.Source, error) {
		input.NewMulti(sources...).Close()
		return nil, err
	}

	if g := cfg.Input.GPIO; g.Enabled {
		pins, err := gpioPins(g.Pins)
		if err != nil {
			return fail(err)
		}
		src, err := input.NewGPIOSource(input.GPIOConfig{
			Chip: g.Chip,
			Pins: pins,
			Hold: rtos.Tick(g.HoldTicks),
			Now:  k.Now,
		})
		if err != nil {
			return fail(fmt.Errorf("init gpio: %w", err))
		}
		sources = append(sources, src)
		log.Printf("input: gpio buttons on %s", g.Chip)
	}

	if cfg.Input.RemoteKeys && sub != nil {
		src, err := input.NewMQTTSource(sub, cfg.Input.KeyTopic)
		if err != nil {
			return fail(fmt.Errorf("init remote keys: %w", err))
		}
		sources = append(sources, src)
		log.Printf("input: remote keys on %s", cfg.Input.KeyTopic)
	}

	if len(sources) == 0 {
		log.Printf("input: no key sources enabled")
	}
	return input.NewMulti(sources...), nil
}

func gpioPins(names map[string]int) (map[input.Key]int, error) {
	pins := make(map[input.Key]int, len(names))
	for name, pin := range names {
		key, ok := input.ParseKey(name)
		if !ok {
			return nil, fmt.Errorf("gpio pins: unknown key %q", name)
		}
		pins[key] = pin
	}
	return pins, nil
}
