package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/tickdemo/internal/web"
)

// Run drives the kernel from wall-clock time and supervises the event
// publisher, the heartbeat and the HTTP server. It returns nil when ctx is
// cancelled, ErrQuit after the quit key, or the first component error.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Kernel.Run(ctx)
	})
	g.Go(func() error {
		return s.PublishEvents(ctx)
	})
	g.Go(func() error {
		select {
		case <-s.quit:
			return ErrQuit
		case <-ctx.Done():
			return nil
		}
	})

	if hb := time.Duration(s.Config.MQTT.HeartbeatS) * time.Second; hb > 0 && s.publisher != nil {
		g.Go(func() error {
			return s.heartbeat(ctx, hb)
		})
	}

	if addr := s.Config.HTTP.Addr; addr != "" {
		srv := s.NewWebServer(addr)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.Config.ShutdownTimeoutS)*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		log.Printf("http status server listening on %s", addr)
	}

	return g.Wait()
}

func (s *System) heartbeat(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := s.Tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v mode=%s counter=%d transitions=%d resets=%d",
				snap.Uptime().Round(time.Second), snap.Mode, snap.Counter, snap.Counts.Transitions, snap.Counts.Resets)
			s.PublishStatus("HEARTBEAT", "")
		}
	}
}

// NewWebServer creates the status server over the System's tracker, canvas
// and metrics registry.
func (s *System) NewWebServer(addr string) *web.Server {
	opts := web.Options{
		Metrics: promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}),
	}
	if s.Canvas != nil {
		opts.Frames = s.Canvas
	}
	return web.New(addr, s.Tracker, opts)
}
