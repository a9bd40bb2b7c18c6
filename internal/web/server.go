// Package web provides an HTTP status server for the demo.
package web

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sweeney/tickdemo/internal/status"
)

// DefaultPushInterval is how often /ws clients receive the status.
const DefaultPushInterval = time.Second

// FrameSource provides the last presented frame as PNG.
type FrameSource interface {
	WritePNG(w io.Writer) error
}

// Options are the optional parts of the server.
type Options struct {
	Frames       FrameSource  // serves /frame.png when set
	Metrics      http.Handler // serves /metrics when set
	PushInterval time.Duration
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	opts       Options

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	if opts.PushInterval <= 0 {
		opts.PushInterval = DefaultPushInterval
	}
	s := &Server{tracker: tracker, opts: opts, done: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/frame.png", s.handleFrame)
	mux.HandleFunc("/ws", s.handleWS)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and closes live feeds.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap, s.opts.Frames != nil); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if s.opts.Frames == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.opts.Frames.WritePNG(w); err != nil {
		log.Printf("web: encode frame: %v", err)
	}
}
