package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"quote_stream/internal/infra"
	"quote_stream/internal/registry"

	"github.com/gorilla/websocket"
)

// Report is the status document served on /status and pushed on /ws/status.
type Report struct {
	Metrics     infra.MetricsSnapshot `json:"metrics"`
	Subscribers []registry.Entry      `json:"subscribers"`
	LatestSeq   uint64                `json:"latest_seq"`
	Tickers     int                   `json:"tickers"`
}

// StatusSource produces the current report.
type StatusSource interface {
	Status() Report
}

const (
	writeWait       = 2 * time.Second
	shutdownTimeout = 2 * time.Second
)

// Server exposes the status report over HTTP and websocket.
type Server struct {
	addr     string
	source   StatusSource
	push     time.Duration
	pprof    bool
	upgrader websocket.Upgrader

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a status server for addr. It does not listen until Run.
func New(addr string, source StatusSource, push time.Duration, withPprof bool) *Server {
	return &Server{
		addr:   addr,
		source: source,
		push:   push,
		pprof:  withPprof,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Localhost tooling only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws/status", s.handleStream)
	if s.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Status monitor listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.stopStreams()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	s.stopStreams()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Status monitor shutdown failed", slog.Any("error", err))
	}
	s.wg.Wait()
	return nil
}

func (s *Server) stopStreams() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Status()); err != nil {
		slog.Warn("Failed to write status", slog.Any("error", err))
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Counted before the hijack so Serve's Wait always sees it.
	s.wg.Add(1)
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	// Reader goroutine: processes control frames and notices the peer leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.push)
	defer ticker.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(s.source.Status()); err != nil {
			slog.Debug("Status stream closed", slog.Any("error", err))
			return
		}

		select {
		case <-gone:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait))
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
