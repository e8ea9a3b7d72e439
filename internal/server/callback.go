package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Logging logs every request with its status and latency.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).Round(time.Microsecond),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CallbackServer serves a router on a local address for the duration of one OAuth flow.
type CallbackServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *log.Logger
	errs     chan error
	started  bool
}

// NewCallbackServer binds addr immediately so the redirect target exists before the browser opens.
func NewCallbackServer(addr string, handler http.Handler, logger *log.Logger) (*CallbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &CallbackServer{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		logger:   logger,
		errs:     make(chan error, 1),
	}, nil
}

// Addr is the bound address, useful when addr used port 0.
func (s *CallbackServer) Addr() string {
	return s.listener.Addr().String()
}

// Start serves in the background.
func (s *CallbackServer) Start() {
	s.started = true
	s.logger.Debug("callback server listening", "addr", s.Addr())
	go func() {
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()
}

// Shutdown stops the server, waiting up to five seconds for the success page to flush.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	if !s.started {
		return s.listener.Close()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop callback server: %w", err)
	}
	return <-s.errs
}
