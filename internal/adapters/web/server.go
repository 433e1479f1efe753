package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/eapsul/internal/core/ports"
)

// Server exposes metrics, session status and the live exchange feed over HTTP.
type Server struct {
	Addr      string
	Status    ports.StatusProvider
	WSManager *WSManager

	logger *slog.Logger
	srv    *http.Server
}

// NewServer creates a telemetry server for the given session.
func NewServer(addr string, status ports.StatusProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Addr:      addr,
		Status:    status,
		WSManager: NewWSManager(logger),
		logger:    logger,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "eapsul-http")
}

// Run listens on Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.WSManager.CloseAll()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Telemetry server shutdown error", "error", err)
		}
	}()

	s.logger.Info("Telemetry server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
