package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/web"
)

const shutdownTimeout = 30 * time.Second

// Server HTTP server for the web API
type Server struct {
	config  *config.WebConfig
	logger  logger.Logger
	web     *web.Service
	handler http.Handler
}

// New creates a new server instance
func New(cfg *config.WebConfig, log logger.Logger, svc *web.Service) *Server {
	s := &Server{
		config: cfg,
		logger: log,
		web:    svc,
	}

	router := mux.NewRouter()
	router.Use(requestLogger(log))
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	svc.RegisterRoutes(router)
	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.handler = router

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured port and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("Starting HTTP server",
		"addr", ln.Addr().String(),
		"admin_path", s.config.AdminPath,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	s.web.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}
	s.logger.Info("Server exited")
	return nil
}
