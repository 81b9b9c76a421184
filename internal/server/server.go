// Package server exposes the explainer over HTTP.
//
// Routes:
//
//	POST   /api/explain      {image_path, group?, target?}
//	DELETE /api/clear        remove files from the output directory
//	POST   /api/device-data  append the JSON body to the device log
//	GET    /health
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/gradcam/internal/eventlog"
	"github.com/born-ml/gradcam/internal/explain"
)

// Explainer is the pipeline the server drives.
type Explainer interface {
	Explain(req explain.Request) (*explain.Result, error)
}

// Server routes requests to the explainer and the device log.
type Server struct {
	explainer Explainer
	events    *eventlog.Log
	outputDir string
	logger    *zap.Logger
	handler   http.Handler
}

// New builds the routes. A nil logger discards logs.
func New(exp Explainer, events *eventlog.Log, outputDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		explainer: exp,
		events:    events,
		outputDir: outputDir,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/explain", s.handleExplain)
	mux.HandleFunc("DELETE /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/device-data", s.handleDeviceData)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = requestID(accessLog(logger, cors(mux)))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is done, then shuts down,
// giving in-flight requests up to grace to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, grace)
}
