// Package server exposes the loaded snapshot and the insight pipelines as a
// JSON API. It is the only presentation surface: everything the chart layer
// renders comes out of these endpoints as rows, kpis, and series.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/cairnlabs/storelens/internal/cache"
	"github.com/cairnlabs/storelens/internal/census"
	"github.com/cairnlabs/storelens/internal/state"
)

// Server serves the analytics API for one snapshot key.
type Server struct {
	cache   *cache.Cache
	key     cache.Key
	census  census.Client
	history *state.Store
	port    int
	watch   bool
	logger  *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Cache  *cache.Cache
	Key    cache.Key
	Census census.Client // nil means demographics is unconfigured
	// History is optional; without it the history endpoint serves empty.
	History *state.Store
	Port    int
	// Watch invalidates the cache when parquet files change.
	Watch  bool
	Logger *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cache:   cfg.Cache,
		key:     cfg.Key,
		census:  cfg.Census,
		history: cfg.History,
		port:    cfg.Port,
		watch:   cfg.Watch,
		logger:  logger,
	}
}

// Routes builds the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stores", s.handleStores)
		r.Get("/validation", s.handleValidation)
		r.Get("/top-products", s.handleTopProducts)
		r.Get("/beverage-brands", s.handleBeverageBrands)
		r.Get("/payment-comparison", s.handlePaymentComparison)
		r.Get("/demographics", s.handleDemographics)
		r.Get("/history", s.handleHistory)
		r.Post("/cache/invalidate", s.handleInvalidate)
	})
	return r
}

// Serve runs the HTTP server and blocks until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting api server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			err := s.cache.Watch(egctx, s.key.DataDir)
			if egctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down api server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
