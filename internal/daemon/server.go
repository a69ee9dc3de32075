// Package daemon wires configuration into a running gateway process.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/moegate/moegate/internal/config"
	"github.com/moegate/moegate/internal/dispatch"
	"github.com/moegate/moegate/internal/httpapi"
	"github.com/moegate/moegate/internal/llm/configbuilder"
	"github.com/moegate/moegate/internal/observability"
	"github.com/moegate/moegate/internal/routing"
)

// Server hosts the OpenAI-compatible gateway endpoints plus health/metrics.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	handlers *httpapi.Handlers
}

// NewServer constructs a daemon instance from validated configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	providers, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	bindings, overrides := cfg.ExpertBindings()
	experts, err := routing.NewRegistry(bindings, overrides)
	if err != nil {
		return nil, fmt.Errorf("build expert registry: %w", err)
	}

	metrics := observability.NewMetrics()
	health := routing.NewHealthTracker(experts, cfg.Router.FailureThreshold)

	// Retrieval backends plug in through dispatch.Augmenter; the gateway
	// ships with passthrough augmentation.
	dispatcher := dispatch.New(providers, experts, health, dispatch.NoopAugmenter{}, metrics, logger, cfg.Router)

	handlers := &httpapi.Handlers{
		Dispatcher:     dispatcher,
		Providers:      providers,
		EmbeddingModel: cfg.RAG.EmbeddingModel,
		Metrics:        metrics,
		Logger:         logger,
	}

	return &Server{cfg: cfg, logger: logger, metrics: metrics, handlers: handlers}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	if s.cfg.Server.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/v1/chat/completions", s.handlers.ChatCompletions)
	mux.HandleFunc("/v1/embeddings", s.handlers.Embeddings)
	mux.HandleFunc("/v1/models", s.handlers.Models)
	mux.HandleFunc("/v1/experts", s.handlers.Experts)

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting moegate daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down moegate daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
