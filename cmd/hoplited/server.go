package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/api"
	"github.com/hoplite-ai/hoplite/assistant"
	"github.com/hoplite-ai/hoplite/config"
	"github.com/hoplite-ai/hoplite/consensus"
	"github.com/hoplite-ai/hoplite/embedding"
	"github.com/hoplite-ai/hoplite/index"
	"github.com/hoplite-ai/hoplite/internal/metrics"
	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/planner"
	"github.com/hoplite-ai/hoplite/retrieval"
	"github.com/hoplite-ai/hoplite/verify"
)

// Server owns the wired engine and its HTTP listener.
type Server struct {
	cfg    *config.Config
	http   *http.Server
	logger *zap.Logger
}

// NewServer wires providers, index, planner, consensus, and verification
// into the engine and hangs the HTTP API off it.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	embedder := embedding.NewOllamaProvider(cfg.Embedding, logger)

	var provider llm.Provider = llm.NewOllamaProvider(cfg.LLM, logger)
	if cfg.RateLimit.RPS > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	}

	idx, err := index.New(cfg.Index, logger)
	if err != nil {
		return nil, err
	}

	coordinator := retrieval.NewCoordinator(cfg.Retrieval, embedder, idx, logger)
	reranker := retrieval.NewReranker(cfg.Rerank, logger)
	qp := planner.New(cfg.Planner, provider, coordinator, reranker, logger)
	orchestrator := consensus.New(cfg.Consensus, provider, logger)
	verifier := verify.New(cfg.Verify, logger)

	engine := assistant.New(cfg.Engine, qp, orchestrator, verifier, idx, embedder, collector, logger)
	for _, tenant := range idx.ListTenants() {
		collector.SetIndexedChunks(tenant, idx.Stats(tenant).Count)
	}

	apiServer := api.NewServer(engine, registry, logger)

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      apiServer.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		logger: logger,
	}, nil
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down", zap.Duration("timeout", s.cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
