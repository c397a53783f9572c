package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/assistant"
	"github.com/hoplite-ai/hoplite/types"
)

type ctxKey int

const requestIDKey ctxKey = iota

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Engine is the surface the HTTP layer needs from the assistant engine.
type Engine interface {
	PlanAndAnswer(ctx context.Context, question, tenantID string, opts assistant.Options) (*types.Answer, error)
	AddDocumentChunks(ctx context.Context, tenantID string, chunks []*types.Chunk) error
	DeleteDocument(ctx context.Context, tenantID, docID string) (int, error)
	TenantStats(tenantID string) types.TenantStats
	ListTenants() []string
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine   Engine
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer creates the HTTP layer. gatherer may be nil to use the default
// Prometheus registry.
func NewServer(engine Engine, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("POST /v1/documents/chunks", s.handleAddChunks)
	mux.HandleFunc("DELETE /v1/tenants/{tenant}/documents/{doc}", s.handleDeleteDocument)
	mux.HandleFunc("GET /v1/tenants", s.handleListTenants)
	mux.HandleFunc("GET /v1/tenants/{tenant}/stats", s.handleTenantStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s.withRequestLogging(mux)
}

// withRequestLogging tags every request with an id and logs its outcome.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.String("request_id", id),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
