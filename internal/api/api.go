// Package api provides the dashboard API server.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kamilpajak/wutboard/internal/auth"
	"github.com/kamilpajak/wutboard/internal/database"
	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/metrics"
	"github.com/kamilpajak/wutboard/pkg/models"
)

// Backend is the WUT estimation backend. *wut.Client satisfies it.
type Backend interface {
	ListEstimations(ctx context.Context, filter models.EstimationFilter) ([]models.EstimationRecord, error)
	ModelComparison(ctx context.Context) ([]models.ModelComparisonRecord, error)
	ExplainabilityImpact(ctx context.Context) ([]models.ExplainabilityRecord, error)
	Stability(ctx context.Context) ([]models.StabilityRecord, error)
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error)
}

// SnapshotStore lists stored snapshots. *database.DB satisfies it.
type SnapshotStore interface {
	ListSnapshots(ctx context.Context, params database.ListSnapshotsParams) ([]database.Snapshot, error)
}

// Server is the API server.
type Server struct {
	backend           Backend
	snapshots         SnapshotStore
	authVerifier      *auth.Verifier
	anonymousReads    bool
	analyzePermission string
	metrics           *metrics.Metrics
	logger            *slog.Logger
	defaultModel      string
	mux               *http.ServeMux
}

// Config holds API server configuration.
type Config struct {
	Backend      Backend
	Snapshots    SnapshotStore  // optional
	AuthVerifier *auth.Verifier // nil leaves the API unauthenticated
	// AnonymousReads lets history and chart routes through without a token;
	// the backend is then called with the service identity.
	AnonymousReads bool
	// AnalyzePermission, when set, is required to call POST /api/analyze.
	// Holders of the admin role are always allowed.
	AnalyzePermission string
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
	DefaultModel      string
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		backend:           cfg.Backend,
		snapshots:         cfg.Snapshots,
		authVerifier:      cfg.AuthVerifier,
		anonymousReads:    cfg.AnonymousReads,
		analyzePermission: cfg.AnalyzePermission,
		metrics:           cfg.Metrics,
		logger:            logger,
		defaultModel:      cfg.DefaultModel,
		mux:               http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Public endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Protected endpoints
	s.mux.HandleFunc("GET /api/me", s.withAuth(s.handleGetMe))
	s.mux.HandleFunc("POST /api/analyze", s.withAuth(s.handleAnalyze))

	// Read endpoints, optionally anonymous
	s.mux.HandleFunc("GET /api/estimations", s.withReadAuth(s.handleListEstimations))
	s.mux.HandleFunc("GET /api/estimations/summary", s.withReadAuth(s.handleEstimationSummary))
	s.mux.HandleFunc("GET /api/charts/explainability", s.withReadAuth(s.handleExplainabilityChart))
	s.mux.HandleFunc("GET /api/charts/model-comparison", s.withReadAuth(s.handleModelComparisonChart))
	s.mux.HandleFunc("GET /api/charts/stability", s.withReadAuth(s.handleStabilityChart))
	s.mux.HandleFunc("GET /api/snapshots", s.withReadAuth(s.handleListSnapshots))
}

func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	if s.authVerifier == nil {
		return handler
	}
	return wrap(auth.Middleware(s.authVerifier), handler)
}

func (s *Server) withReadAuth(handler http.HandlerFunc) http.HandlerFunc {
	if s.authVerifier == nil {
		return handler
	}
	if s.anonymousReads {
		return wrap(auth.OptionalMiddleware(s.authVerifier), handler)
	}
	return wrap(auth.Middleware(s.authVerifier), handler)
}

func wrap(middleware func(http.Handler) http.Handler, handler http.HandlerFunc) http.HandlerFunc {
	h := middleware(handler)
	return h.ServeHTTP
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
	w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	reqID := r.Header.Get(requestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, reqID)
	r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	pattern := r.Pattern
	if pattern == "" {
		pattern = "unmatched"
	}
	elapsed := time.Since(start)
	s.metrics.RecordHTTPRequest(r.Method, pattern, rec.status, elapsed)
	s.logger.Debug("request",
		logging.FieldRequestID, reqID,
		"method", r.Method,
		"path", r.URL.Path,
		logging.FieldStatus, rec.status,
		logging.FieldDuration, elapsed.Milliseconds())
}

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Close releases resources.
func (s *Server) Close() {
	if s.authVerifier != nil {
		s.authVerifier.Close()
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if p, ok := s.snapshots.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("database ping failed", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
		} else {
			resp["database"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
