package api

import (
	"errors"
	"net/http"

	"github.com/kamilpajak/wutboard/internal/aggregate"
	"github.com/kamilpajak/wutboard/internal/auth"
	"github.com/kamilpajak/wutboard/internal/database"
	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/session"
	"github.com/kamilpajak/wutboard/pkg/models"
)

// adminRole bypasses per-operation permission checks.
const adminRole = "admin"

// handleGetMe returns the identity of the current session.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	response := map[string]any{
		"id":    sess.UserID,
		"email": sess.Email,
		"name":  sess.Name,
	}
	if exp := sess.Expiry(); !exp.IsZero() {
		response["expires_at"] = exp
	}
	if claims := auth.Claims(ctx); claims != nil && len(claims.Roles) > 0 {
		response["roles"] = claims.Roles
	}

	writeJSON(w, http.StatusOK, response)
}

type estimationPage struct {
	Estimations []models.EstimationRecord `json:"estimations"`
	Total       int                       `json:"total"`
	Limit       int                       `json:"limit"`
	Offset      int                       `json:"offset"`
}

// handleListEstimations returns one page of filtered estimation history.
func (s *Server) handleListEstimations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEstimationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.backend.ListEstimations(r.Context(), filter)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}

	start := min(offset, len(records))
	end := min(start+limit, len(records))
	writeJSON(w, http.StatusOK, estimationPage{
		Estimations: records[start:end],
		Total:       len(records),
		Limit:       limit,
		Offset:      offset,
	})
}

type estimationSummary struct {
	Count             int                       `json:"count"`
	Providers         []aggregate.ProviderError `json:"providers"`
	PromptImpact      aggregate.FlagSplit       `json:"promptImpact"`
	ExplanationImpact aggregate.FlagSplit       `json:"explanationImpact"`
}

// handleEstimationSummary aggregates the filtered estimation history.
func (s *Server) handleEstimationSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEstimationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.backend.ListEstimations(r.Context(), filter)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, estimationSummary{
		Count:             len(records),
		Providers:         aggregate.ProviderAccuracy(records),
		PromptImpact:      aggregate.PromptImpact(records),
		ExplanationImpact: aggregate.ExplanationImpactFromEstimations(records),
	})
}

func (s *Server) handleExplainabilityChart(w http.ResponseWriter, r *http.Request) {
	records, err := s.backend.ExplainabilityImpact(r.Context())
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.ExplainabilityImpact(records))
}

func (s *Server) handleModelComparisonChart(w http.ResponseWriter, r *http.Request) {
	records, err := s.backend.ModelComparison(r.Context())
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.CompareModels(records))
}

type stabilityChart struct {
	Averages aggregate.VarianceSummary `json:"averages"`
	Buckets  []models.StabilityRecord  `json:"buckets"`
}

func (s *Server) handleStabilityChart(w http.ResponseWriter, r *http.Request) {
	records, err := s.backend.Stability(r.Context())
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	if records == nil {
		records = []models.StabilityRecord{}
	}
	writeJSON(w, http.StatusOK, stabilityChart{
		Averages: aggregate.StabilityAverages(records),
		Buckets:  records,
	})
}

// handleAnalyze validates the request and forwards it to the backend.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.analyzePermission != "" && !auth.HasPermission(ctx, s.analyzePermission) && !auth.HasRole(ctx, adminRole) {
		if !auth.IsAuthenticated(ctx) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		writeError(w, http.StatusForbidden, "missing permission "+s.analyzePermission)
		return
	}

	var req models.AnalyzeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.defaultModel); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("analysis requested",
		logging.FieldRequestID, requestID(ctx),
		logging.FieldUserID, auth.UserID(ctx),
		"issue", req.IssueKey,
		"model", req.AIModel)

	result, err := s.backend.Analyze(ctx, req)
	if err != nil {
		s.writeBackendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListSnapshots returns stored snapshots, newest first.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshot storage is not configured")
		return
	}

	q := r.URL.Query()
	params := database.ListSnapshotsParams{Kind: q.Get("kind")}
	if params.Kind != "" && !database.ValidKind(params.Kind) {
		writeError(w, http.StatusBadRequest, "unknown snapshot kind")
		return
	}
	if v := q.Get("since"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		params.Since = &t
	}
	limit, _, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params.Limit = limit

	snapshots, err := s.snapshots.ListSnapshots(r.Context(), params)
	if err != nil {
		if !errors.Is(err, r.Context().Err()) {
			s.logger.Error("failed to list snapshots", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"limit":     limit,
	})
}
