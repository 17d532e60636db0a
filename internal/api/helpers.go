package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kamilpajak/wutboard/internal/auth"
	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/wut"
	"github.com/kamilpajak/wutboard/pkg/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// parsePagination extracts limit and offset from query parameters with
// defaults. Limits above the maximum are clamped.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", l)
		}
		limit = min(parsed, maxPageSize)
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", o)
		}
		offset = parsed
	}

	return limit, offset, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// parseEstimationFilter reads provider, issueKey, from, to and explanation.
func parseEstimationFilter(r *http.Request) (models.EstimationFilter, error) {
	q := r.URL.Query()
	filter := models.EstimationFilter{
		Provider: strings.TrimSpace(q.Get("provider")),
		IssueKey: strings.TrimSpace(q.Get("issueKey")),
	}

	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return filter, fmt.Errorf("invalid from %q", v)
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return filter, fmt.Errorf("invalid to %q", v)
		}
		filter.To = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, errors.New("to must not be before from")
	}
	if v := q.Get("explanation"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid explanation %q", v)
		}
		filter.Explanation = &b
	}

	return filter, nil
}

// writeBackendError reports a failed backend call. The taxonomy is flat: the
// caller only learns which resource could not be loaded.
func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	message := "failed to load data"
	resource := "unknown"
	if le, ok := wut.AsLoadError(err); ok {
		message = le.Message()
		resource = le.Resource
	}

	logger := s.logger.With(
		logging.FieldRequestID, requestID(r.Context()),
		logging.FieldUserID, auth.UserID(r.Context()),
		logging.FieldResource, resource,
		"path", r.URL.Path)
	if errors.Is(err, context.Canceled) {
		logger.Debug("client went away", "error", err)
	} else {
		logger.Warn("backend call failed", "error", err)
	}
	writeError(w, http.StatusBadGateway, message)
}
