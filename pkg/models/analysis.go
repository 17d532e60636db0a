package models

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxTemperature is the upper bound accepted for AnalyzeRequest.Temperature.
const MaxTemperature = 2.0

// AnalyzeRequest is the body of POST /api/wut/ai/analyze.
type AnalyzeRequest struct {
	IssueKey    string  `json:"issueKey"`
	UserPrompt  string  `json:"userPrompt"`
	Markdown    bool    `json:"markdown"`
	Explanation bool    `json:"explanation"`
	AIModel     string  `json:"aiModel"`
	Temperature float64 `json:"temperature"`
}

// ErrMissingIssueKey is returned when an analyze request has no issue key.
var ErrMissingIssueKey = errors.New("issue key is required")

// Validate checks the request and fills in the default model when empty.
func (r *AnalyzeRequest) Validate(defaultModel string) error {
	r.IssueKey = strings.TrimSpace(r.IssueKey)
	if r.IssueKey == "" {
		return ErrMissingIssueKey
	}
	if r.Temperature < 0 || r.Temperature > MaxTemperature {
		return fmt.Errorf("temperature must be between 0 and %.1f, got %g", MaxTemperature, r.Temperature)
	}
	if strings.TrimSpace(r.AIModel) == "" {
		r.AIModel = defaultModel
	}
	return nil
}

// AnalysisResult is the backend's answer to an analyze request.
type AnalysisResult struct {
	IssueKey       string  `json:"issueKey"`
	AIModel        string  `json:"aiModel"`
	EstimatedHours float64 `json:"estimatedHours"`
	Explanation    string  `json:"explanation,omitempty"`
	Content        string  `json:"content,omitempty"`
	ResponseTime   float64 `json:"responseTime,omitempty"` // seconds
}

// EstimationFilter narrows GET /api/wut/ai/history/estimations.
type EstimationFilter struct {
	Provider    string
	IssueKey    string
	From        *time.Time
	To          *time.Time
	Explanation *bool
	Limit       int
}

// Query encodes the filter as URL query values. Zero fields are omitted.
func (f EstimationFilter) Query() url.Values {
	q := url.Values{}
	if f.Provider != "" {
		q.Set("provider", f.Provider)
	}
	if f.IssueKey != "" {
		q.Set("issueKey", f.IssueKey)
	}
	if f.From != nil {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	if f.Explanation != nil {
		q.Set("explanation", strconv.FormatBool(*f.Explanation))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}
