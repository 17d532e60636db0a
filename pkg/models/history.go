// Package models holds the records exchanged with the estimation backend.
package models

import "time"

// EstimationRecord is one historical AI estimation for an issue.
type EstimationRecord struct {
	IssueID            string    `json:"issueId"`
	AIProvider         string    `json:"aiProvider"`
	CreatedAt          time.Time `json:"createdAt"`
	EstimatedHours     float64   `json:"estimatedHours"`
	ActualHours        *float64  `json:"actualHours,omitempty"`
	ExplanationEnabled *bool     `json:"explanationEnabled,omitempty"`
	UserPromptProvided *bool     `json:"userPromptProvided,omitempty"`
}

// ExplainabilityRecord is an error/latency pair grouped by the explanation flag.
type ExplainabilityRecord struct {
	ExplanationEnabled bool    `json:"explanationEnabled"`
	AvgError           float64 `json:"avgError"`
	AvgResponseTime    float64 `json:"avgResponseTime"` // seconds
}

// ModelComparisonRecord holds the estimates of two models for one issue.
// ActualHours is nil until the issue has logged effort.
type ModelComparisonRecord struct {
	IssueID        *string  `json:"issueId,omitempty"`
	ActualHours    *float64 `json:"actualHours,omitempty"`
	ModelAEstimate *float64 `json:"modelAEstimate,omitempty"`
	ModelBEstimate *float64 `json:"modelBEstimate,omitempty"`
}

// StabilityRecord holds variance values for one time bucket.
type StabilityRecord struct {
	TimeBucket           *string `json:"timeBucket,omitempty"`
	EstimationVariance   float64 `json:"estimationVariance"`
	ResponseTimeVariance float64 `json:"responseTimeVariance"`
}

// Float returns a pointer to v. Handy for optional fields in fixtures.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
