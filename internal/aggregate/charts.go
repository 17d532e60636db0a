package aggregate

import (
	"sort"

	"github.com/kamilpajak/wutboard/pkg/models"
)

// ExplainabilityGroup summarises one side of the explanation flag.
type ExplainabilityGroup struct {
	AvgError        Summary `json:"avgError"`
	AvgResponseTime Summary `json:"avgResponseTime"`
}

// ExplainabilityChart compares estimates made with and without an explanation.
type ExplainabilityChart struct {
	WithExplanation    ExplainabilityGroup `json:"withExplanation"`
	WithoutExplanation ExplainabilityGroup `json:"withoutExplanation"`
}

// ExplainabilityImpact averages error and response time per explanation flag.
func ExplainabilityImpact(records []models.ExplainabilityRecord) ExplainabilityChart {
	enabled := func(r models.ExplainabilityRecord) bool { return r.ExplanationEnabled }
	errs := GroupAverageByFlag(records, enabled, func(r models.ExplainabilityRecord) float64 { return r.AvgError })
	times := GroupAverageByFlag(records, enabled, func(r models.ExplainabilityRecord) float64 { return r.AvgResponseTime })

	return ExplainabilityChart{
		WithExplanation:    ExplainabilityGroup{AvgError: errs.With, AvgResponseTime: times.With},
		WithoutExplanation: ExplainabilityGroup{AvgError: errs.Without, AvgResponseTime: times.Without},
	}
}

// Model selects one side of a ModelComparisonRecord.
type Model int

const (
	ModelA Model = iota
	ModelB
)

// String returns the chart label for the model.
func (m Model) String() string {
	if m == ModelB {
		return "modelB"
	}
	return "modelA"
}

// Pair returns the (actual, estimate) selector for the model.
func (m Model) Pair() func(models.ModelComparisonRecord) (*float64, *float64) {
	return func(r models.ModelComparisonRecord) (*float64, *float64) {
		if m == ModelB {
			return r.ActualHours, r.ModelBEstimate
		}
		return r.ActualHours, r.ModelAEstimate
	}
}

// IssueError is one row of the per-issue comparison chart. A nil error means
// the model gave no estimate or the actual effort is unknown.
type IssueError struct {
	IssueID     string   `json:"issueId,omitempty"`
	ActualHours *float64 `json:"actualHours,omitempty"`
	ModelAError *float64 `json:"modelAError,omitempty"`
	ModelBError *float64 `json:"modelBError,omitempty"`
}

// ModelComparisonChart holds per-model mean absolute error and per-issue rows.
type ModelComparisonChart struct {
	ModelA Summary      `json:"modelA"`
	ModelB Summary      `json:"modelB"`
	Issues []IssueError `json:"issues"`
}

// CompareModels computes the mean absolute error of both models.
func CompareModels(records []models.ModelComparisonRecord) ModelComparisonChart {
	chart := ModelComparisonChart{
		ModelA: MeanAbsoluteError(records, ModelA.Pair()),
		ModelB: MeanAbsoluteError(records, ModelB.Pair()),
		Issues: make([]IssueError, 0, len(records)),
	}

	for _, r := range records {
		row := IssueError{ActualHours: r.ActualHours}
		if r.IssueID != nil {
			row.IssueID = *r.IssueID
		}
		if e, ok := absoluteError(ModelA.Pair()(r)); ok {
			row.ModelAError = &e
		}
		if e, ok := absoluteError(ModelB.Pair()(r)); ok {
			row.ModelBError = &e
		}
		chart.Issues = append(chart.Issues, row)
	}
	return chart
}

// VarianceSummary averages the variance fields of stability records. Each
// field carries its own sample count since a bucket may be malformed in one
// field only.
type VarianceSummary struct {
	EstimationVariance   Summary `json:"estimationVariance"`
	ResponseTimeVariance Summary `json:"responseTimeVariance"`
}

// Empty reports whether no bucket contributed to either field.
func (v VarianceSummary) Empty() bool {
	return v.EstimationVariance.Empty() && v.ResponseTimeVariance.Empty()
}

// StabilityAverages is the variance-averages aggregation over all buckets.
func StabilityAverages(records []models.StabilityRecord) VarianceSummary {
	est := make([]float64, len(records))
	resp := make([]float64, len(records))
	for i, r := range records {
		est[i] = r.EstimationVariance
		resp[i] = r.ResponseTimeVariance
	}
	return VarianceSummary{
		EstimationVariance:   Mean(est),
		ResponseTimeVariance: Mean(resp),
	}
}

// ProviderError is the accuracy of one AI provider.
type ProviderError struct {
	Provider string  `json:"provider"`
	Error    Summary `json:"error"`
}

func estimationPair(r models.EstimationRecord) (*float64, *float64) {
	est := r.EstimatedHours
	return r.ActualHours, &est
}

// ProviderAccuracy computes the mean absolute error per provider, sorted by
// provider name. Providers with no actual hours still appear with Count 0.
func ProviderAccuracy(records []models.EstimationRecord) []ProviderError {
	byProvider := make(map[string][]models.EstimationRecord)
	for _, r := range records {
		byProvider[r.AIProvider] = append(byProvider[r.AIProvider], r)
	}

	out := make([]ProviderError, 0, len(byProvider))
	for provider, recs := range byProvider {
		out = append(out, ProviderError{
			Provider: provider,
			Error:    MeanAbsoluteError(recs, estimationPair),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// PromptImpact splits estimation error by whether a user prompt was supplied.
// Records with an unknown flag are excluded.
func PromptImpact(records []models.EstimationRecord) FlagSplit {
	known := make([]models.EstimationRecord, 0, len(records))
	for _, r := range records {
		if r.UserPromptProvided != nil {
			known = append(known, r)
		}
	}
	return splitError(known, func(r models.EstimationRecord) bool { return *r.UserPromptProvided })
}

// ExplanationImpactFromEstimations groups raw estimation records by the
// explanation flag. Records with an unknown flag are excluded.
func ExplanationImpactFromEstimations(records []models.EstimationRecord) FlagSplit {
	known := make([]models.EstimationRecord, 0, len(records))
	for _, r := range records {
		if r.ExplanationEnabled != nil {
			known = append(known, r)
		}
	}
	return splitError(known, func(r models.EstimationRecord) bool { return *r.ExplanationEnabled })
}

func splitError(records []models.EstimationRecord, flag func(models.EstimationRecord) bool) FlagSplit {
	var with, without []models.EstimationRecord
	for _, r := range records {
		if flag(r) {
			with = append(with, r)
		} else {
			without = append(without, r)
		}
	}
	return FlagSplit{
		With:    MeanAbsoluteError(with, estimationPair),
		Without: MeanAbsoluteError(without, estimationPair),
	}
}
