package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/kamilpajak/wutboard/internal/aggregate"
	"github.com/kamilpajak/wutboard/pkg/models"
)

const noData = "no data"

// formatSummary renders a mean with its sample count, or "no data".
func formatSummary(s aggregate.Summary, unit string) string {
	if s.Empty() {
		return noData
	}
	return fmt.Sprintf("%.2f%s (n=%d)", s.Mean, unit, s.Count)
}

func printInsights(w io.Writer, in insights) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	_, _ = bold.Fprintln(w, "EXPLAINABILITY")
	fmt.Fprintf(w, "  With explanation:     error %s, response %s\n",
		formatSummary(in.Explainability.WithExplanation.AvgError, "h"),
		formatSummary(in.Explainability.WithExplanation.AvgResponseTime, "s"))
	fmt.Fprintf(w, "  Without explanation:  error %s, response %s\n",
		formatSummary(in.Explainability.WithoutExplanation.AvgError, "h"),
		formatSummary(in.Explainability.WithoutExplanation.AvgResponseTime, "s"))
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "MODEL COMPARISON")
	fmt.Fprintf(w, "  Model A MAE:  %s\n", formatSummary(in.ModelComparison.ModelA, "h"))
	fmt.Fprintf(w, "  Model B MAE:  %s\n", formatSummary(in.ModelComparison.ModelB, "h"))
	if winner := betterModel(in.ModelComparison); winner != "" {
		green := color.New(color.FgGreen)
		_, _ = green.Fprintf(w, "  %s is more accurate\n", winner)
	}
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "STABILITY")
	if in.Stability.Empty() {
		_, _ = dim.Fprintln(w, "  "+noData)
		return
	}
	fmt.Fprintf(w, "  Estimation variance:     %s\n", formatSummary(in.Stability.EstimationVariance, ""))
	fmt.Fprintf(w, "  Response time variance:  %s\n", formatSummary(in.Stability.ResponseTimeVariance, ""))
}

// betterModel names the model with the lower error, or "" when either side
// has no data or they tie.
func betterModel(c aggregate.ModelComparisonChart) string {
	if c.ModelA.Empty() || c.ModelB.Empty() || c.ModelA.Mean == c.ModelB.Mean {
		return ""
	}
	if c.ModelA.Mean < c.ModelB.Mean {
		return "Model A"
	}
	return "Model B"
}

func printEstimations(w io.Writer, records []models.EstimationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No estimations found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ISSUE\tPROVIDER\tCREATED\tESTIMATE\tACTUAL\tEXPLAINED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fh\t%s\t%s\n",
			r.IssueID,
			r.AIProvider,
			r.CreatedAt.UTC().Format(time.DateTime),
			r.EstimatedHours,
			optionalHours(r.ActualHours),
			optionalBool(r.ExplanationEnabled))
	}
	_ = tw.Flush()
}

func printProviderAccuracy(w io.Writer, providers []aggregate.ProviderError) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(w, "PROVIDER ACCURACY")
	if len(providers) == 0 {
		fmt.Fprintln(w, "  "+noData)
		return
	}
	for _, p := range providers {
		name := p.Provider
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(w, "  %-12s MAE %s\n", name, formatSummary(p.Error, "h"))
	}
}

func printAnalysis(stderr, stdout io.Writer, r *models.AnalysisResult) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintln(stderr)
	_, _ = bold.Fprintf(stderr, "%s: %.1f hours\n", r.IssueKey, r.EstimatedHours)
	meta := "model " + r.AIModel
	if r.ResponseTime > 0 {
		meta += fmt.Sprintf(", %.1fs", r.ResponseTime)
	}
	_, _ = dim.Fprintln(stderr, "  "+meta)

	if text := strings.TrimSpace(r.Explanation); text != "" {
		fmt.Fprintln(stderr)
		fmt.Fprintln(stdout, text)
	}
	if text := strings.TrimSpace(r.Content); text != "" {
		fmt.Fprintln(stderr)
		_, _ = dim.Fprintln(stderr, "  "+strings.Repeat("━", 50))
		fmt.Fprintln(stdout, text)
	}
}

func optionalHours(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fh", *v)
}

func optionalBool(v *bool) string {
	switch {
	case v == nil:
		return "-"
	case *v:
		return "yes"
	default:
		return "no"
	}
}
