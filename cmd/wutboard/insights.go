package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kamilpajak/wutboard/internal/aggregate"
	"github.com/kamilpajak/wutboard/pkg/models"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool

	estProvider    string
	estIssue       string
	estSince       string
	estLimit       int
	estExplanation string

	analyzePrompt      string
	analyzeModel       string
	analyzeTemperature float64
	analyzeMarkdown    bool
	analyzeExplanation bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show explainability, model comparison and stability insights",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var estimationsCmd = &cobra.Command{
	Use:   "estimations",
	Short: "List estimation history with per-provider accuracy",
	Args:  cobra.NoArgs,
	RunE:  runEstimations,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <issue-key>",
	Short: "Ask the backend for an AI estimate of an issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	summaryCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")

	estimationsCmd.Flags().StringVar(&estProvider, "provider", "", "Only this AI provider")
	estimationsCmd.Flags().StringVar(&estIssue, "issue", "", "Only this issue key")
	estimationsCmd.Flags().StringVar(&estSince, "since", "", "Only estimations after this date (YYYY-MM-DD or RFC3339)")
	estimationsCmd.Flags().IntVar(&estLimit, "limit", 50, "Maximum number of records")
	estimationsCmd.Flags().StringVar(&estExplanation, "explanation", "", "Filter by explanation flag (true/false)")
	estimationsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")

	analyzeCmd.Flags().StringVarP(&analyzePrompt, "prompt", "p", "", "Additional instructions for the model")
	analyzeCmd.Flags().StringVarP(&analyzeModel, "model", "m", "", "AI model (default from config)")
	analyzeCmd.Flags().Float64VarP(&analyzeTemperature, "temperature", "t", 0.7, "Sampling temperature (0-2)")
	analyzeCmd.Flags().BoolVar(&analyzeMarkdown, "markdown", false, "Ask for a markdown answer")
	analyzeCmd.Flags().BoolVar(&analyzeExplanation, "explanation", true, "Ask the model to explain its estimate")
}

// insights is what the summary command prints.
type insights struct {
	Explainability  aggregate.ExplainabilityChart  `json:"explainability"`
	ModelComparison aggregate.ModelComparisonChart `json:"modelComparison"`
	Stability       aggregate.VarianceSummary      `json:"stability"`
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	client, ctx, err := a.client(cmd.Context())
	if err != nil {
		return err
	}

	p := startProgress(os.Stderr, "Loading insights...")
	explain, err := client.ExplainabilityImpact(ctx)
	if err != nil {
		p.Stop()
		return err
	}
	comparison, err := client.ModelComparison(ctx)
	if err != nil {
		p.Stop()
		return err
	}
	stability, err := client.Stability(ctx)
	p.Stop()
	if err != nil {
		return err
	}

	result := insights{
		Explainability:  aggregate.ExplainabilityImpact(explain),
		ModelComparison: aggregate.CompareModels(comparison),
		Stability:       aggregate.StabilityAverages(stability),
	}
	if jsonOutput {
		return writeJSONTo(cmd.OutOrStdout(), result)
	}
	printInsights(cmd.OutOrStdout(), result)
	return nil
}

func runEstimations(cmd *cobra.Command, args []string) error {
	filter, err := estimationFilter()
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	client, ctx, err := a.client(cmd.Context())
	if err != nil {
		return err
	}

	p := startProgress(os.Stderr, "Loading estimations...")
	records, err := client.ListEstimations(ctx, filter)
	p.Stop()
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSONTo(cmd.OutOrStdout(), records)
	}
	printEstimations(cmd.OutOrStdout(), records)
	fmt.Fprintln(cmd.OutOrStdout())
	printProviderAccuracy(cmd.OutOrStdout(), aggregate.ProviderAccuracy(records))
	return nil
}

func estimationFilter() (models.EstimationFilter, error) {
	if estLimit < 1 {
		return models.EstimationFilter{}, fmt.Errorf("--limit must be positive, got %d", estLimit)
	}
	filter := models.EstimationFilter{
		Provider: strings.TrimSpace(estProvider),
		IssueKey: strings.TrimSpace(estIssue),
		Limit:    estLimit,
	}
	if estSince != "" {
		t, err := parseDate(estSince)
		if err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
		filter.From = &t
	}
	switch strings.ToLower(estExplanation) {
	case "":
	case "true", "yes":
		filter.Explanation = models.Bool(true)
	case "false", "no":
		filter.Explanation = models.Bool(false)
	default:
		return filter, fmt.Errorf("invalid --explanation %q (want true or false)", estExplanation)
	}
	return filter, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	req := models.AnalyzeRequest{
		IssueKey:    args[0],
		UserPrompt:  analyzePrompt,
		Markdown:    analyzeMarkdown,
		Explanation: analyzeExplanation,
		AIModel:     analyzeModel,
		Temperature: analyzeTemperature,
	}
	if err := req.Validate(a.cfg.Backend.DefaultModel); err != nil {
		return err
	}

	client, ctx, err := a.client(cmd.Context())
	if err != nil {
		return err
	}

	p := startProgress(os.Stderr, fmt.Sprintf("Estimating %s with %s...", req.IssueKey, req.AIModel))
	result, err := client.Analyze(ctx, req)
	p.Stop()
	if err != nil {
		return err
	}

	printAnalysis(cmd.ErrOrStderr(), cmd.OutOrStdout(), result)
	return nil
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
