// Package wut is a typed client for the WUT estimation backend.
package wut

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kamilpajak/wutboard/internal/metrics"
	"github.com/kamilpajak/wutboard/internal/session"
	"github.com/kamilpajak/wutboard/pkg/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Resource names used in errors, logs and metrics.
const (
	ResourceEstimations     = "estimations"
	ResourceModelComparison = "model comparison"
	ResourceExplainability  = "explainability impact"
	ResourceStability       = "stability"
	ResourceAnalysis        = "analysis"
)

const maxResponseBytes = 10 << 20

// Options configures a Client. Zero values are usable.
type Options struct {
	HTTPClient  *http.Client
	Timeout     time.Duration
	TokenSource oauth2.TokenSource // used when the context carries no session
	RateLimit   float64            // requests per second, 0 disables
	Burst       int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Client handles WUT backend API interactions
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	next := httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	wrapped := *httpClient
	wrapped.Transport = &loggingTransport{next: next, logger: logger}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &wrapped,
		tokens:     opts.TokenSource,
		limiter:    limiter,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// ListEstimations fetches estimation history matching filter.
func (c *Client) ListEstimations(ctx context.Context, filter models.EstimationFilter) ([]models.EstimationRecord, error) {
	var records []models.EstimationRecord
	err := c.doRequest(ctx, http.MethodGet, ResourceEstimations, "/api/wut/ai/history/estimations", filter.Query(), nil, &records)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.EstimationRecord{}
	}
	return records, nil
}

// ModelComparison fetches per-issue estimates from the two compared models.
func (c *Client) ModelComparison(ctx context.Context) ([]models.ModelComparisonRecord, error) {
	var records []models.ModelComparisonRecord
	if err := c.doRequest(ctx, http.MethodGet, ResourceModelComparison, "/api/wut/ai/history/model-comparison", nil, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.ModelComparisonRecord{}
	}
	return records, nil
}

// ExplainabilityImpact fetches error and latency grouped by explanation flag.
func (c *Client) ExplainabilityImpact(ctx context.Context) ([]models.ExplainabilityRecord, error) {
	var records []models.ExplainabilityRecord
	if err := c.doRequest(ctx, http.MethodGet, ResourceExplainability, "/api/wut/ai/history/explainability-impact", nil, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.ExplainabilityRecord{}
	}
	return records, nil
}

// Stability fetches variance buckets.
func (c *Client) Stability(ctx context.Context) ([]models.StabilityRecord, error) {
	var records []models.StabilityRecord
	if err := c.doRequest(ctx, http.MethodGet, ResourceStability, "/api/wut/ai/history/stability", nil, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.StabilityRecord{}
	}
	return records, nil
}

// Analyze asks the backend to estimate a single issue. The request must
// already be validated.
func (c *Client) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := c.doRequest(ctx, http.MethodPost, ResourceAnalysis, "/api/wut/ai/analyze", nil, req, &result); err != nil {
		return nil, err
	}
	if result.IssueKey == "" {
		result.IssueKey = req.IssueKey
	}
	return &result, nil
}

func (c *Client) doRequest(ctx context.Context, method, resource, path string, query url.Values, body, result any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordBackendRequest(resource, err == nil, time.Since(start))
	}()

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return &LoadError{Resource: resource, Err: err}
		}
		c.metrics.RecordRateLimitWait(time.Since(waitStart))
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &LoadError{Resource: resource, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &LoadError{Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok, err := c.token(ctx)
	if err != nil {
		return &LoadError{Resource: resource, Err: fmt.Errorf("failed to obtain token: %w", err)}
	}
	if tok != nil {
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &LoadError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &LoadError{
			Resource: resource,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("backend error: %s - %s", resp.Status, strings.TrimSpace(string(msg))),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(result); err != nil {
		return &LoadError{Resource: resource, Status: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// token prefers the caller's session and falls back to the configured source.
func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	if s := session.FromContext(ctx); s != nil && s.Token != nil && s.Token.AccessToken != "" {
		return s.Token, nil
	}
	if c.tokens == nil {
		return nil, nil
	}
	return c.tokens.Token()
}
