package wut

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/metrics"
	"github.com/kamilpajak/wutboard/internal/session"
	"github.com/kamilpajak/wutboard/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return NewClient(srv.URL+"/", opts)
}

func TestListEstimations(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/wut/ai/history/estimations", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[
			{"issueId":"WUT-1","aiProvider":"openai","createdAt":"2026-01-02T03:04:05Z","estimatedHours":4,"actualHours":5},
			{"issueId":"WUT-2","aiProvider":"gemini","createdAt":"2026-01-03T03:04:05Z","estimatedHours":2}
		]`))
	}, Options{})

	records, err := client.ListEstimations(context.Background(), models.EstimationFilter{Provider: "openai", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "limit=10&provider=openai", gotQuery)
	require.Len(t, records, 2)
	assert.Equal(t, "WUT-1", records[0].IssueID)
	require.NotNil(t, records[0].ActualHours)
	assert.Equal(t, 5.0, *records[0].ActualHours)
	assert.Nil(t, records[1].ActualHours)
}

func TestHistoryEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/wut/ai/history/model-comparison":
			w.Write([]byte(`[{"issueId":"WUT-1","actualHours":10,"modelAEstimate":12,"modelBEstimate":null}]`))
		case "/api/wut/ai/history/explainability-impact":
			w.Write([]byte(`[{"explanationEnabled":true,"avgError":1.5,"avgResponseTime":3}]`))
		case "/api/wut/ai/history/stability":
			w.Write([]byte(`null`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, Options{})
	ctx := context.Background()

	comparison, err := client.ModelComparison(ctx)
	require.NoError(t, err)
	require.Len(t, comparison, 1)
	assert.Equal(t, 12.0, *comparison[0].ModelAEstimate)
	assert.Nil(t, comparison[0].ModelBEstimate)

	explain, err := client.ExplainabilityImpact(ctx)
	require.NoError(t, err)
	require.Len(t, explain, 1)
	assert.True(t, explain[0].ExplanationEnabled)

	stability, err := client.Stability(ctx)
	require.NoError(t, err)
	assert.NotNil(t, stability, "null payload becomes an empty slice")
	assert.Empty(t, stability)
}

func TestAnalyze(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wut/ai/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "WUT-7", req.IssueKey)
		assert.Equal(t, 0.3, req.Temperature)

		w.Write([]byte(`{"aiModel":"gpt-4o","estimatedHours":6,"explanation":"because"}`))
	}, Options{})

	result, err := client.Analyze(context.Background(), models.AnalyzeRequest{IssueKey: "WUT-7", AIModel: "gpt-4o", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "WUT-7", result.IssueKey)
	assert.Equal(t, 6.0, result.EstimatedHours)
	assert.Equal(t, "because", result.Explanation)
}

func TestErrorsAreLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"not":"an array"}`))
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, Options{})
			_, err := client.Stability(context.Background())
			require.Error(t, err)

			le, ok := AsLoadError(err)
			require.True(t, ok)
			assert.Equal(t, ResourceStability, le.Resource)
			assert.Equal(t, tt.status, le.Status)
			assert.Equal(t, "failed to load stability", le.Message())
			assert.Contains(t, err.Error(), "failed to load stability")
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, Options{Logger: logging.Discard()})
	_, err := client.ModelComparison(context.Background())

	le, ok := AsLoadError(err)
	require.True(t, ok)
	assert.Equal(t, 0, le.Status)
	assert.Equal(t, "failed to load model comparison", le.Message())
}

func TestCancelledContext(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Options{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Stability(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAuthorization(t *testing.T) {
	var got string
	handler := func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}

	t.Run("session token wins", func(t *testing.T) {
		client := newTestClient(t, handler, Options{
			TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "service"}),
		})
		ctx := session.WithSession(context.Background(), &session.Session{
			UserID: "u1",
			Token:  &oauth2.Token{AccessToken: "user-token"},
		})
		_, err := client.Stability(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Bearer user-token", got)
	})

	t.Run("falls back to token source", func(t *testing.T) {
		client := newTestClient(t, handler, Options{
			TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "service"}),
		})
		_, err := client.Stability(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer service", got)
	})

	t.Run("no credentials", func(t *testing.T) {
		client := newTestClient(t, handler, Options{})
		_, err := client.Stability(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token endpoint down")
}

func TestTokenSourceError(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, Options{TokenSource: failingSource{}})

	_, err := client.Stability(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token endpoint down")
	assert.False(t, called)
}

func TestMetricsAndLogging(t *testing.T) {
	m := metrics.New()
	var logs bytes.Buffer
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/wut/ai/history/stability" {
			w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}, Options{Metrics: m, Logger: logging.New("info", "text", &logs)})

	_, err := client.Stability(context.Background())
	require.NoError(t, err)
	_, err = client.ModelComparison(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues(ResourceStability, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues(ResourceModelComparison, "error")))
	assert.Contains(t, logs.String(), "backend returned error status")
	assert.Contains(t, logs.String(), "status=502")
}

func TestRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, Options{RateLimit: 0.001, Burst: 1})

	_, err := client.Stability(context.Background())
	require.NoError(t, err)

	// The bucket is empty now and refills far slower than the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Stability(ctx)
	require.Error(t, err)
	_, ok := AsLoadError(err)
	assert.True(t, ok)
}
