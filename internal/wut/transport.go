package wut

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kamilpajak/wutboard/internal/logging"
)

// loggingTransport logs failed exchanges and passes the result through
// unchanged.
type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err != nil:
		t.logger.Warn("backend request failed",
			"method", req.Method,
			"path", req.URL.Path,
			logging.FieldDuration, elapsed,
			"error", err)
	case resp.StatusCode >= http.StatusBadRequest:
		t.logger.Warn("backend returned error status",
			"method", req.Method,
			"path", req.URL.Path,
			logging.FieldStatus, resp.StatusCode,
			logging.FieldDuration, elapsed)
	default:
		t.logger.Debug("backend request",
			"method", req.Method,
			"path", req.URL.Path,
			logging.FieldStatus, resp.StatusCode,
			logging.FieldDuration, elapsed)
	}
	return resp, err
}
