package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/bitriver/fleet-agent/internal/observability/metrics"
)

// retryInterval is the fixed sleep between failed upload attempts. The
// source's own ingest adapters retry at a fixed interval rather than with
// exponential backoff; the artifact uploader follows that same fixed-interval
// shape instead of the pack's other, exponential-backoff HTTP client.
const retryInterval = 2 * time.Second

// Uploader performs the bounded-retry HTTP PUT described by the artifact
// uploader contract.
type Uploader struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// NewUploader constructs an Uploader. A nil logger or metrics recorder falls
// back to sensible defaults so callers in tests can omit them.
func NewUploader(logger *slog.Logger, rec *metrics.Recorder) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.New()
	}
	return &Uploader{Logger: logger, Metrics: rec}
}

// Upload PUTs filePath to url, making at most maxRetries attempts in total
// with a fixed 2-second sleep between attempts. connectTimeout bounds the TCP/TLS dial;
// totalTimeout bounds the whole attempt (connect + transfer). Success is any
// 2xx with no transport error.
func (u *Uploader) Upload(ctx context.Context, url, filePath string, connectTimeout, totalTimeout time.Duration, maxRetries int) bool {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			ForceAttemptHTTP2: false, // prefer HTTP/1.1 per the upload contract
		},
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		u.Metrics.UploadAttempted()
		ok, err := u.attempt(ctx, client, url, filePath, totalTimeout)
		if ok {
			u.Metrics.UploadSucceeded()
			return true
		}
		u.Logger.Warn("upload attempt failed", "url", url, "attempt", attempt, "maxRetries", maxRetries, "error", err)

		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			u.Metrics.UploadFailed()
			return false
		case <-time.After(retryInterval):
		}
	}

	u.Metrics.UploadFailed()
	return false
}

func (u *Uploader) attempt(ctx context.Context, client *http.Client, url, filePath string, totalTimeout time.Duration) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, totalTimeout)
	defer cancel()

	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat artifact: %w", err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPut, url, f)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = info.Size()

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return true, nil
}
