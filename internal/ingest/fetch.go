// Package ingest implements the per-source fetch-parse-validate-store
// pipeline. Each ingester process runs this for exactly one agency;
// deduplication is a separate service.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
	"github.com/couchcryptid/quake-stream/internal/observability"
)

const fdsnTimeLayout = "2006-01-02T15:04:05"

// Fetcher pulls an event window from one FDSN event endpoint with retry.
type Fetcher struct {
	source      domain.Source
	baseURL     string
	format      string
	httpClient  *http.Client
	maxRetries  int
	backoffBase float64
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewFetcher creates a Fetcher for one source endpoint. format is the FDSN
// format token (geojson, json, text, xml).
func NewFetcher(source domain.Source, baseURL, format string, timeout time.Duration,
	maxRetries int, backoffBase float64, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		source:      source,
		baseURL:     baseURL,
		format:      format,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		logger:      logger,
		metrics:     metrics,
	}
}

// Fetch requests events in [start, end] and returns the raw response body.
// HTTP 204 is an empty window, not an error. Transport errors and non-2xx
// statuses are retried with exponential backoff up to maxRetries+1 total
// attempts; the first retry waits backoffBase seconds.
func (f *Fetcher) Fetch(ctx context.Context, start, end time.Time) (string, error) {
	params := url.Values{
		"format":       {f.format},
		"starttime":    {start.UTC().Format(fdsnTimeLayout)},
		"endtime":      {end.UTC().Format(fdsnTimeLayout)},
		"minmagnitude": {"0.0"},
		"orderby":      {"time"},
	}
	fullURL := f.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= f.maxRetries+1; attempt++ {
		body, err := f.doRequest(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt <= f.maxRetries {
			backoff := time.Duration(math.Pow(f.backoffBase, float64(attempt)) * float64(time.Second))
			f.logger.Warn("fetch attempt failed",
				"source", f.source,
				"attempt", attempt,
				"max_attempts", f.maxRetries+1,
				"backoff", backoff,
				"error", err)
			f.metrics.FetchRetries.WithLabelValues(string(f.source)).Inc()
			if err := sleepWithContext(ctx, backoff); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("fetch %s: all %d attempts failed: %w", f.source, f.maxRetries+1, lastErr)
}

func (f *Fetcher) doRequest(ctx context.Context, fullURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, excerpt)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-domain.Clock().After(d):
		return nil
	}
}
