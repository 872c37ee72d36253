package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/quake-stream/internal/domain"
	"github.com/couchcryptid/quake-stream/internal/observability"
	"github.com/couchcryptid/quake-stream/internal/parser"
)

const (
	// Each run fetches a trailing window slightly wider than the 5-minute
	// trigger cadence; the append-only raw store absorbs the overlap.
	lookbackMinutes = 10

	// Dead-letter payload excerpt caps.
	maxParseExcerpt = 10000
	maxEventExcerpt = 5000
)

// PayloadFetcher retrieves the raw feed body for one time window.
type PayloadFetcher interface {
	Fetch(ctx context.Context, start, end time.Time) (string, error)
}

// RawStore is the ingestion-side persistence surface: append-only raw events,
// dead letters, and audit rows.
type RawStore interface {
	InsertRawEvents(ctx context.Context, events []domain.NormalizedEvent) (int, error)
	InsertDeadLetters(ctx context.Context, rows []domain.DeadLetter) error
	LogPipelineRun(ctx context.Context, run domain.PipelineRun) error
}

// Pipeline runs the fetch-parse-validate-store cycle for one source.
type Pipeline struct {
	source  domain.Source
	fetcher PayloadFetcher
	parser  parser.Parser
	store   RawStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPipeline assembles a single-source ingestion pipeline.
func NewPipeline(source domain.Source, fetcher PayloadFetcher, p parser.Parser,
	store RawStore, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:  source,
		fetcher: fetcher,
		parser:  p,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one ingestion cycle. A fetch failure fails the run; parse and
// validation failures divert to the dead-letter table and the run succeeds.
// Accepted events are appended in a single batch after all parsing completes,
// so a cancellation before the write leaves the store untouched.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	runID := uuid.NewString()[:8]
	now := domain.Clock().Now().UTC()
	start := time.Now()
	logger := p.logger.With("run_id", runID, "source", p.source)

	windowStart := now.Add(-lookbackMinutes * time.Minute)
	logger.Info("ingestion run starting", "window_start", windowStart, "window_end", now)

	rawText, err := p.fetcher.Fetch(ctx, windowStart, now)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("fetch: %w", err)
	}

	events, deadLetters := p.parseAndValidate(rawText, now, logger)

	rawCount := 0
	if len(events) > 0 {
		rawCount, err = p.store.InsertRawEvents(ctx, events)
		if err != nil {
			return domain.RunReport{}, fmt.Errorf("insert raw events: %w", err)
		}
	}
	if len(deadLetters) > 0 {
		if err := p.store.InsertDeadLetters(ctx, deadLetters); err != nil {
			return domain.RunReport{}, fmt.Errorf("insert dead letters: %w", err)
		}
	}

	duration := time.Since(start).Seconds()
	report := domain.RunReport{
		RunID:       runID,
		Source:      p.source,
		RawEvents:   rawCount,
		DeadLetters: len(deadLetters),
		DurationS:   math.Round(duration*100) / 100,
	}

	p.metrics.EventsIngested.WithLabelValues(string(p.source)).Add(float64(rawCount))
	p.metrics.DeadLetters.WithLabelValues(string(p.source)).Add(float64(len(deadLetters)))
	p.metrics.IngestDuration.WithLabelValues(string(p.source)).Observe(duration)

	run := domain.PipelineRun{
		RunID:           runID,
		EndTime:         now,
		Status:          "success",
		Sources:         []string{string(p.source)},
		RawCount:        rawCount,
		DeadLetterCount: len(deadLetters),
		DurationS:       duration,
		SourceName:      string(p.source),
	}
	if err := p.store.LogPipelineRun(ctx, run); err != nil {
		logger.Error("log pipeline run failed", "error", err)
	}

	logger.Info("ingestion run complete",
		"raw_events", rawCount,
		"dead_letters", len(deadLetters),
		"duration_s", report.DurationS)
	return report, nil
}

// parseAndValidate converts the raw body into accepted events plus dead
// letters. A top-level parse failure yields a single dead letter carrying a
// payload excerpt, and the run still succeeds with zero accepted events.
func (p *Pipeline) parseAndValidate(rawText string, fetchedAt time.Time, logger *slog.Logger) ([]domain.NormalizedEvent, []domain.DeadLetter) {
	parsed, err := p.parser.Parse(rawText, fetchedAt)
	if err != nil {
		logger.Error("parse failed", "error", err)
		return nil, []domain.DeadLetter{{
			Source:     p.source,
			RawPayload: truncate(rawText, maxParseExcerpt),
			Errors:     []string{fmt.Sprintf("parse error: %v", err)},
		}}
	}

	var accepted []domain.NormalizedEvent
	var deadLetters []domain.DeadLetter
	for _, event := range parsed {
		if violations := domain.Validate(event); len(violations) > 0 {
			deadLetters = append(deadLetters, domain.DeadLetter{
				Source:        p.source,
				SourceEventID: event.SourceEventID,
				RawPayload:    truncate(eventExcerpt(event), maxEventExcerpt),
				Errors:        violations,
			})
			continue
		}
		accepted = append(accepted, event)
	}
	return accepted, deadLetters
}

// eventExcerpt prefers the event's retained raw payload; parsers that do not
// carry one fall back to the normalized JSON form.
func eventExcerpt(e domain.NormalizedEvent) string {
	if e.RawPayload != "" {
		return e.RawPayload
	}
	b, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
