package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/quake-stream/internal/domain"
	"github.com/couchcryptid/quake-stream/internal/observability"
)

// EventSource loads raw normalized events from the lookback window.
type EventSource interface {
	LoadWindow(ctx context.Context, since time.Time) ([]domain.EventRecord, error)
}

// UnifiedStore persists the output of a dedup pass and its audit row. The
// upsert is all-or-nothing for the pass.
type UnifiedStore interface {
	UpsertDedupPass(ctx context.Context, events []domain.UnifiedEvent, links []domain.CrosswalkEntry) error
	LogPipelineRun(ctx context.Context, run domain.PipelineRun) error
}

// Publisher emits unified events downstream. Returns how many were actually
// published (a publisher may suppress unchanged clusters).
type Publisher interface {
	Publish(ctx context.Context, events []domain.UnifiedEvent) (int, error)
}

// Engine runs deduplication passes over the raw event store.
type Engine struct {
	source    EventSource
	store     UnifiedStore
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	lookback  time.Duration
	strategy  Strategy
}

// NewEngine creates an Engine. publisher may be nil when no outbound stream
// is configured.
func NewEngine(source EventSource, store UnifiedStore, publisher Publisher,
	logger *slog.Logger, metrics *observability.Metrics,
	lookback time.Duration, strategy Strategy) *Engine {
	if strategy != StrategyGreedy {
		strategy = StrategySpatial
	}
	return &Engine{
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		lookback:  lookback,
		strategy:  strategy,
	}
}

// RunPass loads the lookback window, clusters it, upserts the unified rows
// and crosswalk, and optionally publishes. Deterministic unified IDs plus
// upsert semantics make the pass idempotent, so overlapping passes are safe.
func (e *Engine) RunPass(ctx context.Context) (domain.DedupReport, error) {
	runID := uuid.NewString()[:8]
	now := domain.Clock().Now().UTC()
	start := time.Now()
	logger := e.logger.With("run_id", runID)

	events, err := e.source.LoadWindow(ctx, now.Add(-e.lookback))
	if err != nil {
		e.audit(ctx, runID, "failed", nil, 0, start)
		return domain.DedupReport{}, fmt.Errorf("load window: %w", err)
	}

	report := domain.DedupReport{RunID: runID, Events: len(events)}
	if len(events) == 0 {
		logger.Info("dedup pass: no events in window", "lookback", e.lookback)
		report.DurationS = time.Since(start).Seconds()
		e.audit(ctx, runID, "success", &domain.ClusterStats{}, 0, start)
		return report, nil
	}

	clusters := ClusterEvents(events, e.strategy)

	unified := make([]domain.UnifiedEvent, 0, len(clusters))
	links := make([]domain.CrosswalkEntry, 0, len(events))
	multiSource := 0
	for _, c := range clusters {
		u, l := BuildUnified(c, now)
		unified = append(unified, u)
		links = append(links, l...)
		if u.NumSources > 1 {
			multiSource++
		}
	}

	if err := e.store.UpsertDedupPass(ctx, unified, links); err != nil {
		e.audit(ctx, runID, "failed", nil, 0, start)
		return domain.DedupReport{}, fmt.Errorf("upsert dedup pass: %w", err)
	}

	report.Clusters = len(clusters)
	report.MultiSource = multiSource

	if e.publisher != nil {
		published, err := e.publisher.Publish(ctx, unified)
		if err != nil {
			// Persisted state is already committed; the next pass republishes.
			logger.Error("publish unified events failed", "error", err)
		} else {
			report.Published = published
			e.metrics.UnifiedPublished.Add(float64(published))
		}
	}

	report.DurationS = time.Since(start).Seconds()

	e.metrics.DedupDuration.Observe(report.DurationS)
	e.metrics.ClusteredEvents.Set(float64(report.Events))
	e.metrics.Clusters.Set(float64(report.Clusters))
	e.metrics.MultiSourceClusters.Set(float64(report.MultiSource))

	stats := &domain.ClusterStats{
		Events:      report.Events,
		Clusters:    report.Clusters,
		MultiSource: report.MultiSource,
	}
	e.audit(ctx, runID, "success", stats, len(unified), start)

	logger.Info("dedup pass complete",
		"events", report.Events,
		"clusters", report.Clusters,
		"multi_source", report.MultiSource,
		"published", report.Published,
		"duration_s", report.DurationS)
	return report, nil
}

func (e *Engine) audit(ctx context.Context, runID, status string, stats *domain.ClusterStats, unifiedCount int, start time.Time) {
	run := domain.PipelineRun{
		RunID:        runID,
		EndTime:      domain.Clock().Now().UTC(),
		Status:       status,
		UnifiedCount: unifiedCount,
		ClusterStats: stats,
		DurationS:    time.Since(start).Seconds(),
	}
	if err := e.store.LogPipelineRun(ctx, run); err != nil {
		e.logger.Error("log pipeline run failed", "run_id", runID, "error", err)
	}
}
