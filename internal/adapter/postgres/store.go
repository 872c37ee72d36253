// Package postgres persists raw events, dead letters, audit rows, and the
// unified/crosswalk output in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// Store wraps the database handle. It implements ingest.RawStore,
// dedup.EventSource, and dedup.UnifiedStore.
type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle; used by tests.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates all tables and indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const insertRawEventSQL = `
INSERT INTO normalized_events (
    event_uid, source, source_event_id, origin_time_utc,
    latitude, longitude, depth_km, magnitude_value, magnitude_type,
    place, region, lat_error_km, lon_error_km, depth_error_km, mag_error,
    status, author, fetched_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// InsertRawEvents appends the batch and returns how many rows were written.
// All-or-nothing: a failed insert rolls the whole batch back.
func (s *Store) InsertRawEvents(ctx context.Context, events []domain.NormalizedEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.ExecContext(ctx, insertRawEventSQL,
			e.EventUID, e.Source, e.SourceEventID, e.OriginTimeUTC,
			e.Latitude, e.Longitude, e.DepthKM, e.MagnitudeValue, e.MagnitudeType,
			e.Place, e.Region, e.LatErrorKM, e.LonErrorKM, e.DepthErrorKM, e.MagError,
			e.Status, e.Author, e.FetchedAt)
		if err != nil {
			return 0, fmt.Errorf("insert raw event %s: %w", e.EventUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(events), nil
}

// InsertDeadLetters appends rejection rows. The error list is stored as JSON.
func (s *Store) InsertDeadLetters(ctx context.Context, rows []domain.DeadLetter) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		errsJSON, err := json.Marshal(r.Errors)
		if err != nil {
			return fmt.Errorf("marshal errors: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dead_letters (source, source_event_id, raw_payload, errors)
			 VALUES ($1, $2, $3, $4)`,
			r.Source, r.SourceEventID, r.RawPayload, errsJSON)
		if err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LogPipelineRun appends one audit row.
func (s *Store) LogPipelineRun(ctx context.Context, run domain.PipelineRun) error {
	sourcesJSON, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	var statsJSON any
	if run.ClusterStats != nil {
		statsJSON, err = json.Marshal(run.ClusterStats)
		if err != nil {
			return fmt.Errorf("marshal cluster stats: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (
		    run_id, end_time, status, sources, raw_count, unified_count,
		    dead_letter_count, cluster_stats, duration_s, source_name
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.RunID, run.EndTime, run.Status, sourcesJSON, run.RawCount,
		run.UnifiedCount, run.DeadLetterCount, statsJSON, run.DurationS, run.SourceName)
	if err != nil {
		return fmt.Errorf("log pipeline run: %w", err)
	}
	return nil
}

// LoadWindow reads every raw event with origin_time_utc at or after since,
// oldest first.
func (s *Store) LoadWindow(ctx context.Context, since time.Time) ([]domain.EventRecord, error) {
	var records []domain.EventRecord
	err := s.db.SelectContext(ctx, &records,
		`SELECT event_uid, source, origin_time_utc, latitude, longitude,
		        depth_km, magnitude_value, magnitude_type, place, region, status
		 FROM normalized_events
		 WHERE origin_time_utc >= $1
		 ORDER BY origin_time_utc`, since)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}
	return records, nil
}

const upsertUnifiedSQL = `
INSERT INTO unified_events (
    unified_event_id, origin_time_utc, latitude, longitude, depth_km,
    magnitude_value, magnitude_type, place, region, status,
    num_sources, preferred_source, preferred_event_uid,
    magnitude_std, location_spread_km, source_agreement_score, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (unified_event_id) DO UPDATE SET
    origin_time_utc = EXCLUDED.origin_time_utc,
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    depth_km = EXCLUDED.depth_km,
    magnitude_value = EXCLUDED.magnitude_value,
    magnitude_type = EXCLUDED.magnitude_type,
    place = EXCLUDED.place,
    region = EXCLUDED.region,
    status = EXCLUDED.status,
    num_sources = EXCLUDED.num_sources,
    preferred_source = EXCLUDED.preferred_source,
    preferred_event_uid = EXCLUDED.preferred_event_uid,
    magnitude_std = EXCLUDED.magnitude_std,
    location_spread_km = EXCLUDED.location_spread_km,
    source_agreement_score = EXCLUDED.source_agreement_score,
    updated_at = EXCLUDED.updated_at`

const upsertCrosswalkSQL = `
INSERT INTO event_crosswalk (event_uid, unified_event_id, match_score, is_preferred)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_uid, unified_event_id) DO UPDATE SET
    match_score = EXCLUDED.match_score,
    is_preferred = EXCLUDED.is_preferred`

// UpsertDedupPass writes all unified rows and crosswalk entries of one pass
// in a single transaction: either everything commits or nothing does.
func (s *Store) UpsertDedupPass(ctx context.Context, events []domain.UnifiedEvent, links []domain.CrosswalkEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, u := range events {
		_, err := tx.ExecContext(ctx, upsertUnifiedSQL,
			u.UnifiedEventID, u.OriginTimeUTC, u.Latitude, u.Longitude, u.DepthKM,
			u.MagnitudeValue, u.MagnitudeType, u.Place, u.Region, u.Status,
			u.NumSources, u.PreferredSource, u.PreferredEventUID,
			u.MagnitudeStd, u.LocationSpreadKM, u.SourceAgreementScore, u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert unified event %s: %w", u.UnifiedEventID, err)
		}
	}

	for _, l := range links {
		_, err := tx.ExecContext(ctx, upsertCrosswalkSQL,
			l.EventUID, l.UnifiedEventID, l.MatchScore, l.IsPreferred)
		if err != nil {
			return fmt.Errorf("upsert crosswalk %s: %w", l.EventUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
