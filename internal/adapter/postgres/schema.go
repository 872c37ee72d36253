package postgres

// Schema for the raw, dead-letter, audit, and unified stores. Raw events are
// append-only and deliberately have no primary key: the same event_uid may be
// fetched by overlapping windows, and dedup collapses the duplicates.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS normalized_events (
    event_uid       TEXT             NOT NULL,
    source          TEXT             NOT NULL,
    source_event_id TEXT             NOT NULL,
    origin_time_utc TIMESTAMPTZ      NOT NULL,
    latitude        DOUBLE PRECISION NOT NULL,
    longitude       DOUBLE PRECISION NOT NULL,
    depth_km        DOUBLE PRECISION NOT NULL,
    magnitude_value DOUBLE PRECISION NOT NULL,
    magnitude_type  TEXT             NOT NULL,
    place           TEXT             NOT NULL DEFAULT '',
    region          TEXT             NOT NULL DEFAULT '',
    lat_error_km    DOUBLE PRECISION,
    lon_error_km    DOUBLE PRECISION,
    depth_error_km  DOUBLE PRECISION,
    mag_error       DOUBLE PRECISION,
    status          TEXT             NOT NULL,
    author          TEXT             NOT NULL DEFAULT '',
    fetched_at      TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_normalized_events_origin_time
    ON normalized_events (origin_time_utc);

CREATE TABLE IF NOT EXISTS dead_letters (
    id              BIGSERIAL PRIMARY KEY,
    source          TEXT        NOT NULL,
    source_event_id TEXT        NOT NULL DEFAULT '',
    raw_payload     TEXT        NOT NULL DEFAULT '',
    errors          JSONB       NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id            TEXT             NOT NULL,
    end_time          TIMESTAMPTZ      NOT NULL,
    status            TEXT             NOT NULL,
    sources           JSONB            NOT NULL,
    raw_count         INTEGER          NOT NULL,
    unified_count     INTEGER          NOT NULL,
    dead_letter_count INTEGER          NOT NULL,
    cluster_stats     JSONB,
    duration_s        DOUBLE PRECISION NOT NULL,
    source_name       TEXT             NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS unified_events (
    unified_event_id       TEXT             PRIMARY KEY,
    origin_time_utc        TIMESTAMPTZ      NOT NULL,
    latitude               DOUBLE PRECISION NOT NULL,
    longitude              DOUBLE PRECISION NOT NULL,
    depth_km               DOUBLE PRECISION NOT NULL,
    magnitude_value        DOUBLE PRECISION NOT NULL,
    magnitude_type         TEXT             NOT NULL,
    place                  TEXT             NOT NULL DEFAULT '',
    region                 TEXT             NOT NULL DEFAULT '',
    status                 TEXT             NOT NULL,
    num_sources            INTEGER          NOT NULL,
    preferred_source       TEXT             NOT NULL,
    preferred_event_uid    TEXT             NOT NULL,
    magnitude_std          DOUBLE PRECISION NOT NULL,
    location_spread_km     DOUBLE PRECISION NOT NULL,
    source_agreement_score DOUBLE PRECISION NOT NULL,
    updated_at             TIMESTAMPTZ      NOT NULL
);

CREATE TABLE IF NOT EXISTS event_crosswalk (
    event_uid        TEXT             NOT NULL,
    unified_event_id TEXT             NOT NULL,
    match_score      DOUBLE PRECISION NOT NULL,
    is_preferred     BOOLEAN          NOT NULL,
    PRIMARY KEY (event_uid, unified_event_id)
);
`
