package domain

import (
	"time"
)

// Source identifies a reporting agency. The set is closed: events from an
// unrecognized agency are rejected at validation.
type Source string

const (
	SourceUSGS   Source = "usgs"
	SourceEMSC   Source = "emsc"
	SourceGFZ    Source = "gfz"
	SourceISC    Source = "isc"
	SourceIPGP   Source = "ipgp"
	SourceGeoNet Source = "geonet"
)

// Sources lists every known agency tag.
var Sources = []Source{SourceUSGS, SourceEMSC, SourceGFZ, SourceISC, SourceIPGP, SourceGeoNet}

// Valid reports whether s is one of the known agency tags.
func (s Source) Valid() bool {
	switch s {
	case SourceUSGS, SourceEMSC, SourceGFZ, SourceISC, SourceIPGP, SourceGeoNet:
		return true
	}
	return false
}

// Status is the review state of an origin. Agency vocabularies richer than
// this (confirmed, final) collapse to StatusReviewed at the parsers.
type Status string

const (
	StatusAutomatic Status = "automatic"
	StatusReviewed  Status = "reviewed"
)

// NormalizedEvent is the canonical record shape every parser emits.
// Events are created by the ingestion pipeline, validated, appended to the
// raw store, and never mutated afterwards.
type NormalizedEvent struct {
	EventUID       string    `json:"event_uid"`
	Source         Source    `json:"source"`
	SourceEventID  string    `json:"source_event_id"`
	OriginTimeUTC  time.Time `json:"origin_time_utc"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	DepthKM        float64   `json:"depth_km"`
	MagnitudeValue float64   `json:"magnitude_value"`
	MagnitudeType  string    `json:"magnitude_type"`
	Place          string    `json:"place,omitempty"`
	Region         string    `json:"region,omitempty"`
	LatErrorKM     *float64  `json:"lat_error_km,omitempty"`
	LonErrorKM     *float64  `json:"lon_error_km,omitempty"`
	DepthErrorKM   *float64  `json:"depth_error_km,omitempty"`
	MagError       *float64  `json:"mag_error,omitempty"`
	Status         Status    `json:"status"`
	Author         string    `json:"author,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`

	// RawPayload is a bounded excerpt retained for dead-letter diagnostics.
	// It is not serialized with the event.
	RawPayload string `json:"-"`
}

// EventUID forms the globally unique identifier "<source>:<source_event_id>".
func EventUID(source Source, sourceEventID string) string {
	return string(source) + ":" + sourceEventID
}

// Record projects the event into its clustering view.
func (e NormalizedEvent) Record() EventRecord {
	return EventRecord{
		EventUID:       e.EventUID,
		Source:         e.Source,
		OriginTimeUTC:  e.OriginTimeUTC,
		Latitude:       e.Latitude,
		Longitude:      e.Longitude,
		DepthKM:        e.DepthKM,
		MagnitudeValue: e.MagnitudeValue,
		MagnitudeType:  e.MagnitudeType,
		Place:          e.Place,
		Region:         e.Region,
		Status:         e.Status,
	}
}

// EventRecord is the projection of NormalizedEvent the deduplicator loads
// from the raw store: same semantics, without payload, author, uncertainties
// or fetch metadata.
type EventRecord struct {
	EventUID       string    `json:"event_uid" db:"event_uid"`
	Source         Source    `json:"source" db:"source"`
	OriginTimeUTC  time.Time `json:"origin_time_utc" db:"origin_time_utc"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	DepthKM        float64   `json:"depth_km" db:"depth_km"`
	MagnitudeValue float64   `json:"magnitude_value" db:"magnitude_value"`
	MagnitudeType  string    `json:"magnitude_type" db:"magnitude_type"`
	Place          string    `json:"place" db:"place"`
	Region         string    `json:"region" db:"region"`
	Status         Status    `json:"status" db:"status"`
}

// UnifiedEvent is the canonical per-cluster output row.
type UnifiedEvent struct {
	UnifiedEventID       string    `json:"unified_event_id" db:"unified_event_id"`
	OriginTimeUTC        time.Time `json:"origin_time_utc" db:"origin_time_utc"`
	Latitude             float64   `json:"latitude" db:"latitude"`
	Longitude            float64   `json:"longitude" db:"longitude"`
	DepthKM              float64   `json:"depth_km" db:"depth_km"`
	MagnitudeValue       float64   `json:"magnitude_value" db:"magnitude_value"`
	MagnitudeType        string    `json:"magnitude_type" db:"magnitude_type"`
	Place                string    `json:"place" db:"place"`
	Region               string    `json:"region" db:"region"`
	Status               Status    `json:"status" db:"status"`
	NumSources           int       `json:"num_sources" db:"num_sources"`
	PreferredSource      Source    `json:"preferred_source" db:"preferred_source"`
	PreferredEventUID    string    `json:"preferred_event_uid" db:"preferred_event_uid"`
	MagnitudeStd         float64   `json:"magnitude_std" db:"magnitude_std"`
	LocationSpreadKM     float64   `json:"location_spread_km" db:"location_spread_km"`
	SourceAgreementScore float64   `json:"source_agreement_score" db:"source_agreement_score"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// CrosswalkEntry links one member record to its unified event. MatchScore is
// 1.0 for the preferred member, otherwise the pairwise score against the
// preferred record.
type CrosswalkEntry struct {
	EventUID       string  `json:"event_uid" db:"event_uid"`
	UnifiedEventID string  `json:"unified_event_id" db:"unified_event_id"`
	MatchScore     float64 `json:"match_score" db:"match_score"`
	IsPreferred    bool    `json:"is_preferred" db:"is_preferred"`
}

// DeadLetter is a record rejected by a parser or the validator, retained
// with a payload excerpt for diagnosis.
type DeadLetter struct {
	Source        Source   `json:"source"`
	SourceEventID string   `json:"source_event_id,omitempty"`
	RawPayload    string   `json:"raw_payload"`
	Errors        []string `json:"errors"`
}

// RunReport summarizes one ingestion run. It is the JSON body returned to
// the scheduler on POST /ingest.
type RunReport struct {
	RunID       string  `json:"run_id"`
	Source      Source  `json:"source"`
	RawEvents   int     `json:"raw_events"`
	DeadLetters int     `json:"dead_letters"`
	DurationS   float64 `json:"duration_s"`
}

// DedupReport summarizes one deduplication pass. It is the JSON body
// returned to the scheduler on POST /deduplicate.
type DedupReport struct {
	RunID       string  `json:"run_id"`
	Events      int     `json:"events"`
	Clusters    int     `json:"clusters"`
	MultiSource int     `json:"multi_source"`
	Published   int     `json:"published,omitempty"`
	DurationS   float64 `json:"duration_s"`
}

// ClusterStats is the per-pass clustering summary stored on the audit row.
type ClusterStats struct {
	Events      int `json:"events"`
	Clusters    int `json:"clusters"`
	MultiSource int `json:"multi_source"`
}

// PipelineRun is one audit row describing an ingestion run or a dedup pass.
type PipelineRun struct {
	RunID           string        `json:"run_id"`
	EndTime         time.Time     `json:"end_time"`
	Status          string        `json:"status"`
	Sources         []string      `json:"sources"`
	RawCount        int           `json:"raw_count"`
	UnifiedCount    int           `json:"unified_count"`
	DeadLetterCount int           `json:"dead_letter_count"`
	ClusterStats    *ClusterStats `json:"cluster_stats,omitempty"`
	DurationS       float64       `json:"duration_s"`
	SourceName      string        `json:"source_name,omitempty"`
}
