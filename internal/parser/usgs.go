package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// USGSGeoJSON parses the USGS fdsnws GeoJSON FeatureCollection.
type USGSGeoJSON struct{}

// NewUSGSGeoJSON creates the USGS parser.
func NewUSGSGeoJSON() *USGSGeoJSON {
	return &USGSGeoJSON{}
}

type usgsCollection struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string         `json:"id"`
	Properties usgsProperties `json:"properties"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth_km]
	} `json:"geometry"`
}

type usgsProperties struct {
	Mag      *float64 `json:"mag"`
	MagType  string   `json:"magType"`
	Place    string   `json:"place"`
	Time     int64    `json:"time"` // milliseconds since epoch
	Status   string   `json:"status"`
	MagError *float64 `json:"magError"`
}

// Parse converts a FeatureCollection into normalized events. Features with a
// null magnitude or a missing coordinate triple are skipped.
func (p *USGSGeoJSON) Parse(rawPayload string, fetchedAt time.Time) ([]domain.NormalizedEvent, error) {
	if strings.TrimSpace(rawPayload) == "" {
		return nil, nil
	}

	var coll usgsCollection
	if err := json.Unmarshal([]byte(rawPayload), &coll); err != nil {
		return nil, fmt.Errorf("parse usgs geojson: %w", err)
	}

	events := make([]domain.NormalizedEvent, 0, len(coll.Features))
	for _, f := range coll.Features {
		if f.ID == "" || f.Properties.Mag == nil || len(f.Geometry.Coordinates) < 3 {
			continue
		}

		lon := domain.WrapLongitude(f.Geometry.Coordinates[0])
		status := domain.StatusAutomatic
		if f.Properties.Status == "reviewed" {
			status = domain.StatusReviewed
		}

		events = append(events, domain.NormalizedEvent{
			EventUID:       domain.EventUID(domain.SourceUSGS, f.ID),
			Source:         domain.SourceUSGS,
			SourceEventID:  f.ID,
			OriginTimeUTC:  time.UnixMilli(f.Properties.Time).UTC(),
			Latitude:       f.Geometry.Coordinates[1],
			Longitude:      lon,
			DepthKM:        f.Geometry.Coordinates[2],
			MagnitudeValue: *f.Properties.Mag,
			MagnitudeType:  normalizeMagType(f.Properties.MagType),
			Place:          f.Properties.Place,
			Region:         f.Properties.Place,
			MagError:       f.Properties.MagError,
			Status:         status,
			FetchedAt:      fetchedAt,
		})
	}
	return events, nil
}

// normalizeMagType lowercases a magnitude type tag, defaulting unknowns
// to ml (local magnitude, the most common unlabeled case).
func normalizeMagType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "ml"
	}
	return t
}
