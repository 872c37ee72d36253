package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// EMSCGeoJSON parses the EMSC seismicportal GeoJSON feed. The shape matches
// USGS (FeatureCollection of point features) but the property keys differ:
//
//	USGS          EMSC
//	----          ----
//	id            properties.unid (fallback properties.source_id)
//	mag           properties.mag
//	magType       properties.magtype
//	time (ms)     properties.time (ISO 8601 string)
//	place         properties.flynn_region
//	status        (absent; EMSC real-time exports are automatic)
//	(author n/a)  properties.auth
type EMSCGeoJSON struct{}

// NewEMSCGeoJSON creates the EMSC parser.
func NewEMSCGeoJSON() *EMSCGeoJSON {
	return &EMSCGeoJSON{}
}

type emscCollection struct {
	Features []emscFeature `json:"features"`
}

type emscFeature struct {
	Properties emscProperties `json:"properties"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, -depth_km]
	} `json:"geometry"`
}

type emscProperties struct {
	UnID        string   `json:"unid"`
	SourceID    string   `json:"source_id"`
	Mag         *float64 `json:"mag"`
	MagType     string   `json:"magtype"`
	Time        string   `json:"time"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Depth       *float64 `json:"depth"`
	FlynnRegion string   `json:"flynn_region"`
	Auth        string   `json:"auth"`
}

// Parse converts an EMSC FeatureCollection into normalized events.
// Coordinates come from the properties when present (the geometry triple
// negates depth); events missing magnitude, time, or position are skipped.
func (p *EMSCGeoJSON) Parse(rawPayload string, fetchedAt time.Time) ([]domain.NormalizedEvent, error) {
	if strings.TrimSpace(rawPayload) == "" {
		return nil, nil
	}

	var coll emscCollection
	if err := json.Unmarshal([]byte(rawPayload), &coll); err != nil {
		return nil, fmt.Errorf("parse emsc geojson: %w", err)
	}

	events := make([]domain.NormalizedEvent, 0, len(coll.Features))
	for _, f := range coll.Features {
		id := f.Properties.UnID
		if id == "" {
			id = f.Properties.SourceID
		}
		if id == "" || f.Properties.Mag == nil {
			continue
		}

		originTime, err := parseISOTimestamp(f.Properties.Time)
		if err != nil {
			continue
		}

		lat, lon, depth, ok := emscCoordinates(f)
		if !ok {
			continue
		}

		events = append(events, domain.NormalizedEvent{
			EventUID:       domain.EventUID(domain.SourceEMSC, id),
			Source:         domain.SourceEMSC,
			SourceEventID:  id,
			OriginTimeUTC:  originTime,
			Latitude:       lat,
			Longitude:      domain.WrapLongitude(lon),
			DepthKM:        depth,
			MagnitudeValue: *f.Properties.Mag,
			MagnitudeType:  normalizeMagType(f.Properties.MagType),
			Place:          f.Properties.FlynnRegion,
			Region:         f.Properties.FlynnRegion,
			Status:         domain.StatusAutomatic,
			Author:         f.Properties.Auth,
			FetchedAt:      fetchedAt,
		})
	}
	return events, nil
}

func emscCoordinates(f emscFeature) (lat, lon, depth float64, ok bool) {
	if f.Properties.Lat != nil && f.Properties.Lon != nil {
		lat, lon = *f.Properties.Lat, *f.Properties.Lon
		if f.Properties.Depth != nil {
			depth = *f.Properties.Depth
		}
		return lat, lon, depth, true
	}
	if len(f.Geometry.Coordinates) >= 3 {
		// EMSC geometry encodes depth as negative elevation.
		return f.Geometry.Coordinates[1], f.Geometry.Coordinates[0], -f.Geometry.Coordinates[2], true
	}
	return 0, 0, 0, false
}
