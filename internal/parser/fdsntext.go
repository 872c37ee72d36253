package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// fdsnTextColumns is the fixed column count of the FDSN event text format:
// EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|
// ContributorID|MagType|Magnitude|MagAuthor|EventLocationName
const fdsnTextColumns = 13

// FDSNText parses the pipe-delimited FDSN event text format served by
// format=text endpoints (GFZ GEOFON among others). Depth is already in km.
type FDSNText struct {
	source           domain.Source
	reviewedCatalogs map[string]bool
}

// NewFDSNText creates a text parser for one source. Events whose Catalog
// column matches one of reviewedCatalogs (case-insensitive) are marked
// reviewed; the format has no per-event evaluation field.
func NewFDSNText(source domain.Source, reviewedCatalogs []string) *FDSNText {
	m := make(map[string]bool, len(reviewedCatalogs))
	for _, c := range reviewedCatalogs {
		m[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &FDSNText{source: source, reviewedCatalogs: m}
}

// Parse converts the text payload line by line. Header lines start with '#';
// data lines with the wrong column count or unparseable numeric fields are
// skipped. A payload with no parseable structure is just an empty result —
// the text format has no top-level framing to fail on.
func (p *FDSNText) Parse(rawPayload string, fetchedAt time.Time) ([]domain.NormalizedEvent, error) {
	var events []domain.NormalizedEvent

	for _, line := range strings.Split(rawPayload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cols := strings.Split(line, "|")
		if len(cols) != fdsnTextColumns {
			continue
		}

		id := strings.TrimSpace(cols[0])
		if id == "" {
			continue
		}
		originTime, err := parseISOTimestamp(cols[1])
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(cols[2]), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(cols[3]), 64)
		if err != nil {
			continue
		}
		depth, err := strconv.ParseFloat(strings.TrimSpace(cols[4]), 64)
		if err != nil {
			continue
		}
		mag, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil {
			continue
		}

		status := domain.StatusAutomatic
		if p.reviewedCatalogs[strings.ToLower(strings.TrimSpace(cols[6]))] {
			status = domain.StatusReviewed
		}
		place := strings.TrimSpace(cols[12])

		events = append(events, domain.NormalizedEvent{
			EventUID:       domain.EventUID(p.source, id),
			Source:         p.source,
			SourceEventID:  id,
			OriginTimeUTC:  originTime,
			Latitude:       lat,
			Longitude:      domain.WrapLongitude(lon),
			DepthKM:        depth,
			MagnitudeValue: mag,
			MagnitudeType:  normalizeMagType(cols[9]),
			Place:          place,
			Region:         place,
			Status:         status,
			Author:         strings.TrimSpace(cols[5]),
			FetchedAt:      fetchedAt,
		})
	}
	return events, nil
}
