// Package parser translates agency wire formats into normalized events.
//
// Every parser follows the same contract: a malformed individual event is
// skipped (the agency will re-serve it on the next fetch window), while a
// payload whose top-level structure cannot be parsed returns an error so the
// pipeline can dead-letter the whole batch.
package parser

import (
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// Parser converts one raw agency payload into normalized events.
type Parser interface {
	Parse(rawPayload string, fetchedAt time.Time) ([]domain.NormalizedEvent, error)
}

// FormatFor maps each source to the FDSN format request parameter.
var FormatFor = map[domain.Source]string{
	domain.SourceUSGS:   "geojson",
	domain.SourceEMSC:   "json",
	domain.SourceGFZ:    "text",
	domain.SourceISC:    "xml",
	domain.SourceIPGP:   "xml",
	domain.SourceGeoNet: "xml",
}

// ForSource returns the parser registered for a source. reviewedCatalogs
// applies to text-format sources only: events from those catalogs are marked
// reviewed (FDSN text carries no per-event evaluation field).
func ForSource(source domain.Source, reviewedCatalogs []string) (Parser, bool) {
	switch source {
	case domain.SourceUSGS:
		return NewUSGSGeoJSON(), true
	case domain.SourceEMSC:
		return NewEMSCGeoJSON(), true
	case domain.SourceGFZ:
		return NewFDSNText(source, reviewedCatalogs), true
	case domain.SourceISC, domain.SourceIPGP, domain.SourceGeoNet:
		return NewQuakeML(source), true
	}
	return nil, false
}
