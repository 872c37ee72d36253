package domain

import (
	"fmt"
	"math"
)

// WrapLongitude folds a longitude into [-180, 180] by adding or subtracting
// 360. Agencies near the antimeridian occasionally publish values like 185.3;
// parsers call this before handing records to the validator.
func WrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// Validate checks every invariant and returns the full list of violations,
// empty on success. It deliberately does not short-circuit so a dead-letter
// row carries the complete diagnosis.
func Validate(e NormalizedEvent) []string {
	var errs []string

	if !e.Source.Valid() {
		errs = append(errs, fmt.Sprintf("unknown source %q", e.Source))
	}
	if e.SourceEventID == "" {
		errs = append(errs, "source_event_id is empty")
	}
	if e.Latitude < -90 || e.Latitude > 90 {
		errs = append(errs, fmt.Sprintf("latitude %g outside [-90, 90]", e.Latitude))
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("longitude %g outside [-180, 180]", e.Longitude))
	}
	if e.DepthKM < 0 {
		errs = append(errs, fmt.Sprintf("depth_km %g is negative", e.DepthKM))
	}
	if e.OriginTimeUTC.IsZero() {
		errs = append(errs, "origin_time_utc is unset")
	}
	if math.IsNaN(e.MagnitudeValue) || math.IsInf(e.MagnitudeValue, 0) {
		errs = append(errs, "magnitude_value is not finite")
	}

	return errs
}
