package dedup

import (
	"math"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// Matching thresholds. Two records can only describe the same earthquake when
// all three gates pass; the weighted score then ranks how well they agree.
const (
	maxTimeDiffSec = 30.0
	maxDistanceKM  = 100.0
	maxMagDiff     = 0.5

	matchThreshold = 0.6
)

// MatchScore computes the similarity of two records in [0, 1]. A time gap at
// or beyond 30 s, a distance beyond 100 km, or a magnitude gap beyond 0.5
// zeroes the score outright.
func MatchScore(a, b domain.EventRecord) float64 {
	dt := math.Abs(a.OriginTimeUTC.Sub(b.OriginTimeUTC).Seconds())
	if dt >= maxTimeDiffSec {
		return 0
	}

	dist := domain.HaversineKM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	if dist > maxDistanceKM {
		return 0
	}

	dmag := math.Abs(a.MagnitudeValue - b.MagnitudeValue)
	if dmag > maxMagDiff {
		return 0
	}

	return 0.4*math.Max(0, 1-dt/maxTimeDiffSec) +
		0.4*math.Max(0, 1-dist/maxDistanceKM) +
		0.2*math.Max(0, 1-dmag/maxMagDiff)
}
