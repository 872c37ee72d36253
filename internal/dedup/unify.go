package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// SelectPreferred picks the canonical member of a cluster. Reviewed members
// beat automatic ones; within the candidate set, the member whose source
// ranks earliest in the region priority at the cluster centroid wins, with
// unlisted sources ranking last and ties breaking by member order.
func SelectPreferred(c *Cluster) domain.EventRecord {
	candidates := c.Members
	var reviewed []domain.EventRecord
	for _, m := range c.Members {
		if m.Status == domain.StatusReviewed {
			reviewed = append(reviewed, m)
		}
	}
	if len(reviewed) > 0 {
		candidates = reviewed
	}

	priority := centroidPriority(c)
	best := candidates[0]
	bestRank := sourceRank(priority, best.Source)
	for _, m := range candidates[1:] {
		if r := sourceRank(priority, m.Source); r < bestRank {
			best, bestRank = m, r
		}
	}
	return best
}

// UnifiedID derives the deterministic cluster identity from its membership.
// Stable across reruns and member discovery order; any membership change
// yields a new ID.
func UnifiedID(c *Cluster) string {
	uids := make([]string, len(c.Members))
	for i, m := range c.Members {
		uids[i] = m.EventUID
	}
	sort.Strings(uids)
	sum := sha256.Sum256([]byte(strings.Join(uids, "|")))
	return "UE-" + hex.EncodeToString(sum[:])[:16]
}

// WeightedCentroid averages member lat/lon/depth, weighting each member by
// how well its source ranks in the region priority at the simple centroid.
func WeightedCentroid(c *Cluster) (lat, lon, depthKM float64) {
	priority := centroidPriority(c)
	n := float64(len(priority))

	var totalWeight, latSum, lonSum, depthSum float64
	for _, m := range c.Members {
		w := math.Max(1, n-float64(sourceRank(priority, m.Source)))
		latSum += m.Latitude * w
		lonSum += m.Longitude * w
		depthSum += m.DepthKM * w
		totalWeight += w
	}
	if totalWeight == 0 {
		a := c.Anchor()
		return a.Latitude, a.Longitude, a.DepthKM
	}
	return latSum / totalWeight, lonSum / totalWeight, depthSum / totalWeight
}

// QualityMetrics summarizes how well the member records agree.
type QualityMetrics struct {
	MagnitudeStd         float64
	LocationSpreadKM     float64
	SourceAgreementScore float64
}

// ComputeQualityMetrics derives the per-cluster agreement metrics:
// population standard deviation of magnitudes, maximum pairwise haversine
// distance, and distinct-source fraction.
func ComputeQualityMetrics(c *Cluster) QualityMetrics {
	members := c.Members

	var magStd float64
	if len(members) > 1 {
		var sum float64
		for _, m := range members {
			sum += m.MagnitudeValue
		}
		mean := sum / float64(len(members))
		var variance float64
		for _, m := range members {
			d := m.MagnitudeValue - mean
			variance += d * d
		}
		magStd = math.Sqrt(variance / float64(len(members)))
	}

	var spread float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			d := domain.HaversineKM(members[i].Latitude, members[i].Longitude,
				members[j].Latitude, members[j].Longitude)
			if d > spread {
				spread = d
			}
		}
	}

	agreement := float64(c.DistinctSources()) / float64(len(members))

	return QualityMetrics{
		MagnitudeStd:         roundTo(magStd, 4),
		LocationSpreadKM:     roundTo(spread, 2),
		SourceAgreementScore: roundTo(agreement, 4),
	}
}

// BuildUnified assembles the output row and crosswalk entries for a cluster.
func BuildUnified(c *Cluster, now time.Time) (domain.UnifiedEvent, []domain.CrosswalkEntry) {
	preferred := SelectPreferred(c)
	unifiedID := UnifiedID(c)
	lat, lon, depth := WeightedCentroid(c)
	metrics := ComputeQualityMetrics(c)

	unified := domain.UnifiedEvent{
		UnifiedEventID:       unifiedID,
		OriginTimeUTC:        preferred.OriginTimeUTC,
		Latitude:             lat,
		Longitude:            lon,
		DepthKM:              depth,
		MagnitudeValue:       preferred.MagnitudeValue,
		MagnitudeType:        preferred.MagnitudeType,
		Place:                preferred.Place,
		Region:               preferred.Region,
		Status:               preferred.Status,
		NumSources:           c.DistinctSources(),
		PreferredSource:      preferred.Source,
		PreferredEventUID:    preferred.EventUID,
		MagnitudeStd:         metrics.MagnitudeStd,
		LocationSpreadKM:     metrics.LocationSpreadKM,
		SourceAgreementScore: metrics.SourceAgreementScore,
		UpdatedAt:            now,
	}

	links := make([]domain.CrosswalkEntry, 0, len(c.Members))
	for _, m := range c.Members {
		score := 1.0
		if m.EventUID != preferred.EventUID {
			score = MatchScore(m, preferred)
		}
		links = append(links, domain.CrosswalkEntry{
			EventUID:       m.EventUID,
			UnifiedEventID: unifiedID,
			MatchScore:     score,
			IsPreferred:    m.EventUID == preferred.EventUID,
		})
	}
	return unified, links
}

func centroidPriority(c *Cluster) []domain.Source {
	var latSum, lonSum float64
	for _, m := range c.Members {
		latSum += m.Latitude
		lonSum += m.Longitude
	}
	n := float64(len(c.Members))
	return domain.SourcePriority(latSum/n, lonSum/n)
}

func sourceRank(priority []domain.Source, s domain.Source) int {
	for i, p := range priority {
		if p == s {
			return i
		}
	}
	return len(priority)
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
