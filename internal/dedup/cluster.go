package dedup

import (
	"math"
	"sort"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// Strategy selects the clustering algorithm.
type Strategy string

const (
	// StrategySpatial partitions events by transitive 100 km reachability
	// first, then sub-clusters each partition by time and magnitude. With a
	// reachability radius equal to the match-distance gate this is exactly
	// density clustering with a minimum cluster size of one.
	StrategySpatial Strategy = "spatial"

	// StrategyGreedy skips the spatial partition and greedily assigns each
	// event, in time order, to the best-scoring existing cluster.
	StrategyGreedy Strategy = "greedy"
)

// Cluster is an ordered group of records describing one physical earthquake.
type Cluster struct {
	Members   []domain.EventRecord
	BestScore float64
}

// Anchor is the earliest member, the reference point for score comparisons.
func (c *Cluster) Anchor() domain.EventRecord {
	return c.Members[0]
}

// DistinctSources counts the distinct reporting agencies among members.
func (c *Cluster) DistinctSources() int {
	seen := make(map[domain.Source]struct{}, len(c.Members))
	for _, m := range c.Members {
		seen[m.Source] = struct{}{}
	}
	return len(seen)
}

// ClusterEvents groups events that represent the same earthquake. Input order
// does not matter; events are sorted by origin time before clustering, so the
// result is deterministic.
func ClusterEvents(events []domain.EventRecord, strategy Strategy) []*Cluster {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]domain.EventRecord, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OriginTimeUTC.Before(sorted[j].OriginTimeUTC)
	})

	if strategy == StrategyGreedy {
		return subClusterTimeMag(sorted)
	}

	var clusters []*Cluster
	for _, group := range spatialPartition(sorted) {
		clusters = append(clusters, subClusterTimeMag(group)...)
	}
	return clusters
}

// spatialPartition unions events within 100 km of each other, transitively,
// and returns the partitions in order of their earliest member.
func spatialPartition(sorted []domain.EventRecord) [][]domain.EventRecord {
	parent := make([]int, len(sorted))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			d := domain.HaversineKM(sorted[i].Latitude, sorted[i].Longitude,
				sorted[j].Latitude, sorted[j].Longitude)
			if d <= maxDistanceKM {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]domain.EventRecord)
	var roots []int
	for i, e := range sorted {
		r := find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], e)
	}

	groups := make([][]domain.EventRecord, 0, len(roots))
	for _, r := range roots {
		groups = append(groups, byRoot[r])
	}
	return groups
}

// subClusterTimeMag separates aftershocks at the same location. Each event,
// in ascending time order, joins the highest-scoring existing cluster whose
// anchor passes the time and magnitude gates, or opens a new cluster. Score
// ties break toward the earlier-created cluster.
func subClusterTimeMag(sorted []domain.EventRecord) []*Cluster {
	var clusters []*Cluster
	for _, event := range sorted {
		var best *Cluster
		bestScore := 0.0

		for _, c := range clusters {
			anchor := c.Anchor()
			dt := math.Abs(event.OriginTimeUTC.Sub(anchor.OriginTimeUTC).Seconds())
			dmag := math.Abs(event.MagnitudeValue - anchor.MagnitudeValue)
			if dt > maxTimeDiffSec || dmag > maxMagDiff {
				continue
			}
			if score := MatchScore(event, anchor); score >= matchThreshold && score > bestScore {
				best, bestScore = c, score
			}
		}

		if best != nil {
			best.Members = append(best.Members, event)
			if bestScore > best.BestScore {
				best.BestScore = bestScore
			}
		} else {
			clusters = append(clusters, &Cluster{Members: []domain.EventRecord{event}})
		}
	}
	return clusters
}
