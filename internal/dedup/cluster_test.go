package dedup

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

func TestClusterEvents_TwoSourceSameEvent(t *testing.T) {
	events := []domain.EventRecord{
		record("usgs:eq1", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 5.0),
		record("emsc:eq1", domain.SourceEMSC, t0, 35.0, -120.0, 10.0, 5.0),
	}

	for _, strategy := range []Strategy{StrategySpatial, StrategyGreedy} {
		clusters := ClusterEvents(events, strategy)
		require.Len(t, clusters, 1, "strategy %s", strategy)
		assert.Len(t, clusters[0].Members, 2)
		assert.Equal(t, 2, clusters[0].DistinctSources())
		assert.InDelta(t, 1.0, clusters[0].BestScore, 1e-9)
	}
}

func TestClusterEvents_TwoDistinctEvents(t *testing.T) {
	events := []domain.EventRecord{
		record("usgs:eq1", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 5.0),
		record("usgs:eq2", domain.SourceUSGS, t0.Add(2*time.Hour), 50.0, 10.0, 12.0, 4.5),
	}
	clusters := ClusterEvents(events, StrategySpatial)
	assert.Len(t, clusters, 2)
}

func TestClusterEvents_ThreeSourceAgreement(t *testing.T) {
	events := []domain.EventRecord{
		record("usgs:a", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 5.0),
		record("emsc:a", domain.SourceEMSC, t0.Add(5*time.Second), 35.0, -120.0, 10.0, 5.2),
		record("gfz:a", domain.SourceGFZ, t0.Add(8*time.Second), 35.0, -120.0, 10.0, 4.8),
	}
	clusters := ClusterEvents(events, StrategySpatial)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Members, 3)

	m := ComputeQualityMetrics(clusters[0])
	assert.Equal(t, 1.0, m.SourceAgreementScore)
	assert.InDelta(t, 0.1633, m.MagnitudeStd, 1e-4)
}

func TestClusterEvents_AftershockSeparation(t *testing.T) {
	// Same location, 10 minutes apart: spatially one group, temporally two.
	events := []domain.EventRecord{
		record("usgs:main", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 6.0),
		record("usgs:after", domain.SourceUSGS, t0.Add(10*time.Minute), 35.0, -120.0, 8.0, 4.2),
	}
	clusters := ClusterEvents(events, StrategySpatial)
	assert.Len(t, clusters, 2)
}

func TestSpatialPartition_TransitiveChain(t *testing.T) {
	// a-b and b-c are each within 100 km; a-c is not. Reachability is
	// transitive, so the chain forms a single spatial partition. The
	// anchor-gated sub-clustering then decides final membership.
	events := []domain.EventRecord{
		record("usgs:a", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 5.0),
		record("emsc:b", domain.SourceEMSC, t0.Add(5*time.Second), 35.8, -120.0, 10.0, 5.0),
		record("gfz:c", domain.SourceGFZ, t0.Add(10*time.Second), 36.6, -120.0, 10.0, 5.0),
	}
	require.Greater(t, domain.HaversineKM(35.0, -120.0, 36.6, -120.0), maxDistanceKM)

	groups := spatialPartition(events)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 3)
}

func TestClusterEvents_OrderIndependent(t *testing.T) {
	events := []domain.EventRecord{
		record("gfz:a", domain.SourceGFZ, t0.Add(8*time.Second), 35.0, -120.0, 10.0, 4.8),
		record("usgs:a", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 5.0),
		record("emsc:a", domain.SourceEMSC, t0.Add(5*time.Second), 35.0, -120.0, 10.0, 5.2),
	}
	clusters := ClusterEvents(events, StrategySpatial)
	require.Len(t, clusters, 1)
	assert.Equal(t, "usgs:a", clusters[0].Anchor().EventUID, "anchor is earliest by origin time")
}

func TestClusterEvents_Empty(t *testing.T) {
	assert.Empty(t, ClusterEvents(nil, StrategySpatial))
	assert.Empty(t, ClusterEvents([]domain.EventRecord{}, StrategyGreedy))
}

func TestClusterInvariants(t *testing.T) {
	events := []domain.EventRecord{
		record("usgs:a", domain.SourceUSGS, t0, 35.0, -120.0, 10.0, 5.0),
		record("emsc:a", domain.SourceEMSC, t0.Add(5*time.Second), 35.1, -120.1, 11.0, 5.1),
		record("usgs:b", domain.SourceUSGS, t0.Add(2*time.Hour), 50.0, 10.0, 12.0, 4.5),
		record("gfz:b", domain.SourceGFZ, t0.Add(2*time.Hour+10*time.Second), 50.05, 10.05, 12.0, 4.6),
	}
	clusters := ClusterEvents(events, StrategySpatial)
	require.Len(t, clusters, 2)

	total := 0
	for _, c := range clusters {
		total += len(c.Members)
		assert.LessOrEqual(t, c.DistinctSources(), len(c.Members))

		// Consecutive members always gate against the anchor.
		anchor := c.Anchor()
		for _, m := range c.Members {
			dt := math.Abs(m.OriginTimeUTC.Sub(anchor.OriginTimeUTC).Seconds())
			assert.LessOrEqual(t, dt, maxTimeDiffSec)
			assert.LessOrEqual(t, math.Abs(m.MagnitudeValue-anchor.MagnitudeValue), maxMagDiff)
		}
	}
	assert.Equal(t, len(events), total, "every event lands in exactly one cluster")
}
