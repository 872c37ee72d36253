package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() NormalizedEvent {
	return NormalizedEvent{
		EventUID:       "usgs:eq1",
		Source:         SourceUSGS,
		SourceEventID:  "eq1",
		OriginTimeUTC:  time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Latitude:       35.0,
		Longitude:      -120.0,
		DepthKM:        10.0,
		MagnitudeValue: 5.0,
		MagnitudeType:  "mw",
		Status:         StatusReviewed,
		FetchedAt:      time.Date(2024, 1, 15, 12, 5, 0, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid event", func(t *testing.T) {
		assert.Empty(t, Validate(validEvent()))
	})

	t.Run("zero depth is valid", func(t *testing.T) {
		e := validEvent()
		e.DepthKM = 0
		assert.Empty(t, Validate(e))
	})

	t.Run("longitude boundaries are valid", func(t *testing.T) {
		for _, lon := range []float64{180, -180} {
			e := validEvent()
			e.Longitude = lon
			assert.Empty(t, Validate(e), "lon=%g", lon)
		}
	})

	t.Run("empty source event id", func(t *testing.T) {
		e := validEvent()
		e.SourceEventID = ""
		errs := Validate(e)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "source_event_id")
	})

	t.Run("unknown source", func(t *testing.T) {
		e := validEvent()
		e.Source = "jma"
		errs := Validate(e)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "unknown source")
	})

	t.Run("all violations reported", func(t *testing.T) {
		e := NormalizedEvent{
			Source:         "nope",
			Latitude:       95,
			Longitude:      200,
			DepthKM:        -1,
			MagnitudeValue: math.NaN(),
		}
		errs := Validate(e)
		assert.Len(t, errs, 7)
	})

	t.Run("infinite magnitude", func(t *testing.T) {
		e := validEvent()
		e.MagnitudeValue = math.Inf(1)
		errs := Validate(e)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "magnitude_value")
	})
}

func TestWrapLongitude(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", -120.0, -120.0},
		{"exactly 180", 180.0, 180.0},
		{"exactly -180", -180.0, -180.0},
		{"just over", 180.5, -179.5},
		{"just under", -180.5, 179.5},
		{"full wrap", 360.0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WrapLongitude(tt.in), 1e-9)
		})
	}
}

func TestNormalizedEventJSONRoundTrip(t *testing.T) {
	magErr := 0.12
	e := validEvent()
	e.Place = "Central California"
	e.Region = "Central California"
	e.Author = "NEIC"
	e.MagError = &magErr

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var back NormalizedEvent
	require.NoError(t, json.Unmarshal(data, &back))

	if diff := cmp.Diff(e, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEventUID(t *testing.T) {
	assert.Equal(t, "isc:600516598", EventUID(SourceISC, "600516598"))
}

func TestRecordProjection(t *testing.T) {
	e := validEvent()
	e.Author = "NEIC"
	e.RawPayload = `{"id":"eq1"}`

	r := e.Record()
	assert.Equal(t, e.EventUID, r.EventUID)
	assert.Equal(t, e.Source, r.Source)
	assert.Equal(t, e.OriginTimeUTC, r.OriginTimeUTC)
	assert.Equal(t, e.MagnitudeValue, r.MagnitudeValue)
	assert.Equal(t, e.Status, r.Status)
}
