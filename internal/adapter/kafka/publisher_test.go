package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func sampleUnified(id string, mag float64) domain.UnifiedEvent {
	return domain.UnifiedEvent{
		UnifiedEventID:    id,
		OriginTimeUTC:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Latitude:          35.0,
		Longitude:         -120.0,
		DepthKM:           10.0,
		MagnitudeValue:    mag,
		MagnitudeType:     "mw",
		Status:            domain.StatusReviewed,
		NumSources:        2,
		PreferredSource:   domain.SourceUSGS,
		PreferredEventUID: "usgs:eq1",
		UpdatedAt:         time.Date(2024, 1, 15, 12, 5, 0, 0, time.UTC),
	}
}

func testPublisher(w messageWriter) *Publisher {
	return &Publisher{
		writer: w,
		seen:   newSeenCache(defaultSeenCacheSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := testPublisher(w)

	n, err := p.Publish(context.Background(), []domain.UnifiedEvent{
		sampleUnified("UE-aaaa", 5.0),
		sampleUnified("UE-bbbb", 4.2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.msgs, 2)

	msg := w.msgs[0]
	assert.Equal(t, "UE-aaaa", string(msg.Key))

	var decoded domain.UnifiedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 5.0, decoded.MagnitudeValue)
	assert.Equal(t, domain.SourceUSGS, decoded.PreferredSource)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "preferred_source", msg.Headers[0].Key)
	assert.Equal(t, "usgs", string(msg.Headers[0].Value))
}

func TestPublisher_SuppressesUnchanged(t *testing.T) {
	w := &fakeWriter{}
	p := testPublisher(w)
	events := []domain.UnifiedEvent{sampleUnified("UE-aaaa", 5.0)}

	n, err := p.Publish(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Identical content again: suppressed.
	n, err = p.Publish(context.Background(), events)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, w.msgs, 1)

	// A refreshed updated_at alone is not a content change.
	bumped := sampleUnified("UE-aaaa", 5.0)
	bumped.UpdatedAt = bumped.UpdatedAt.Add(5 * time.Minute)
	n, err = p.Publish(context.Background(), []domain.UnifiedEvent{bumped})
	require.NoError(t, err)
	assert.Zero(t, n)

	// A magnitude revision republishes.
	n, err = p.Publish(context.Background(), []domain.UnifiedEvent{sampleUnified("UE-aaaa", 5.3)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, w.msgs, 2)
}

func TestPublisher_WriteFailureLeavesUnseen(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unreachable")}
	p := testPublisher(w)
	events := []domain.UnifiedEvent{sampleUnified("UE-aaaa", 5.0)}

	_, err := p.Publish(context.Background(), events)
	require.Error(t, err)

	// The failed event is retried on the next pass.
	w.err = nil
	n, err := p.Publish(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPublisher_EmptyBatch(t *testing.T) {
	w := &fakeWriter{}
	n, err := testPublisher(w).Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.msgs)
}
