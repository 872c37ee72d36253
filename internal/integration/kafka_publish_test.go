//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/quake-stream/internal/adapter/kafka"
	"github.com/couchcryptid/quake-stream/internal/domain"
)

const testTopic = "unified-events-test"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.6.1",
		tckafka.WithClusterID("quake-stream-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

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
		UpdatedAt:         time.Now().UTC(),
	}
}

// TestPublisherRoundTrip publishes unified events through a real broker and
// verifies message shape and the unchanged-cluster suppression.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := kafkaadapter.NewPublisher([]string{broker}, testTopic, logger)
	t.Cleanup(func() { _ = publisher.Close() })

	events := []domain.UnifiedEvent{
		sampleUnified("UE-aaaa000000000000", 5.0),
		sampleUnified("UE-bbbb000000000000", 4.2),
	}

	published, err := publisher.Publish(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 2, published)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{broker},
		Topic:   testTopic,
		GroupID: fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := make(map[string]domain.UnifiedEvent, 2)
	for i := 0; i < 2; i++ {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err)

		var event domain.UnifiedEvent
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		assert.Equal(t, event.UnifiedEventID, string(msg.Key))
		seen[event.UnifiedEventID] = event

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "usgs", headers["preferred_source"])
		assert.NotEmpty(t, headers["updated_at"])
	}
	require.Contains(t, seen, "UE-aaaa000000000000")
	assert.Equal(t, 5.0, seen["UE-aaaa000000000000"].MagnitudeValue)

	// Republishing identical content writes nothing.
	published, err = publisher.Publish(ctx, events)
	require.NoError(t, err)
	assert.Zero(t, published)

	// A magnitude revision goes out again.
	revised := sampleUnified("UE-aaaa000000000000", 5.3)
	published, err = publisher.Publish(ctx, []domain.UnifiedEvent{revised})
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	msg, err := consumer.ReadMessage(readCtx)
	readCancel()
	require.NoError(t, err)

	var event domain.UnifiedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, 5.3, event.MagnitudeValue)
}
