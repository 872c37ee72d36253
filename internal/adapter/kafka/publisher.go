// Package kafka publishes unified earthquake events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

const defaultSeenCacheSize = 4096

// messageWriter is the slice of kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher emits unified events downstream. Clusters whose content has not
// changed since their last publication are suppressed, so downstream
// consumers only see updates. It implements dedup.Publisher.
type Publisher struct {
	writer messageWriter
	seen   *seenCache
	logger *slog.Logger
}

// NewPublisher creates a producer for the unified-events topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{
		writer: w,
		seen:   newSeenCache(defaultSeenCacheSize),
		logger: logger,
	}
}

// Publish serializes and writes the new-or-changed subset of events in a
// single WriteMessages call, and returns how many were written.
func (p *Publisher) Publish(ctx context.Context, events []domain.UnifiedEvent) (int, error) {
	var msgs []kafkago.Message
	var fresh []domain.UnifiedEvent
	for i := range events {
		fp := fingerprint(events[i])
		if prev, ok := p.seen.get(events[i].UnifiedEventID); ok && prev == fp {
			continue
		}
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)
		fresh = append(fresh, events[i])
	}

	if len(msgs) == 0 {
		return 0, nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("write unified events: %w", err)
	}

	// Only mark after a successful write so failures are retried next pass.
	for i := range fresh {
		p.seen.put(fresh[i].UnifiedEventID, fingerprint(fresh[i]))
	}
	return len(msgs), nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a unified event keyed by its cluster identity.
func serializeToMessage(event domain.UnifiedEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize unified event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.UnifiedEventID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "preferred_source", Value: []byte(event.PreferredSource)},
			{Key: "updated_at", Value: []byte(event.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}

// fingerprint summarizes the publishable content of a row. updated_at is
// excluded: a rerun that rewrites identical values must not republish.
func fingerprint(e domain.UnifiedEvent) string {
	return fmt.Sprintf("%s|%.6f|%.6f|%.2f|%.2f|%s|%s|%d|%s",
		e.OriginTimeUTC.UTC().Format(time.RFC3339Nano),
		e.Latitude, e.Longitude, e.DepthKM,
		e.MagnitudeValue, e.MagnitudeType,
		e.Status, e.NumSources, e.PreferredEventUID)
}
