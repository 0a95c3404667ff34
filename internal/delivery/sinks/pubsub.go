package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/delivery"
)

// Publisher sends one JSON-encodable payload with string attributes.
type Publisher interface {
	Publish(ctx context.Context, attrs map[string]string, payload any) (string, error)
}

// PubSubSink publishes every delivered beacon as its own message.
type PubSubSink struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewPubSubSink constructs a PubSubSink around publisher.
func NewPubSubSink(publisher Publisher, logger *zap.Logger) *PubSubSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubSink{publisher: publisher, logger: logger}
}

// Consume publishes the record. Attributes carry the session and action so
// subscribers can filter without decoding the body.
func (s *PubSubSink) Consume(ctx context.Context, rec delivery.Record) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	attrs := map[string]string{
		"session_id": rec.SessionID,
		"category":   rec.Beacon.Category,
		"action":     rec.Beacon.Action,
	}
	id, err := s.publisher.Publish(ctx, attrs, NewPayload(rec))
	if err != nil {
		return fmt.Errorf("publish beacon: %w", err)
	}
	s.logger.Debug("beacon published", zap.String("message_id", id))
	return nil
}

// Close implements the Sink interface; the publisher is owned by the caller.
func (s *PubSubSink) Close(context.Context) error {
	return nil
}
