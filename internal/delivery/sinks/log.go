package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/delivery"
)

// LogSink emits structured logs for delivered beacons. It is useful during
// development or when no durable destination is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the record using structured fields.
func (s *LogSink) Consume(_ context.Context, rec delivery.Record) error {
	fields := []zap.Field{
		zap.String("session_id", rec.SessionID),
		zap.String("provider", string(rec.Provider)),
		zap.String("category", rec.Beacon.Category),
		zap.String("action", rec.Beacon.Action),
		zap.String("label", rec.Beacon.Label),
		zap.Bool("non_interaction", rec.Beacon.NonInteraction),
		zap.Time("ts", rec.TS),
	}
	if rec.Beacon.Value != nil {
		fields = append(fields, zap.Float64("value", *rec.Beacon.Value))
	}
	s.logger.Info("beacon delivered", fields...)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
