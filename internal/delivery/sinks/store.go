package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/playback-beacon/internal/delivery"
	"github.com/JakeFAU/playback-beacon/internal/store"
)

// StoreSink persists delivered beacons via a store.BeaconRepository.
type StoreSink struct {
	repo store.BeaconRepository
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.BeaconRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

// Consume writes one row per record and returns repository errors wrapped.
func (s *StoreSink) Consume(ctx context.Context, rec delivery.Record) error {
	if s == nil || s.repo == nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate beacon id: %w", err)
	}
	row := store.BeaconRow{
		ID:             id,
		SessionID:      rec.SessionID,
		Provider:       string(rec.Provider),
		Category:       rec.Beacon.Category,
		Action:         rec.Beacon.Action,
		Label:          rec.Beacon.Label,
		Value:          rec.Beacon.Value,
		NonInteraction: rec.Beacon.NonInteraction,
		RecordedAt:     rec.TS,
	}
	if err := s.repo.InsertBeacon(ctx, row); err != nil {
		return fmt.Errorf("insert beacon: %w", err)
	}
	return nil
}

// Close implements the Sink interface; the repository is owned by the caller.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
