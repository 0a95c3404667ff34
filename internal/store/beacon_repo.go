package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("beacon record not found")

// BeaconRow models the beacons table.
type BeaconRow struct {
	// ID is the UUIDv7 primary key assigned at delivery.
	ID uuid.UUID
	// SessionID identifies the player session that produced the beacon.
	SessionID string
	// Provider is the convention the tracker used (primary or legacy).
	Provider string
	Category string
	Action   string
	Label    string
	// Value is nil when the beacon carried no value.
	Value          *float64
	NonInteraction bool
	// RecordedAt is when the delivery layer accepted the beacon.
	RecordedAt time.Time
}

// BeaconRepository persists delivered beacons.
type BeaconRepository interface {
	// InsertBeacon appends one row.
	InsertBeacon(ctx context.Context, row BeaconRow) error
	// ListSessionBeacons returns a session's beacons ordered by RecordedAt.
	ListSessionBeacons(ctx context.Context, sessionID string, limit int) ([]BeaconRow, error)
}
