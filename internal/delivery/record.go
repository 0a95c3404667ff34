package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
)

// Provider names the convention a record arrived through.
type Provider string

// Supported provider conventions.
const (
	ProviderPrimary Provider = "primary"
	ProviderLegacy  Provider = "legacy"
)

// Record is one beacon accepted for delivery.
type Record struct {
	// SessionID identifies the player session that produced the beacon.
	SessionID string
	// Provider is the convention the tracker used.
	Provider Provider
	// TS is the UTC time the record was accepted.
	TS time.Time
	// Beacon is the delivered payload.
	Beacon beacon.Beacon
}

// Validate performs coarse validation on a Record.
func (r Record) Validate() error {
	if r.SessionID == "" {
		return errors.New("session id is required")
	}
	if r.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch r.Provider {
	case ProviderPrimary, ProviderLegacy:
	default:
		return fmt.Errorf("unknown provider %q", r.Provider)
	}
	return r.Beacon.Validate()
}

// Sink consumes delivered records one at a time. Implementations must honor
// ctx deadlines and be safe for repeated calls.
type Sink interface {
	Consume(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Emitter accepts records; Hub satisfies it so provider adapters stay
// agnostic about where records go.
type Emitter interface {
	Emit(rec Record)
}

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}
