package sinks

import (
	"time"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
	"github.com/JakeFAU/playback-beacon/internal/delivery"
)

// Payload is the JSON document published and archived for each record.
type Payload struct {
	SessionID string    `json:"sessionId"`
	Provider  string    `json:"provider"`
	TS        time.Time `json:"ts"`
	beacon.Fields
}

// NewPayload converts a delivered record into its wire document.
func NewPayload(rec delivery.Record) Payload {
	return Payload{
		SessionID: rec.SessionID,
		Provider:  string(rec.Provider),
		TS:        rec.TS.UTC(),
		Fields:    rec.Beacon.Fields(),
	}
}
