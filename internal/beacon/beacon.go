// Package beacon defines the analytics event record emitted by the playback
// tracker and the provider conventions used to deliver it. A Sender is
// resolved once from an ordered list of candidate providers: the primary
// global-call convention, the legacy queue convention, and finally a no-op
// that only reports the missing provider when debugging.
package beacon

import (
	"errors"
	"fmt"
)

// ErrInvalid reports a beacon that is missing a required field.
var ErrInvalid = errors.New("invalid beacon")

// Beacon is one discrete analytics event sent to the provider.
type Beacon struct {
	// Category groups related events (e.g. "Video").
	Category string
	// Action names what happened (e.g. "percent played").
	Action string
	// Label identifies the media; empty until inferred.
	Label string
	// Value is optional; nil means the provider receives no value.
	Value *float64
	// NonInteraction excludes the event from engagement calculations.
	NonInteraction bool
}

// Value boxes v so it can be attached to a Beacon.
func Value(v float64) *float64 {
	return &v
}

// Validate performs coarse validation on a Beacon.
func (b Beacon) Validate() error {
	if b.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalid)
	}
	if b.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalid)
	}
	return nil
}

// Fields is the structured payload handed to the primary provider call.
type Fields struct {
	EventCategory  string   `json:"eventCategory"`
	EventAction    string   `json:"eventAction"`
	EventLabel     string   `json:"eventLabel,omitempty"`
	EventValue     *float64 `json:"eventValue,omitempty"`
	NonInteraction bool     `json:"nonInteraction"`
}

// Fields converts the beacon into the primary provider payload.
func (b Beacon) Fields() Fields {
	return Fields{
		EventCategory:  b.Category,
		EventAction:    b.Action,
		EventLabel:     b.Label,
		EventValue:     copyValue(b.Value),
		NonInteraction: b.NonInteraction,
	}
}

// Beacon converts a primary provider payload back into a Beacon.
func (f Fields) Beacon() Beacon {
	return Beacon{
		Category:       f.EventCategory,
		Action:         f.EventAction,
		Label:          f.EventLabel,
		Value:          copyValue(f.EventValue),
		NonInteraction: f.NonInteraction,
	}
}

// TrackEventCommand is the first element of a legacy queue tuple.
const TrackEventCommand = "_trackEvent"

// Tuple converts the beacon into the ordered legacy queue form
// [_trackEvent, category, action, label, value, nonInteraction]. An absent
// value is encoded as a nil element.
func (b Beacon) Tuple() []any {
	var value any
	if b.Value != nil {
		value = *b.Value
	}
	return []any{TrackEventCommand, b.Category, b.Action, b.Label, value, b.NonInteraction}
}

// FromTuple decodes a legacy queue tuple produced by Tuple.
func FromTuple(cmd []any) (Beacon, error) {
	if len(cmd) != 6 {
		return Beacon{}, fmt.Errorf("%w: tuple has %d elements, want 6", ErrInvalid, len(cmd))
	}
	if name, _ := cmd[0].(string); name != TrackEventCommand {
		return Beacon{}, fmt.Errorf("%w: unsupported command %v", ErrInvalid, cmd[0])
	}
	category, ok := cmd[1].(string)
	if !ok {
		return Beacon{}, fmt.Errorf("%w: category must be a string", ErrInvalid)
	}
	action, ok := cmd[2].(string)
	if !ok {
		return Beacon{}, fmt.Errorf("%w: action must be a string", ErrInvalid)
	}
	label, _ := cmd[3].(string)
	b := Beacon{Category: category, Action: action, Label: label}
	switch v := cmd[4].(type) {
	case nil:
	case float64:
		b.Value = Value(v)
	case int:
		b.Value = Value(float64(v))
	default:
		return Beacon{}, fmt.Errorf("%w: value must be numeric, got %T", ErrInvalid, cmd[4])
	}
	nonInteraction, ok := cmd[5].(bool)
	if !ok {
		return Beacon{}, fmt.Errorf("%w: nonInteraction must be a bool", ErrInvalid)
	}
	b.NonInteraction = nonInteraction
	return b, nil
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Value(*v)
}
