package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultPercentsPlayedInterval is the milestone step used when none is configured.
	DefaultPercentsPlayedInterval = 10
	// DefaultEventCategory is the beacon category used when none is configured.
	DefaultEventCategory = "Video"
	// dataSetupKey is the nested block of the in-band configuration read by the tracker.
	dataSetupKey = "ga"
)

var (
	// ErrInvalidDataSetup reports an in-band configuration attribute that is not valid JSON.
	ErrInvalidDataSetup = errors.New("invalid data-setup attribute")
	// ErrInvalidOptions reports option values the tracker cannot work with.
	ErrInvalidOptions = errors.New("invalid tracker options")
)

// DefaultEventsToTrack returns the events tracked when none are configured.
func DefaultEventsToTrack() []string {
	return []string{
		TrackLoaded, TrackPercentsPlayed, TrackStart,
		TrackEnd, TrackSeek, TrackPlay, TrackPause, TrackResize,
		TrackVolumeChange, TrackError, TrackFullscreen,
	}
}

// Options are the caller-supplied tracker settings. Zero values mean "not
// set" and fall through to the player's in-band configuration, then to the
// defaults.
type Options struct {
	EventsToTrack          []string `json:"eventsToTrack,omitempty" mapstructure:"events_to_track"`
	PercentsPlayedInterval int      `json:"percentsPlayedInterval,omitempty" mapstructure:"percents_played_interval"`
	EventCategory          string   `json:"eventCategory,omitempty" mapstructure:"event_category"`
	EventLabel             string   `json:"eventLabel,omitempty" mapstructure:"event_label"`
	Debug                  bool     `json:"debug,omitempty" mapstructure:"debug"`
}

// Merge returns o with its unset fields taken from fallback.
func (o Options) Merge(fallback Options) Options {
	out := o
	if len(out.EventsToTrack) == 0 {
		out.EventsToTrack = append([]string(nil), fallback.EventsToTrack...)
	}
	if out.PercentsPlayedInterval == 0 {
		out.PercentsPlayedInterval = fallback.PercentsPlayedInterval
	}
	if out.EventCategory == "" {
		out.EventCategory = fallback.EventCategory
	}
	if out.EventLabel == "" {
		out.EventLabel = fallback.EventLabel
	}
	out.Debug = out.Debug || fallback.Debug
	return out
}

// settings are the resolved options a tracker runs with.
type settings struct {
	events   map[string]struct{}
	interval int
	category string
	label    string
	debug    bool
}

func (s settings) tracks(name string) bool {
	_, ok := s.events[name]
	return ok
}

// ParseDataSetup extracts the tracker block from a player's in-band
// configuration attribute. An empty attribute or a document without the
// block yields zero Options.
func ParseDataSetup(raw string) (Options, error) {
	if strings.TrimSpace(raw) == "" {
		return Options{}, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidDataSetup, err)
	}
	block, ok := doc[dataSetupKey]
	if !ok || string(block) == "null" {
		return Options{}, nil
	}
	var opts Options
	if err := json.Unmarshal(block, &opts); err != nil {
		return Options{}, fmt.Errorf("%w: %s block: %w", ErrInvalidDataSetup, dataSetupKey, err)
	}
	return opts, nil
}

func resolveSettings(explicit Options, dataSetup string) (settings, error) {
	inBand, err := ParseDataSetup(dataSetup)
	if err != nil {
		return settings{}, err
	}
	merged := explicit.Merge(inBand).Merge(Options{
		EventsToTrack:          DefaultEventsToTrack(),
		PercentsPlayedInterval: DefaultPercentsPlayedInterval,
		EventCategory:          DefaultEventCategory,
	})
	if merged.PercentsPlayedInterval < 0 {
		return settings{}, fmt.Errorf("%w: percentsPlayedInterval must not be negative, got %d",
			ErrInvalidOptions, merged.PercentsPlayedInterval)
	}
	events := make(map[string]struct{}, len(merged.EventsToTrack))
	for _, name := range merged.EventsToTrack {
		events[name] = struct{}{}
	}
	return settings{
		events:   events,
		interval: merged.PercentsPlayedInterval,
		category: merged.EventCategory,
		label:    merged.EventLabel,
		debug:    merged.Debug,
	}, nil
}
