package sinks

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/playback-beacon/internal/delivery"
	"github.com/JakeFAU/playback-beacon/internal/tracker"
)

// PrometheusSink exports playback metrics derived from delivered beacons.
type PrometheusSink struct {
	beacons      *prometheus.CounterVec
	milestones   *prometheus.CounterVec
	seekDistance prometheus.Histogram
	volume       prometheus.Histogram

	seeks *seekTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		beacons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_beacons_total",
			Help: "Beacons delivered partitioned by category, action, provider and interaction.",
		}, []string{"category", "action", "provider", "interaction"}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playback_percent_milestones_total",
			Help: "Percent-played milestones reached partitioned by category and percent.",
		}, []string{"category", "percent"}),
		seekDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "playback_seek_distance_seconds",
			Help:    "Absolute distance covered by detected seeks.",
			Buckets: []float64{2, 5, 10, 30, 60, 300, 900, 3600},
		}),
		volume: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "playback_volume_level",
			Help:    "Volume reported on volume changes, 0 when muted.",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 1},
		}),
		seeks: newSeekTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.beacons,
		s.milestones,
		s.seekDistance,
		s.volume,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register beacon collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors for one record. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, rec delivery.Record) error {
	b := rec.Beacon
	interaction := "interactive"
	if b.NonInteraction {
		interaction = "non_interactive"
	}
	action := normalizeAction(b.Action)
	s.beacons.WithLabelValues(b.Category, action, string(rec.Provider), interaction).Inc()

	switch action {
	case tracker.ActionPercentPlayed:
		if b.Value != nil {
			s.milestones.WithLabelValues(b.Category, strconv.Itoa(int(*b.Value))).Inc()
		}
	case tracker.ActionStart:
		s.milestones.WithLabelValues(b.Category, "0").Inc()
	case tracker.ActionSeekStart:
		if b.Value != nil {
			s.seeks.start(rec.SessionID, *b.Value)
		}
	case tracker.ActionSeekEnd:
		if b.Value != nil {
			if from, ok := s.seeks.end(rec.SessionID); ok {
				s.seekDistance.Observe(math.Abs(*b.Value - from))
			}
		}
	case tracker.ActionVolumeChange:
		if b.Value != nil {
			s.volume.Observe(*b.Value)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// normalizeAction folds per-dimension resize actions into one label value.
func normalizeAction(action string) string {
	if strings.HasPrefix(action, "resize - ") {
		return "resize"
	}
	return action
}

// seekTracker pairs "seek start" with the following "seek end" per session.
type seekTracker struct {
	mu      sync.Mutex
	pending map[string]float64
}

func newSeekTracker() *seekTracker {
	return &seekTracker{pending: make(map[string]float64)}
}

func (t *seekTracker) start(sessionID string, at float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[sessionID] = at
}

func (t *seekTracker) end(sessionID string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	from, ok := t.pending[sessionID]
	if ok {
		delete(t.pending, sessionID)
	}
	return from, ok
}
