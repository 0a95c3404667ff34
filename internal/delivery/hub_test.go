package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
)

// TestHubDeliversEachRecord verifies records reach sinks individually and in order.
func TestHubDeliversEachRecord(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleRecord("play"))
	hub.Emit(sampleRecord("pause"))
	require.Eventually(t, func() bool {
		return len(sink.Records()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "play", sink.Records()[0].Beacon.Action)
	require.Equal(t, "pause", sink.Records()[1].Beacon.Action)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:     Config{},
		records: make(chan Record),
		logger:  zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleRecord("play"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubDiscardsInvalidRecords keeps malformed records away from sinks.
func TestHubDiscardsInvalidRecords(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, sink)

	rec := sampleRecord("play")
	rec.SessionID = ""
	hub.Emit(rec)
	rec = sampleRecord("")
	hub.Emit(rec)

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Records())
}

// TestHubFlushOnClose ensures Close drains buffered records and closes sinks.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, sink)

	hub.Emit(sampleRecord("end"))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Records(), 1)
	require.True(t, sink.closed)
	require.Equal(t, int64(1), hub.Delivered())

	hub.Emit(sampleRecord("late"))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Records(), 1)
}

// TestHubSinkFailureDoesNotStopDelivery checks one failing sink does not starve the others.
func TestHubSinkFailureDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	failing := sinkFunc(func(context.Context, Record) error { return errors.New("boom") })
	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, failing, nil, sink)

	hub.Emit(sampleRecord("play"))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Records(), 1)
}

func TestQueueAndCommandEmitRecords(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8}, sink)
	clock := fixedClock{now: time.Unix(1700000000, 0).UTC()}

	call := NewCommand(hub, "session-1", clock, nil)
	call("send", "event", beacon.Fields{EventCategory: "Video", EventAction: "play", EventValue: beacon.Value(3)})
	call("send", "pageview", beacon.Fields{EventCategory: "Video", EventAction: "ignored"})

	queue := NewQueue(hub, "session-1", clock, nil)
	queue.Push([]any{"_trackEvent", "Video", "pause", "clip", 4.0, false})
	queue.Push([]any{"_setAccount", "UA-1"})

	require.NoError(t, hub.Close(context.Background()))
	records := sink.Records()
	require.Len(t, records, 2)
	require.Equal(t, Record{
		SessionID: "session-1",
		Provider:  ProviderPrimary,
		TS:        clock.now,
		Beacon:    beacon.Beacon{Category: "Video", Action: "play", Value: beacon.Value(3)},
	}, records[0])
	require.Equal(t, ProviderLegacy, records[1].Provider)
	require.Equal(t, "clip", records[1].Beacon.Label)
}

type stubSink struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func sampleRecord(action string) Record {
	return Record{
		SessionID: "session-1",
		Provider:  ProviderPrimary,
		TS:        time.Now(),
		Beacon:    beacon.Beacon{Category: "Video", Action: action, Label: "clip42"},
	}
}
