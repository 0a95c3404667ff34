package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
	"github.com/JakeFAU/playback-beacon/internal/delivery"
	"github.com/JakeFAU/playback-beacon/internal/storage/local"
	"github.com/JakeFAU/playback-beacon/internal/store"
	"github.com/JakeFAU/playback-beacon/internal/tracker"
)

var sampleTS = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func record(action string, value *float64) delivery.Record {
	return delivery.Record{
		SessionID: "session-1",
		Provider:  delivery.ProviderPrimary,
		TS:        sampleTS,
		Beacon: beacon.Beacon{
			Category:       "Video",
			Action:         action,
			Label:          "clip42",
			Value:          value,
			NonInteraction: true,
		},
	}
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow delivered beacons.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	for _, rec := range []delivery.Record{
		record("start", nil),
		record("percent played", beacon.Value(10)),
		record("percent played", beacon.Value(20)),
		record("seek start", beacon.Value(5)),
		record("seek end", beacon.Value(65)),
		record("volume change", beacon.Value(0.5)),
		record("resize - 640*480", nil),
		record("resize - 1280*720", nil),
	} {
		require.NoError(t, sink.Consume(ctx, rec))
	}

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.beacons.WithLabelValues("Video", "percent played", "primary", "non_interactive")), 1e-9)
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.beacons.WithLabelValues("Video", "resize", "primary", "non_interactive")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.milestones.WithLabelValues("Video", "0")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.milestones.WithLabelValues("Video", "20")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.seekDistance, "playback_seek_distance_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.volume, "playback_volume_level"))
	require.NoError(t, sink.Close(ctx))
}

func TestPrometheusSinkSeekEndWithoutStart(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, sink.Consume(context.Background(), record("seek end", beacon.Value(30))))

	_, ok := sink.seeks.end("session-1")
	require.False(t, ok)
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkLogsBeacon(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), record("pause", beacon.Value(12))))

	entries := logs.FilterMessage("beacon delivered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "pause", fields["action"])
	require.Equal(t, 12.0, fields["value"])
	require.Equal(t, "session-1", fields["session_id"])
}

// TestStoreSinkPersistsBeacon checks each record becomes one row.
func TestStoreSinkPersistsBeacon(t *testing.T) {
	t.Parallel()

	repo := &fakeBeaconRepo{}
	sink := NewStoreSink(repo)
	require.NoError(t, sink.Consume(context.Background(), record("play", beacon.Value(3))))

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	require.NotEqual(t, [16]byte{}, [16]byte(row.ID))
	require.Equal(t, "session-1", row.SessionID)
	require.Equal(t, "primary", row.Provider)
	require.Equal(t, "play", row.Action)
	require.Equal(t, 3.0, *row.Value)
	require.True(t, row.NonInteraction)
	require.Equal(t, sampleTS, row.RecordedAt)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(&fakeBeaconRepo{fail: true})
	err := sink.Consume(context.Background(), record("play", nil))
	require.ErrorContains(t, err, "insert beacon")
}

func TestPubSubSinkPublishesPayload(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	sink := NewPubSubSink(pub, nil)
	require.NoError(t, sink.Consume(context.Background(), record("percent played", beacon.Value(30))))

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	require.Equal(t, map[string]string{
		"session_id": "session-1",
		"category":   "Video",
		"action":     "percent played",
	}, call.attrs)

	data, err := json.Marshal(call.payload)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"sessionId": "session-1",
		"provider": "primary",
		"ts": "2024-05-01T12:00:00Z",
		"eventCategory": "Video",
		"eventAction": "percent played",
		"eventLabel": "clip42",
		"eventValue": 30,
		"nonInteraction": true
	}`, string(data))

	pub.err = errors.New("unavailable")
	require.Error(t, sink.Consume(context.Background(), record("play", nil)))
}

func TestArchiveSinkWritesObject(t *testing.T) {
	t.Parallel()

	blobs := &fakeBlobStore{}
	sink := NewArchiveSink(blobs, "beacons")
	rec := record("end", nil)
	require.NoError(t, sink.Consume(context.Background(), rec))

	require.Regexp(t, `^beacons/session-1/1714564800000000000-[0-9a-f-]{36}\.json$`, blobs.path)
	require.Equal(t, "beacons/session-1/1714564800000000000-0190b6a4-0000-7000-8000-000000000001.json",
		sink.ObjectPath(rec, uuid.MustParse("0190b6a4-0000-7000-8000-000000000001")))
	require.Equal(t, "application/json", blobs.contentType)

	var payload Payload
	require.NoError(t, json.Unmarshal(blobs.body, &payload))
	require.Equal(t, "end", payload.EventAction)
	require.Nil(t, payload.EventValue)

	blobs.err = errors.New("denied")
	require.ErrorContains(t, sink.Consume(context.Background(), rec), "archive beacon")
}

func TestArchiveSinkKeepsRecordsSharingTimestamp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	sink := NewArchiveSink(blobs, "beacons")

	start := record(tracker.ActionSeekStart, beacon.Value(5))
	end := record(tracker.ActionSeekEnd, beacon.Value(20))
	require.Equal(t, start.TS, end.TS)
	require.NoError(t, sink.Consume(context.Background(), start))
	require.NoError(t, sink.Consume(context.Background(), end))

	entries, err := os.ReadDir(filepath.Join(dir, "beacons", "session-1"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

type fakeBeaconRepo struct {
	fail bool
	rows []store.BeaconRow
}

func (f *fakeBeaconRepo) InsertBeacon(_ context.Context, row store.BeaconRow) error {
	if f.fail {
		return errors.New("insert failed")
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeBeaconRepo) ListSessionBeacons(_ context.Context, sessionID string, _ int) ([]store.BeaconRow, error) {
	var out []store.BeaconRow
	for _, row := range f.rows {
		if row.SessionID == sessionID {
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

type publishCall struct {
	attrs   map[string]string
	payload any
}

type fakePublisher struct {
	err   error
	calls []publishCall
}

func (f *fakePublisher) Publish(_ context.Context, attrs map[string]string, payload any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, publishCall{attrs: attrs, payload: payload})
	return "msg-1", nil
}

type fakeBlobStore struct {
	err         error
	path        string
	contentType string
	body        []byte
}

func (f *fakeBlobStore) PutObject(_ context.Context, path string, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	f.path = path
	f.contentType = contentType
	f.body = buf.Bytes()
	return "mem://" + path, nil
}
