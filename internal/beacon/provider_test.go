package beacon

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type pushRecorder struct {
	commands [][]any
}

func (p *pushRecorder) Push(cmd []any) {
	p.commands = append(p.commands, cmd)
}

// TestResolvePrefersPrimary checks the primary call wins when both providers exist.
func TestResolvePrefersPrimary(t *testing.T) {
	t.Parallel()

	var calls []Fields
	queue := &pushRecorder{}
	sender := Resolve(nil, false,
		PrimaryProvider(func(command, hitType string, fields Fields) {
			require.Equal(t, "send", command)
			require.Equal(t, "event", hitType)
			calls = append(calls, fields)
		}),
		LegacyQueueProvider(queue),
	)

	sender.Send(Beacon{Category: "Video", Action: "play", Label: "clip42", Value: Value(12), NonInteraction: true})

	require.Len(t, calls, 1)
	require.Empty(t, queue.commands)
	require.Equal(t, Fields{
		EventCategory:  "Video",
		EventAction:    "play",
		EventLabel:     "clip42",
		EventValue:     Value(12),
		NonInteraction: true,
	}, calls[0])
}

// TestResolveFallsBackToLegacyQueue checks the queue receives the ordered tuple.
func TestResolveFallsBackToLegacyQueue(t *testing.T) {
	t.Parallel()

	queue := &pushRecorder{}
	sender := Resolve(nil, false, PrimaryProvider(nil), LegacyQueueProvider(queue))

	sender.Send(Beacon{Category: "Video", Action: "end", Label: "clip42", NonInteraction: true})
	sender.Send(Beacon{Category: "Video", Action: "pause", Label: "clip42", Value: Value(7)})

	require.Equal(t, [][]any{
		{"_trackEvent", "Video", "end", "clip42", nil, true},
		{"_trackEvent", "Video", "pause", "clip42", 7.0, false},
	}, queue.commands)
}

// TestResolveNoopLogsOnlyWhenDebugging verifies the missing-provider notice.
func TestResolveNoopLogsOnlyWhenDebugging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		debug bool
		want  int
	}{
		{name: "debug", debug: true, want: 1},
		{name: "quiet", debug: false, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zapcore.DebugLevel)
			sender := Resolve(zap.New(core), tt.debug, PrimaryProvider(nil), LegacyQueueProvider(nil))
			require.NotPanics(t, func() {
				sender.Send(Beacon{Category: "Video", Action: "play"})
			})
			require.Equal(t, tt.want, logs.FilterMessage("analytics provider not detected").Len())
		})
	}
}

// TestTupleRoundTrip covers value encoding in the legacy tuple form.
func TestTupleRoundTrip(t *testing.T) {
	t.Parallel()

	withValue := Beacon{Category: "Video", Action: "volume change", Label: "a", Value: Value(0.5)}
	got, err := FromTuple(withValue.Tuple())
	require.NoError(t, err)
	require.Equal(t, withValue, got)

	noValue := Beacon{Category: "Video", Action: "start", Label: "a", NonInteraction: true}
	got, err = FromTuple(noValue.Tuple())
	require.NoError(t, err)
	require.Nil(t, got.Value)
	require.True(t, got.NonInteraction)
}

// TestFromTupleRejectsMalformed ensures unexpected queue commands are refused.
func TestFromTupleRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := map[string][]any{
		"short":       {"_trackEvent", "Video"},
		"command":     {"_setAccount", "Video", "play", "", nil, true},
		"category":    {"_trackEvent", 1, "play", "", nil, true},
		"value":       {"_trackEvent", "Video", "play", "", "ten", true},
		"interaction": {"_trackEvent", "Video", "play", "", nil, "yes"},
	}
	for name, cmd := range tests {
		_, err := FromTuple(cmd)
		require.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestBeaconValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Beacon{Category: "Video", Action: "play"}.Validate())
	require.ErrorIs(t, Beacon{Action: "play"}.Validate(), ErrInvalid)
	require.ErrorIs(t, Beacon{Category: "Video"}.Validate(), ErrInvalid)
}
