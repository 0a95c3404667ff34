package delivery

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
)

// NewCommand returns the primary global-call capability for one session.
// Only ("send", "event", fields) is understood; other commands are ignored.
func NewCommand(emitter Emitter, sessionID string, clock Clock, logger *zap.Logger) beacon.CommandFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(command, hitType string, fields beacon.Fields) {
		if command != "send" || hitType != "event" {
			logger.Debug("ignoring unsupported analytics command",
				zap.String("command", command),
				zap.String("hit_type", hitType),
			)
			return
		}
		emitter.Emit(Record{
			SessionID: sessionID,
			Provider:  ProviderPrimary,
			TS:        clock.Now(),
			Beacon:    fields.Beacon(),
		})
	}
}

// Queue is the legacy queue capability for one session.
type Queue struct {
	emitter   Emitter
	sessionID string
	clock     Clock
	logger    *zap.Logger
}

// NewQueue builds a Queue that forwards _trackEvent tuples to emitter.
func NewQueue(emitter Emitter, sessionID string, clock Clock, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{emitter: emitter, sessionID: sessionID, clock: clock, logger: logger}
}

// Push decodes a queued command; anything but a well-formed _trackEvent
// tuple is ignored.
func (q *Queue) Push(cmd []any) {
	b, err := beacon.FromTuple(cmd)
	if err != nil {
		q.logger.Debug("ignoring queued analytics command", zap.Error(err))
		return
	}
	q.emitter.Emit(Record{
		SessionID: q.sessionID,
		Provider:  ProviderLegacy,
		TS:        q.clock.Now(),
		Beacon:    b,
	})
}
