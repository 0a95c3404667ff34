package beacon

import (
	"go.uber.org/zap"
)

// Sender delivers beacons on a best-effort basis. Send never reports
// failure to the caller.
type Sender interface {
	Send(b Beacon)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(Beacon)

// Send calls f(b).
func (f SenderFunc) Send(b Beacon) {
	f(b)
}

// CommandFunc is the primary global-call convention: ga("send", "event", fields).
type CommandFunc func(command, hitType string, fields Fields)

// Pusher is the legacy queue convention: _gaq.push([...]).
type Pusher interface {
	Push(cmd []any)
}

type primaryProvider struct {
	call CommandFunc
}

func (p primaryProvider) Send(b Beacon) {
	p.call("send", "event", b.Fields())
}

type legacyQueueProvider struct {
	queue Pusher
}

func (p legacyQueueProvider) Send(b Beacon) {
	p.queue.Push(b.Tuple())
}

type noopProvider struct {
	logger *zap.Logger
	debug  bool
}

func (p noopProvider) Send(b Beacon) {
	if !p.debug {
		return
	}
	p.logger.Warn("analytics provider not detected",
		zap.String("category", b.Category),
		zap.String("action", b.Action),
	)
}

// PrimaryProvider wraps the global-call capability. It returns nil when the
// capability is absent so it can be passed straight to Resolve.
func PrimaryProvider(call CommandFunc) Sender {
	if call == nil {
		return nil
	}
	return primaryProvider{call: call}
}

// LegacyQueueProvider wraps the legacy queue capability. It returns nil when
// the queue is absent.
func LegacyQueueProvider(queue Pusher) Sender {
	if queue == nil {
		return nil
	}
	return legacyQueueProvider{queue: queue}
}

// NoopProvider discards beacons, logging a notice for each one when debug is set.
func NoopProvider(logger *zap.Logger, debug bool) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return noopProvider{logger: logger, debug: debug}
}

// Resolve returns the first present candidate, falling back to a
// NoopProvider. Candidates are probed once; the result is fixed for the
// lifetime of the caller.
func Resolve(logger *zap.Logger, debug bool, candidates ...Sender) Sender {
	for _, candidate := range candidates {
		if candidate != nil {
			return candidate
		}
	}
	return NoopProvider(logger, debug)
}
