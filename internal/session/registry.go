// Package session manages one tracker per remotely reported player lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
	"github.com/JakeFAU/playback-beacon/internal/delivery"
	"github.com/JakeFAU/playback-beacon/internal/player"
	"github.com/JakeFAU/playback-beacon/internal/tracker"
)

var (
	// ErrNotFound reports an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrTooManySessions reports that the registry is at capacity.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrUnknownEvent reports an event name no tracker understands.
	ErrUnknownEvent = errors.New("unknown player event")
)

// ProviderKind selects which provider capability sessions are given.
type ProviderKind string

// Supported provider kinds.
const (
	ProviderPrimary ProviderKind = "primary"
	ProviderLegacy  ProviderKind = "legacy"
	ProviderNone    ProviderKind = "none"
)

// ParseProviderKind validates a configured provider kind. Empty means primary.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(s) {
	case "", ProviderPrimary:
		return ProviderPrimary, nil
	case ProviderLegacy:
		return ProviderLegacy, nil
	case ProviderNone:
		return ProviderNone, nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}

// IDGenerator produces unique session ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config controls a Registry.
type Config struct {
	// Provider selects the capability handed to each tracker.
	Provider ProviderKind
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int
	// Defaults fill options that neither the request nor the player's
	// in-band configuration set.
	Defaults tracker.Options
	// IdleTimeout evicts sessions that have not reported for this long;
	// 0 keeps sessions until they are detached.
	IdleTimeout time.Duration
	// OnRemove, when set, is called with the id of every detached or
	// evicted session, outside the registry lock.
	OnRemove func(id string)
}

// Session pairs a remote player with its tracker.
type Session struct {
	ID        string
	CreatedAt time.Time
	player    *player.Remote
	tracker   *tracker.Tracker
	lastSeen  atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Summary is a point-in-time view of a session.
type Summary struct {
	ID              string       `json:"session_id"`
	CreatedAt       time.Time    `json:"created_at"`
	Label           string       `json:"label"`
	PercentsTracked []int        `json:"percents_tracked"`
	Seeking         bool         `json:"seeking"`
	Player          player.State `json:"player"`
}

// Registry owns live sessions. It is safe for concurrent use.
type Registry struct {
	cfg     Config
	emitter delivery.Emitter
	clock   delivery.Clock
	ids     IDGenerator
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds a Registry whose trackers deliver into emitter.
func NewRegistry(cfg Config, emitter delivery.Emitter, clock delivery.Clock, ids IDGenerator, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderPrimary
	}
	return &Registry{
		cfg:      cfg,
		emitter:  emitter,
		clock:    clock,
		ids:      ids,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Attach creates a session for a player reporting state, attaches a tracker
// and marks the player ready. It returns the new session id.
func (r *Registry) Attach(opts tracker.Options, dataSetup string, state player.State) (string, error) {
	inBand, err := tracker.ParseDataSetup(dataSetup)
	if err != nil {
		return "", err
	}
	id, err := r.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	logger := r.logger.With(zap.String("session_id", id))

	remote := player.NewRemote(dataSetup, state)
	tr, err := tracker.New(remote, opts.Merge(inBand).Merge(r.cfg.Defaults), logger, r.candidates(id, logger)...)
	if err != nil {
		return "", err
	}

	now := r.clock.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		player:    remote,
		tracker:   tr,
	}
	s.touch(now)

	r.mu.Lock()
	var evicted []string
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		evicted = r.evictLocked(now)
	}
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		r.removed(evicted)
		return "", ErrTooManySessions
	}
	r.sessions[id] = s
	r.mu.Unlock()
	r.removed(evicted)

	remote.MarkReady()
	logger.Info("session attached", zap.String("provider", string(r.cfg.Provider)))
	return id, nil
}

func (r *Registry) candidates(id string, logger *zap.Logger) []beacon.Sender {
	switch r.cfg.Provider {
	case ProviderPrimary:
		return []beacon.Sender{beacon.PrimaryProvider(delivery.NewCommand(r.emitter, id, r.clock, logger))}
	case ProviderLegacy:
		return []beacon.Sender{beacon.LegacyQueueProvider(delivery.NewQueue(r.emitter, id, r.clock, logger))}
	default:
		return nil
	}
}

// Dispatch reports a player event with the player's state at that moment.
// It returns how many tracker handlers ran; events the tracker did not
// subscribe to run none.
func (r *Registry) Dispatch(id, event string, state player.State) (int, error) {
	if !tracker.IsPlayerEvent(event) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	s, err := r.get(id)
	if err != nil {
		return 0, err
	}
	return s.player.Dispatch(event, state), nil
}

// SendBeacon emits a caller-defined beacon through the session's tracker.
func (r *Registry) SendBeacon(id, action string, nonInteraction bool, value *float64) error {
	if action == "" {
		return fmt.Errorf("%w: action is required", beacon.ErrInvalid)
	}
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.player.Do(func() {
		s.tracker.SendBeacon(action, nonInteraction, value)
	})
	return nil
}

// Describe returns a snapshot of the session's tracking state.
func (r *Registry) Describe(id string) (Summary, error) {
	s, err := r.get(id)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{ID: s.ID, CreatedAt: s.CreatedAt}
	s.player.Do(func() {
		st := s.tracker.State()
		out.Label = s.tracker.Label()
		out.PercentsTracked = st.PercentsTracked()
		out.Seeking = st.Seeking
		out.Player = s.player.Snapshot()
	})
	return out, nil
}

// Detach removes a session. Beacons it already emitted are still delivered.
func (r *Registry) Detach(id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()
	r.logger.Info("session detached", zap.String("session_id", id))
	r.removed([]string{id})
	return nil
}

// Exists reports whether id names a live session. It does not count as
// activity for idle eviction.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// EvictIdle removes sessions idle for longer than the configured timeout and
// returns their ids.
func (r *Registry) EvictIdle() []string {
	if r.cfg.IdleTimeout <= 0 {
		return nil
	}
	r.mu.Lock()
	evicted := r.evictLocked(r.clock.Now())
	r.mu.Unlock()
	r.removed(evicted)
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.cfg.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := r.EvictIdle(); len(evicted) > 0 {
				r.logger.Info("idle sessions evicted", zap.Int("count", len(evicted)))
			}
		}
	}
}

func (r *Registry) evictLocked(now time.Time) []string {
	if r.cfg.IdleTimeout <= 0 {
		return nil
	}
	cutoff := now.Add(-r.cfg.IdleTimeout).UnixNano()
	var evicted []string
	for id, s := range r.sessions {
		if s.lastSeen.Load() <= cutoff {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (r *Registry) removed(ids []string) {
	if r.cfg.OnRemove == nil {
		return
	}
	for _, id := range ids {
		r.cfg.OnRemove(id)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.clock.Now())
	return s, nil
}
