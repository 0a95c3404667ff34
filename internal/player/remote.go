// Package player implements the media player collaborator for players that
// live elsewhere (typically a browser) and report their state remotely.
package player

import (
	"sync"
)

// State is a snapshot of the remote player's accessors.
type State struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Volume      float64 `json:"volume"`
	Muted       bool    `json:"muted"`
	CurrentSrc  string  `json:"current_src"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Fullscreen  bool    `json:"fullscreen"`
}

// Remote mirrors a remote player from reported snapshots and dispatches its
// events to subscribed handlers. Dispatches are serialized so handlers never
// run concurrently for one player.
type Remote struct {
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	dataSetup string
	ready     bool
	pending   []func()
	handlers  map[string][]func()
}

// NewRemote creates a Remote that is not yet ready.
func NewRemote(dataSetup string, initial State) *Remote {
	return &Remote{
		state:     initial,
		dataSetup: dataSetup,
		handlers:  make(map[string][]func()),
	}
}

// Ready runs fn immediately when the player is ready, otherwise queues it
// until MarkReady.
func (r *Remote) Ready(fn func()) {
	r.mu.Lock()
	if !r.ready {
		r.pending = append(r.pending, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	fn()
}

// MarkReady flags the player ready and runs queued ready callbacks in order.
func (r *Remote) MarkReady() {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	r.mu.Lock()
	if r.ready {
		r.mu.Unlock()
		return
	}
	r.ready = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// On subscribes fn to event.
func (r *Remote) On(event string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], fn)
}

// Subscribed reports whether any handler listens for event.
func (r *Remote) Subscribed(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[event]) > 0
}

// Dispatch applies the reported snapshot then runs the event's handlers in
// subscription order. It returns the number of handlers invoked.
func (r *Remote) Dispatch(event string, snapshot State) int {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	r.mu.Lock()
	r.state = snapshot
	handlers := append([]func(){}, r.handlers[event]...)
	r.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	return len(handlers)
}

// Do runs fn serialized with event dispatch.
func (r *Remote) Do(fn func()) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	fn()
}

// Snapshot returns the last reported state.
func (r *Remote) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// DataSetup returns the in-band configuration attribute.
func (r *Remote) DataSetup() string {
	return r.dataSetup
}

// CurrentTime returns the playback position in seconds.
func (r *Remote) CurrentTime() float64 { return r.Snapshot().CurrentTime }

// Duration returns the media duration in seconds.
func (r *Remote) Duration() float64 { return r.Snapshot().Duration }

// Volume returns the volume between 0 and 1.
func (r *Remote) Volume() float64 { return r.Snapshot().Volume }

// Muted reports whether audio is muted.
func (r *Remote) Muted() bool { return r.Snapshot().Muted }

// CurrentSrc returns the media source URL.
func (r *Remote) CurrentSrc() string { return r.Snapshot().CurrentSrc }

// Width returns the player width in pixels.
func (r *Remote) Width() int { return r.Snapshot().Width }

// Height returns the player height in pixels.
func (r *Remote) Height() int { return r.Snapshot().Height }

// IsFullscreen reports whether the player is fullscreen.
func (r *Remote) IsFullscreen() bool { return r.Snapshot().Fullscreen }
