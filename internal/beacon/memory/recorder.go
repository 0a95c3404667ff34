// Package memory contains in-memory beacon providers for tests and local runs.
package memory

import (
	"sync"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
)

// Recorder stores delivered beacons for inspection. It satisfies beacon.Sender.
type Recorder struct {
	mu      sync.RWMutex
	beacons []beacon.Beacon
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records the beacon.
func (r *Recorder) Send(b beacon.Beacon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beacons = append(r.beacons, b)
}

// Beacons returns a copy of the recorded beacons.
func (r *Recorder) Beacons() []beacon.Beacon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]beacon.Beacon, len(r.beacons))
	copy(out, r.beacons)
	return out
}

// Actions returns the recorded actions in delivery order.
func (r *Recorder) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.beacons))
	for _, b := range r.beacons {
		out = append(out, b.Action)
	}
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beacons = nil
}

// Queue records legacy queue pushes. It satisfies beacon.Pusher.
type Queue struct {
	mu       sync.RWMutex
	commands [][]any
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push records the command tuple.
func (q *Queue) Push(cmd []any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, append([]any(nil), cmd...))
}

// Commands returns a copy of the pushed tuples.
func (q *Queue) Commands() [][]any {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([][]any, len(q.commands))
	for i, cmd := range q.commands {
		out[i] = append([]any(nil), cmd...)
	}
	return out
}
