// Package tracker maps media player lifecycle events to analytics beacons.
//
// A Tracker attaches to one player when it becomes ready, keeps a small
// amount of per-player state (percent milestones already reported, the last
// two playback positions, and a seeking flag) and emits at most a couple of
// beacons per event through the provider resolved at construction. Handlers
// are expected to run one at a time, as delivered by the player.
package tracker

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
)

// Player is the media player collaborator observed by a Tracker.
type Player interface {
	// Ready runs fn once the player is ready (immediately if it already is).
	Ready(fn func())
	// On subscribes fn to the named player event.
	On(event string, fn func())
	CurrentTime() float64
	Duration() float64
	Volume() float64
	Muted() bool
	CurrentSrc() string
	Width() int
	Height() int
	IsFullscreen() bool
	// DataSetup returns the raw in-band configuration attribute, if any.
	DataSetup() string
}

// Beacon actions emitted by the tracker.
const (
	ActionLoadedMetadata  = "loadedmetadata"
	ActionStart           = "start"
	ActionPercentPlayed   = "percent played"
	ActionSeekStart       = "seek start"
	ActionSeekEnd         = "seek end"
	ActionEnd             = "end"
	ActionPlay            = "play"
	ActionPause           = "pause"
	ActionVolumeChange    = "volume change"
	ActionError           = "error"
	ActionEnterFullscreen = "enter fullscreen"
	ActionExitFullscreen  = "exit fullscreen"
)

var extensionPattern = regexp.MustCompile(`(?i)\.(\w{3,4})(\?.*)?$`)

// State is the mutable per-player tracking state.
type State struct {
	percentsTracked map[int]struct{}
	SeekStart       float64
	SeekEnd         float64
	Seeking         bool
}

func newState() *State {
	return &State{percentsTracked: make(map[int]struct{})}
}

// PercentsTracked returns the milestones already seen, ascending.
func (s *State) PercentsTracked() []int {
	out := make([]int, 0, len(s.percentsTracked))
	for p := range s.percentsTracked {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func (s *State) tracked(percent int) bool {
	_, ok := s.percentsTracked[percent]
	return ok
}

// Tracker turns player events into beacons.
type Tracker struct {
	player Player
	sender beacon.Sender
	logger *zap.Logger
	cfg    settings
	label  string
	state  *State
}

// New resolves options against the player's in-band configuration, resolves
// the beacon provider from candidates (first non-nil wins, otherwise a no-op)
// and subscribes to the player once it is ready.
func New(p Player, opts Options, logger *zap.Logger, candidates ...beacon.Sender) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := resolveSettings(opts, p.DataSetup())
	if err != nil {
		return nil, err
	}
	t := &Tracker{
		player: p,
		sender: beacon.Resolve(logger, cfg.debug, candidates...),
		logger: logger,
		cfg:    cfg,
		label:  cfg.label,
		state:  newState(),
	}
	p.Ready(t.attach)
	return t, nil
}

func (t *Tracker) attach() {
	t.player.On(EventLoadedMetadata, t.OnMetadataLoaded)
	t.player.On(EventTimeUpdate, t.OnTimeUpdate)
	handlers := map[string]func(){
		EventEnded:            t.OnEnded,
		EventPlay:             t.OnPlay,
		EventPause:            t.OnPause,
		EventVolumeChange:     t.OnVolumeChange,
		EventResize:           t.OnResize,
		EventError:            t.OnError,
		EventFullscreenChange: t.OnFullscreenChange,
	}
	for _, c := range conditional {
		if t.cfg.tracks(c.tracked) {
			t.player.On(c.event, handlers[c.event])
		}
	}
	t.logger.Debug("tracker attached",
		zap.String("category", t.cfg.category),
		zap.Int("interval", t.cfg.interval),
	)
}

// Label returns the event label, which may still be empty before metadata loads.
func (t *Tracker) Label() string {
	return t.label
}

// State exposes the tracker's state for inspection.
func (t *Tracker) State() *State {
	return t.state
}

// OnMetadataLoaded infers the label from the source URL when none was configured.
func (t *Tracker) OnMetadataLoaded() {
	if t.label == "" {
		t.label = InferLabel(t.player.CurrentSrc())
	}
	if t.cfg.tracks(TrackLoadedMetadata) {
		t.SendBeacon(ActionLoadedMetadata, true, nil)
	}
}

// OnTimeUpdate reports percent milestones once each and detects seeks.
func (t *Tracker) OnTimeUpdate() {
	currentTime := round(t.player.CurrentTime())
	duration := round(t.player.Duration())
	percentPlayed := round(currentTime / duration * 100)

	// An unknown or zero duration yields NaN or Inf; no milestone applies.
	if !math.IsNaN(percentPlayed) && !math.IsInf(percentPlayed, 0) {
		t.trackPercents(percentPlayed)
	}

	if t.cfg.tracks(TrackSeek) {
		t.state.SeekStart = t.state.SeekEnd
		t.state.SeekEnd = currentTime
		if math.Abs(t.state.SeekStart-t.state.SeekEnd) > 1 {
			t.state.Seeking = true
			t.SendBeacon(ActionSeekStart, false, beacon.Value(t.state.SeekStart))
			t.SendBeacon(ActionSeekEnd, false, beacon.Value(t.state.SeekEnd))
		}
	}
}

func (t *Tracker) trackPercents(percentPlayed float64) {
	for percent := 0; percent <= 99; percent += t.cfg.interval {
		if percentPlayed >= float64(percent) && !t.state.tracked(percent) {
			if t.cfg.tracks(TrackStart) && percent == 0 && percentPlayed > 0 {
				t.SendBeacon(ActionStart, true, nil)
			} else if t.cfg.tracks(TrackPercentsPlayed) && percentPlayed != 0 {
				t.SendBeacon(ActionPercentPlayed, true, beacon.Value(float64(percent)))
			}
			if percentPlayed > 0 {
				t.state.percentsTracked[percent] = struct{}{}
			}
		}
	}
}

// OnEnded reports the end of playback.
func (t *Tracker) OnEnded() {
	t.SendBeacon(ActionEnd, true, nil)
}

// OnPlay reports playback resuming and clears the seeking flag.
func (t *Tracker) OnPlay() {
	t.SendBeacon(ActionPlay, true, beacon.Value(round(t.player.CurrentTime())))
	t.state.Seeking = false
}

// OnPause reports a pause unless it was caused by a seek or the end of the stream.
func (t *Tracker) OnPause() {
	currentTime := round(t.player.CurrentTime())
	duration := round(t.player.Duration())
	if currentTime != duration && !t.state.Seeking {
		t.SendBeacon(ActionPause, false, beacon.Value(currentTime))
	}
}

// OnVolumeChange reports the volume between 0 (muted) and 1.
func (t *Tracker) OnVolumeChange() {
	volume := t.player.Volume()
	if t.player.Muted() {
		volume = 0
	}
	t.SendBeacon(ActionVolumeChange, false, beacon.Value(volume))
}

// OnResize reports the new player dimensions in the action.
func (t *Tracker) OnResize() {
	t.SendBeacon(ResizeAction(t.player.Width(), t.player.Height()), true, nil)
}

// OnError reports a playback error at the current position.
// No error detail is available from the player.
func (t *Tracker) OnError() {
	t.SendBeacon(ActionError, true, beacon.Value(round(t.player.CurrentTime())))
}

// OnFullscreenChange reports entering or leaving fullscreen.
func (t *Tracker) OnFullscreenChange() {
	currentTime := beacon.Value(round(t.player.CurrentTime()))
	if t.player.IsFullscreen() {
		t.SendBeacon(ActionEnterFullscreen, false, currentTime)
		return
	}
	t.SendBeacon(ActionExitFullscreen, false, currentTime)
}

// SendBeacon emits one beacon with the tracker's category and label.
// Delivery is best-effort; nothing is returned.
func (t *Tracker) SendBeacon(action string, nonInteraction bool, value *float64) {
	b := beacon.Beacon{
		Category:       t.cfg.category,
		Action:         action,
		Label:          t.label,
		Value:          value,
		NonInteraction: nonInteraction,
	}
	if t.cfg.debug {
		fields := []zap.Field{
			zap.String("action", action),
			zap.String("label", t.label),
			zap.Bool("non_interaction", nonInteraction),
		}
		if value != nil {
			fields = append(fields, zap.Float64("value", *value))
		}
		t.logger.Debug("sending beacon", fields...)
	}
	t.sender.Send(b)
}

// ResizeAction formats the action reported for a resize.
func ResizeAction(width, height int) string {
	return fmt.Sprintf("resize - %d*%d", width, height)
}

// InferLabel derives a media label from a source URL: the last path segment
// without a 3-4 character extension and any query string.
func InferLabel(src string) string {
	segments := strings.Split(src, "/")
	return extensionPattern.ReplaceAllString(segments[len(segments)-1], "")
}

// round matches the player's rounding: halves round toward positive infinity.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}
