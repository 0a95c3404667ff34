package tracker

// Player event names the tracker subscribes to.
const (
	EventLoadedMetadata   = "loadedmetadata"
	EventTimeUpdate       = "timeupdate"
	EventEnded            = "ended"
	EventPlay             = "play"
	EventPause            = "pause"
	EventVolumeChange     = "volumechange"
	EventResize           = "resize"
	EventError            = "error"
	EventFullscreenChange = "fullscreenchange"
)

// Logical event names accepted in Options.EventsToTrack.
const (
	TrackLoaded         = "loaded"
	TrackLoadedMetadata = "loadedmetadata"
	TrackPercentsPlayed = "percentsPlayed"
	TrackStart          = "start"
	TrackEnd            = "end"
	TrackSeek           = "seek"
	TrackPlay           = "play"
	TrackPause          = "pause"
	TrackResize         = "resize"
	TrackVolumeChange   = "volumeChange"
	TrackError          = "error"
	TrackFullscreen     = "fullscreen"
)

// PlayerEvents lists every player event a tracker may subscribe to.
var PlayerEvents = []string{
	EventLoadedMetadata,
	EventTimeUpdate,
	EventEnded,
	EventPlay,
	EventPause,
	EventVolumeChange,
	EventResize,
	EventError,
	EventFullscreenChange,
}

// IsPlayerEvent reports whether name is a player event the tracker understands.
func IsPlayerEvent(name string) bool {
	for _, evt := range PlayerEvents {
		if evt == name {
			return true
		}
	}
	return false
}

// conditional maps player events to the logical name gating their subscription.
// loadedmetadata and timeupdate are always subscribed.
var conditional = []struct {
	event   string
	tracked string
}{
	{EventEnded, TrackEnd},
	{EventPlay, TrackPlay},
	{EventPause, TrackPause},
	{EventVolumeChange, TrackVolumeChange},
	{EventResize, TrackResize},
	{EventError, TrackError},
	{EventFullscreenChange, TrackFullscreen},
}
