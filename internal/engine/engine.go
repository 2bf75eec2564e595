// Package engine defines the contract of an adaptive-bitrate media engine: the
// object that owns a render surface, fetches manifests and segments, and
// reports playback progress as a stream of media events.
package engine

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrAborted rejects a pending Play when the source is replaced, paused or
	// disposed before playback could start.
	ErrAborted = errors.New("play request was interrupted by a new load request")

	// ErrNotAllowed rejects Play when the autoplay policy requires a user
	// activation that has not happened.
	ErrNotAllowed = errors.New("play request is not allowed without user activation")

	// ErrDisposed is returned by operations on a disposed engine.
	ErrDisposed = errors.New("engine disposed")

	// ErrNoSource is returned by Play when no source has been set.
	ErrNoSource = errors.New("no source set")
)

// EventType names a media event, using the HTML media element vocabulary.
type EventType string

const (
	EventLoadStart        EventType = "loadstart"
	EventEmptied          EventType = "emptied"
	EventLoadedMetadata   EventType = "loadedmetadata"
	EventDurationChange   EventType = "durationchange"
	EventCanPlay          EventType = "canplay"
	EventPlay             EventType = "play"
	EventPlaying          EventType = "playing"
	EventPause            EventType = "pause"
	EventWaiting          EventType = "waiting"
	EventTimeUpdate       EventType = "timeupdate"
	EventSeeking          EventType = "seeking"
	EventSeeked           EventType = "seeked"
	EventEnded            EventType = "ended"
	EventVolumeChange     EventType = "volumechange"
	EventFullscreenChange EventType = "fullscreenchange"
	EventLevelSwitched    EventType = "levelswitched"
	EventError            EventType = "error"
)

// Event is one media event. Source is the URL that was current when the event
// was produced, so listeners can drop events from a replaced source.
type Event struct {
	Type        EventType
	Source      string
	CurrentTime float64
	Duration    float64
	Volume      float64
	Muted       bool
	Fullscreen  bool
	// Level is the variant index selected by adaptive switching.
	Level int
	Err   error
}

// Request describes an HTTP request the engine is about to issue for a
// manifest or segment.
type Request struct {
	URL    string
	Header http.Header
}

// RequestHook may rewrite a request before it is sent. Hooks must not mutate
// the header map they receive.
type RequestHook func(Request) Request

// Backend is the active loading backend of an engine instance.
type Backend interface {
	SetRequestHook(RequestHook)
}

// AutoplayPolicy decides whether Play is allowed without user activation.
type AutoplayPolicy string

const (
	PolicyAllowed   AutoplayPolicy = "allowed"
	PolicyMutedOnly AutoplayPolicy = "muted-only"
)

// Options configures a new engine instance.
type Options struct {
	// Container identifies the render surface the engine is bound to.
	Container string
	Muted     bool
	Autoplay  bool
	// RequestHook is installed library-wide before the instance is created.
	RequestHook RequestHook
	Policy      AutoplayPolicy
}

// Engine is a single media engine bound to one render surface.
type Engine interface {
	// SetSource fully re-sources the engine: buffers, playhead and pending
	// plays of the previous source are discarded.
	SetSource(url string)
	// Play starts or resumes playback and blocks until playback has started,
	// the request is rejected, or ctx is done.
	Play(ctx context.Context) error
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
	SetMuted(muted bool)
	SetFullscreen(on bool) error
	// Activate records a user activation for the autoplay policy.
	Activate()
	// Subscribe registers a listener; events are delivered in order from a
	// single goroutine.
	Subscribe(fn func(Event)) (unsubscribe func())
	Backend() Backend
	Dispose()
}

// Factory creates an engine instance.
type Factory func(Options) (Engine, error)

// Allowed reports whether an unactivated Play may proceed under the policy.
func (p AutoplayPolicy) Allowed(muted, activated bool) bool {
	if activated || p == PolicyAllowed {
		return true
	}
	return muted
}

// Apply runs the hooks in order over req.
func Apply(req Request, hooks ...RequestHook) Request {
	for _, h := range hooks {
		if h != nil {
			req = h(req)
		}
	}
	return req
}
