package player

import (
	"errors"
	"fmt"

	"hls-watch/internal/engine"
)

var (
	// ErrSuperseded is returned by Load when a newer Load or Dispose happened
	// while the source was being resolved.
	ErrSuperseded = errors.New("load superseded by a newer request")

	// ErrInvalidIdentity means the input is neither a known identity, a URL
	// nor a storage path that can be resolved.
	ErrInvalidIdentity = errors.New("invalid video identity")

	ErrUnknownRendition = errors.New("unknown rendition")
	ErrDisposed         = errors.New("player disposed")
	ErrNotInitialized   = errors.New("player not initialized")
)

// SourceResolutionError means an identity could not be turned into a
// playable URL. It is terminal for that load.
type SourceResolutionError struct {
	Identity string
	Err      error
}

func (e *SourceResolutionError) Error() string {
	return fmt.Sprintf("resolve source %q: %v", e.Identity, e.Err)
}

func (e *SourceResolutionError) Unwrap() error { return e.Err }

// EngineError is a failure reported by the engine after a source was set.
// Retry re-issues the load.
type EngineError struct {
	Source string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("playback of %s failed: %v", e.Source, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// IsExpectedRace reports whether err is a play rejection caused by a newer
// request or by a missing user activation. Such errors are never surfaced.
func IsExpectedRace(err error) bool {
	return errors.Is(err, engine.ErrAborted) ||
		errors.Is(err, engine.ErrNotAllowed) ||
		errors.Is(err, ErrSuperseded)
}

func raceReason(err error) string {
	if errors.Is(err, engine.ErrNotAllowed) {
		return "not_allowed"
	}
	return "aborted"
}
