package player

import (
	"context"

	"hls-watch/internal/manifest"
)

// Status is the load status of the current source.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	// StatusLoadFailed means the source could not be resolved. It is distinct
	// from StatusLoading so callers can offer a retry instead of a spinner.
	StatusLoadFailed  Status = "load_failed"
	StatusEngineError Status = "engine_error"
)

// PlaybackSource is what the player plays. Identity is an opaque video id, a
// URL or a storage path; the other fields are filled by resolution. A source
// is replaced wholesale, never modified.
type PlaybackSource struct {
	Identity    string               `json:"identity"`
	ManifestURL string               `json:"manifest_url,omitempty"`
	PosterURL   string               `json:"poster_url,omitempty"`
	Renditions  []manifest.Rendition `json:"renditions,omitempty"`
}

// State is an immutable snapshot of the playback read model.
type State struct {
	Status          Status               `json:"status"`
	SourceID        string               `json:"source_id,omitempty"`
	ManifestURL     string               `json:"manifest_url,omitempty"`
	PosterURL       string               `json:"poster_url,omitempty"`
	IsPlaying       bool                 `json:"is_playing"`
	IsBuffering     bool                 `json:"is_buffering"`
	IsSeeking       bool                 `json:"is_seeking"`
	HasEnded        bool                 `json:"has_ended"`
	CurrentTime     float64              `json:"current_time"`
	Duration        float64              `json:"duration"`
	ActiveRendition string               `json:"active_rendition"`
	Renditions      []manifest.Rendition `json:"renditions,omitempty"`
	Volume          float64              `json:"volume"`
	Muted           bool                 `json:"muted"`
	Fullscreen      bool                 `json:"fullscreen"`
	Err             error                `json:"-"`
	// Pending is the identity of a Load still being resolved.
	Pending string `json:"pending,omitempty"`
	// LoadErr is the resolution failure of the latest Load. The fields above
	// keep describing the source that was playing before it.
	LoadErr error `json:"-"`
}

// ErrorMessage returns the message of the current error, if any.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// LoadErrorMessage returns the message of the latest resolution failure.
func (s State) LoadErrorMessage() string {
	if s.LoadErr == nil {
		return ""
	}
	return s.LoadErr.Error()
}

// Asset is the result of looking up an opaque identity.
type Asset struct {
	URL       string
	PosterURL string
}

// AssetResolver turns an opaque video identity into a direct asset URL.
type AssetResolver interface {
	LookupAsset(ctx context.Context, identity string) (Asset, error)
}

// InitOptions configures the engine created by Initialize.
type InitOptions struct {
	Muted    bool
	Autoplay bool
}
