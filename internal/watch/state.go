package watch

import (
	"hls-watch/internal/catalog"
)

// Phase is the transition state of the page.
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseFetchingMetadata    Phase = "fetching_metadata"
	PhaseAwaitingPlayerReady Phase = "awaiting_player_ready"
	PhaseCommitted           Phase = "committed"
	PhaseNotFound            Phase = "not_found"
)

// PendingBundle is the staged page state for a video whose media is still
// loading. At most one exists at a time and it is replaced on navigation.
type PendingBundle struct {
	VideoID        string                `json:"video_id"`
	Video          catalog.Video         `json:"video"`
	Creator        catalog.Profile       `json:"creator"`
	Following      bool                  `json:"following"`
	Vote           catalog.VoteDirection `json:"vote"`
	Related        []catalog.RelatedItem `json:"related"`
	RelatedLoaded  bool                  `json:"related_loaded"`
	MetadataLoaded bool                  `json:"metadata_loaded"`
}

// Visible is the committed page state.
type Visible struct {
	VideoID       string                `json:"video_id"`
	Video         catalog.Video         `json:"video"`
	Creator       catalog.Profile       `json:"creator"`
	Following     bool                  `json:"following"`
	Vote          catalog.VoteDirection `json:"vote"`
	Related       []catalog.RelatedItem `json:"related"`
	RelatedLoaded bool                  `json:"related_loaded"`
}

func (v Visible) clone() Visible {
	v.Related = append([]catalog.RelatedItem(nil), v.Related...)
	return v
}

// next returns the first related item, the autoplay target.
func (v Visible) next() string {
	if len(v.Related) == 0 {
		return ""
	}
	return v.Related[0].ID
}

// State is a snapshot of the controller.
type State struct {
	Phase Phase `json:"phase"`
	// Requested is the identity of the latest navigation.
	Requested string         `json:"requested,omitempty"`
	Visible   Visible        `json:"visible"`
	Pending   *PendingBundle `json:"pending,omitempty"`
	// Err is set in PhaseNotFound.
	Err error `json:"-"`
}

// ErrorMessage returns the failure message, or "".
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
