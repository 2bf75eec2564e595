package manifest

import "sort"

// Auto selects adaptive switching over all renditions.
const Auto = "auto"

// Rendition is one fixed-quality encoded variant of a video. Path is relative
// to the directory holding the master playlist.
type Rendition struct {
	Key     string `json:"key"`
	Height  int    `json:"height"`
	Bitrate int64  `json:"bitrate"`
	Path    string `json:"path"`
}

// Segment is a single media segment of a media playlist.
type Segment struct {
	Sequence int64
	Duration float64
	URI      string
}

// Variant is one EXT-X-STREAM-INF entry of a master playlist.
type Variant struct {
	Bandwidth int64
	Width     int
	Height    int
	URI       string
}

// MediaPlaylist is a parsed media playlist.
type MediaPlaylist struct {
	TargetDuration int
	MediaSequence  int64
	Segments       []Segment
	Ended          bool
}

// Duration is the sum of all segment durations.
func (p *MediaPlaylist) Duration() float64 {
	var d float64
	for _, s := range p.Segments {
		d += s.Duration
	}
	return d
}

// SortRenditions orders renditions by height, then bitrate, ascending. The
// input is not modified.
func SortRenditions(rs []Rendition) []Rendition {
	out := append([]Rendition(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height < out[j].Height
		}
		return out[i].Bitrate < out[j].Bitrate
	})
	return out
}

// QualityOptions lists the selectable qualities: "auto" followed by every
// rendition key. It is empty when there is nothing to choose from, which hides
// the quality menu.
func QualityOptions(rs []Rendition) []string {
	if len(rs) == 0 {
		return nil
	}
	out := make([]string, 0, len(rs)+1)
	out = append(out, Auto)
	for _, r := range SortRenditions(rs) {
		out = append(out, r.Key)
	}
	return out
}

// Find returns the rendition with the given key.
func Find(rs []Rendition, key string) (Rendition, bool) {
	for _, r := range rs {
		if r.Key == key {
			return r, true
		}
	}
	return Rendition{}, false
}
