package hls

import (
	"sort"

	"hls-watch/internal/manifest"
)

// level is one variant with its lazily fetched media playlist.
type level struct {
	variant  manifest.Variant
	url      string
	playlist *manifest.MediaPlaylist
}

// timeline maps media time to segment indexes and tracks which segments are
// buffered. All levels of a source share one segment timeline.
type timeline struct {
	starts    []float64
	durations []float64
	buffered  []bool
	total     float64
	ended     bool
}

func newTimeline(p *manifest.MediaPlaylist) *timeline {
	tl := &timeline{
		starts:    make([]float64, len(p.Segments)),
		durations: make([]float64, len(p.Segments)),
		buffered:  make([]bool, len(p.Segments)),
		ended:     p.Ended,
	}
	for i, s := range p.Segments {
		tl.starts[i] = tl.total
		tl.durations[i] = s.Duration
		tl.total += s.Duration
	}
	return tl
}

// indexAt returns the segment containing t, or len(segments) past the end.
func (tl *timeline) indexAt(t float64) int {
	i := sort.Search(len(tl.starts), func(i int) bool {
		return tl.starts[i]+tl.durations[i] > t
	})
	return i
}

// bufferedAt reports whether media at t is available. The end of a finished
// presentation counts as available.
func (tl *timeline) bufferedAt(t float64) bool {
	i := tl.indexAt(t)
	if i >= len(tl.buffered) {
		return tl.ended
	}
	return tl.buffered[i]
}

// bufferedAhead returns the seconds of contiguous buffered media after t.
// A gap ends the run even if later segments are buffered.
func (tl *timeline) bufferedAhead(t float64) float64 {
	i := tl.indexAt(t)
	if i >= len(tl.buffered) || !tl.buffered[i] {
		return 0
	}
	ahead := tl.starts[i] + tl.durations[i] - t
	for j := i + 1; j < len(tl.buffered) && tl.buffered[j]; j++ {
		ahead += tl.durations[j]
	}
	return ahead
}

// nextToFetch returns the first unbuffered segment at or after t while less
// than limit seconds are buffered ahead, or -1 when nothing should be fetched.
func (tl *timeline) nextToFetch(t, limit float64) int {
	if tl.bufferedAhead(t) >= limit {
		return -1
	}
	for j := tl.indexAt(t); j < len(tl.buffered); j++ {
		if !tl.buffered[j] {
			return j
		}
	}
	return -1
}

// chooseLevel picks the highest-bandwidth level sustainable at the measured
// throughput, keeping a safety margin. Levels must be sorted by bandwidth.
func chooseLevel(levels []*level, throughputBps float64) int {
	best := 0
	for i, l := range levels {
		if float64(l.variant.Bandwidth) <= throughputBps*0.8 {
			best = i
		}
	}
	return best
}
