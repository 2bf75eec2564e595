package hls

import (
	"testing"

	"hls-watch/internal/manifest"
)

func testTimeline() *timeline {
	return newTimeline(&manifest.MediaPlaylist{
		Segments: []manifest.Segment{
			{Sequence: 1, Duration: 2},
			{Sequence: 2, Duration: 2},
			{Sequence: 3, Duration: 2},
			{Sequence: 4, Duration: 2},
		},
		Ended: true,
	})
}

func TestTimeline_indexAt(t *testing.T) {
	tl := testTimeline()
	cases := map[float64]int{0: 0, 1.99: 0, 2: 1, 7.5: 3, 8: 4}
	for in, want := range cases {
		if got := tl.indexAt(in); got != want {
			t.Errorf("indexAt(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestTimeline_bufferedAhead_stops_at_gap(t *testing.T) {
	tl := testTimeline()
	tl.buffered[0] = true
	tl.buffered[1] = true
	tl.buffered[3] = true

	if got := tl.bufferedAhead(1); got != 3 {
		t.Errorf("bufferedAhead(1) = %v, want 3 (gap at segment 2)", got)
	}
	if got := tl.bufferedAhead(4.5); got != 0 {
		t.Errorf("bufferedAhead inside unbuffered segment = %v, want 0", got)
	}
}

func TestTimeline_nextToFetch(t *testing.T) {
	tl := testTimeline()
	if got := tl.nextToFetch(0, 10); got != 0 {
		t.Errorf("empty buffer: got %d, want 0", got)
	}
	tl.buffered[0] = true
	tl.buffered[1] = true
	if got := tl.nextToFetch(0, 4); got != -1 {
		t.Errorf("buffer full at limit: got %d, want -1", got)
	}
	if got := tl.nextToFetch(0, 10); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestTimeline_end_counts_as_buffered(t *testing.T) {
	tl := testTimeline()
	if !tl.bufferedAt(tl.total) {
		t.Error("end of a finished presentation should count as buffered")
	}
}

func TestChooseLevel(t *testing.T) {
	levels := []*level{
		{variant: manifest.Variant{Bandwidth: 400_000}},
		{variant: manifest.Variant{Bandwidth: 800_000}},
		{variant: manifest.Variant{Bandwidth: 2_800_000}},
	}
	if got := chooseLevel(levels, 100_000); got != 0 {
		t.Errorf("slow link: got %d, want 0", got)
	}
	if got := chooseLevel(levels, 1_500_000); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := chooseLevel(levels, 10_000_000); got != 2 {
		t.Errorf("fast link: got %d, want 2", got)
	}
}
