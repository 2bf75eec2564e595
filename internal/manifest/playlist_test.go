package manifest

import (
	"strings"
	"testing"
)

func TestBuildMediaPlaylist_empty_not_ended(t *testing.T) {
	out := BuildMediaPlaylist(nil, false)
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Error("expected #EXTM3U header")
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:1") {
		t.Error("expected target duration 1 for empty")
	}
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:0") {
		t.Error("expected media sequence 0")
	}
	if strings.Contains(out, "#EXT-X-ENDLIST") {
		t.Error("should not contain ENDLIST when not ended")
	}
}

func TestBuildMediaPlaylist_target_duration_ceiling(t *testing.T) {
	out := BuildMediaPlaylist([]Segment{{Sequence: 1, Duration: 2.5, URI: "a.ts"}}, true)
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:3") {
		t.Errorf("expected TARGETDURATION 3 (ceil 2.5): %s", out)
	}
	if !strings.Contains(out, "#EXT-X-ENDLIST") {
		t.Error("expected #EXT-X-ENDLIST when ended")
	}
}

func TestParse_media_roundtrip_of_builder(t *testing.T) {
	segs := []Segment{
		{Sequence: 38, Duration: 2.0, URI: "seg_038.ts"},
		{Sequence: 39, Duration: 1.5, URI: "seg_039.ts"},
	}
	kind, variants, media, err := Parse(strings.NewReader(BuildMediaPlaylist(segs, true)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if kind != KindMedia || variants != nil {
		t.Fatalf("expected media playlist, got kind=%v", kind)
	}
	if !media.Ended {
		t.Error("expected ENDLIST to be parsed")
	}
	if media.MediaSequence != 38 || len(media.Segments) != 2 {
		t.Fatalf("unexpected playlist: %+v", media)
	}
	if media.Segments[1].Sequence != 39 || media.Segments[1].URI != "seg_039.ts" {
		t.Errorf("second segment = %+v", media.Segments[1])
	}
	if d := media.Duration(); d != 3.5 {
		t.Errorf("Duration = %v, want 3.5", d)
	}
}

func TestParse_master(t *testing.T) {
	in := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=854x480,CODECS=\"avc1.4d401f,mp4a.40.2\"\n" +
		"480p/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720\n" +
		"720p/index.m3u8\n"
	kind, variants, media, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if kind != KindMaster || media != nil {
		t.Fatalf("expected master playlist")
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
	if variants[0].Bandwidth != 800000 || variants[0].Height != 480 || variants[0].URI != "480p/index.m3u8" {
		t.Errorf("variant 0 = %+v", variants[0])
	}
	if variants[1].Width != 1280 {
		t.Errorf("variant 1 = %+v", variants[1])
	}
}

func TestParse_master_builder(t *testing.T) {
	out := BuildMasterPlaylist([]Variant{{Bandwidth: 400000, Width: 426, Height: 240, URI: "240p/index.m3u8"}})
	_, variants, _, err := Parse(strings.NewReader(out))
	if err != nil || len(variants) != 1 || variants[0].Height != 240 {
		t.Errorf("builder output not parseable: %v %+v", err, variants)
	}
}

func TestParse_not_playlist(t *testing.T) {
	if _, _, _, err := Parse(strings.NewReader("<html>")); err != ErrNotPlaylist {
		t.Errorf("expected ErrNotPlaylist, got %v", err)
	}
	if _, _, _, err := Parse(strings.NewReader("")); err != ErrNotPlaylist {
		t.Errorf("expected ErrNotPlaylist for empty input, got %v", err)
	}
}
