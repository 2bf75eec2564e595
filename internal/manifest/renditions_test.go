package manifest

import (
	"reflect"
	"testing"
)

func TestParseRenditions_shapes(t *testing.T) {
	want := []string{"240p", "480p", "720p"}
	cases := map[string]string{
		"array": `[{"key":"720p","height":720,"bitrate":2800000,"path":"720p/index.m3u8"},
			{"key":"240p","height":240,"bitrate":400000,"path":"240p/index.m3u8"},
			{"key":"480p","height":480,"bitrate":800000,"path":"480p/index.m3u8"}]`,
		"wrapped_array": `{"renditions":[{"name":"480p","resolution":"854x480","bandwidth":"800000"},
			{"name":"240p","resolution":"426x240"},{"name":"720p","resolution":"1280x720"}]}`,
		"keyed": `{"720p":{"height":720,"path":"720p/index.m3u8"},
			"240p":{"height":240,"path":"240p/index.m3u8"},
			"480p":{"height":480,"path":"480p/index.m3u8"}}`,
		"wrapped_keyed": `{"renditions":{"480p":{},"720p":{},"240p":{}}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			rs, err := ParseRenditions([]byte(in))
			if err != nil {
				t.Fatalf("ParseRenditions: %v", err)
			}
			var keys []string
			for _, r := range rs {
				keys = append(keys, r.Key)
				if r.Path == "" || r.Height == 0 {
					t.Errorf("incomplete rendition %+v", r)
				}
			}
			if !reflect.DeepEqual(keys, want) {
				t.Errorf("keys = %v, want %v", keys, want)
			}
		})
	}
}

func TestParseRenditions_skips_auto_and_defaults_path(t *testing.T) {
	rs, err := ParseRenditions([]byte(`[{"key":"auto"},{"key":"1080p","bitrate":5000000}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 rendition, got %+v", rs)
	}
	if rs[0].Path != "1080p/index.m3u8" || rs[0].Height != 1080 || rs[0].Bitrate != 5000000 {
		t.Errorf("unexpected rendition %+v", rs[0])
	}
}

func TestParseRenditions_invalid(t *testing.T) {
	if _, err := ParseRenditions([]byte(`"nope"`)); err == nil {
		t.Error("expected error")
	}
}

func TestQualityOptions(t *testing.T) {
	if got := QualityOptions(nil); got != nil {
		t.Errorf("empty set should hide menu, got %v", got)
	}
	got := QualityOptions([]Rendition{{Key: "720p", Height: 720}, {Key: "240p", Height: 240}})
	want := []string{"auto", "240p", "720p"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("QualityOptions = %v, want %v", got, want)
	}
}

func TestEnsureManifest(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/videos/abc":                  "https://cdn.example.com/videos/abc/hls/master.m3u8",
		"https://cdn.example.com/videos/abc/":                 "https://cdn.example.com/videos/abc/hls/master.m3u8",
		"https://cdn.example.com/videos/abc/hls/master.m3u8":  "https://cdn.example.com/videos/abc/hls/master.m3u8",
		"https://cdn.example.com/v/720p/index.m3u8?token=abc": "https://cdn.example.com/v/720p/index.m3u8?token=abc",
		"https://cdn.example.com/videos/abc?sig=1":            "https://cdn.example.com/videos/abc/hls/master.m3u8?sig=1",
	}
	for in, want := range cases {
		if got := EnsureManifest(in); got != want {
			t.Errorf("EnsureManifest(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseURL_and_Resolve(t *testing.T) {
	base := BaseURL("https://cdn.example.com/videos/abc/hls/master.m3u8?sig=1")
	if base != "https://cdn.example.com/videos/abc/hls/" {
		t.Fatalf("BaseURL = %q", base)
	}
	if got := Resolve(base, RenditionsFile); got != "https://cdn.example.com/videos/abc/hls/renditions.json" {
		t.Errorf("Resolve = %q", got)
	}
	if got := Resolve(base, "720p/index.m3u8"); got != "https://cdn.example.com/videos/abc/hls/720p/index.m3u8" {
		t.Errorf("Resolve = %q", got)
	}
}
