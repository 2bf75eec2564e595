package manifest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const (
	// MasterSuffix is appended to asset roots that do not already name a manifest.
	MasterSuffix = "/hls/master.m3u8"
	// RenditionsFile is the side-file next to the master playlist listing the
	// renditions that can be selected manually.
	RenditionsFile = "renditions.json"
)

// rawRendition accepts the field spellings produced by the encoding pipeline.
type rawRendition struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Height     int             `json:"height"`
	Bitrate    json.RawMessage `json:"bitrate"`
	Bandwidth  json.RawMessage `json:"bandwidth"`
	Path       string          `json:"path"`
	Playlist   string          `json:"playlist"`
	Resolution string          `json:"resolution"`
}

// ParseRenditions decodes the renditions side-file. Three shapes are accepted:
// a bare array, {"renditions": [...]}, or a mapping keyed by rendition key
// (either bare or under "renditions"). The result is sorted by height.
func ParseRenditions(data []byte) ([]Rendition, error) {
	var wrapper struct {
		Renditions json.RawMessage `json:"renditions"`
	}
	body := data
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Renditions) > 0 {
			body = wrapper.Renditions
		}
	}

	var list []rawRendition
	if err := json.Unmarshal(body, &list); err == nil {
		return normalizeRenditions(list, nil)
	}

	var keyed map[string]rawRendition
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, fmt.Errorf("decode renditions: %w", err)
	}
	keys := make([]string, 0, len(keyed))
	list = make([]rawRendition, 0, len(keyed))
	for k, r := range keyed {
		keys = append(keys, k)
		list = append(list, r)
	}
	return normalizeRenditions(list, keys)
}

func normalizeRenditions(list []rawRendition, keys []string) ([]Rendition, error) {
	out := make([]Rendition, 0, len(list))
	for i, raw := range list {
		r := Rendition{
			Key:    firstNonEmpty(raw.Key, raw.Name),
			Height: raw.Height,
			Path:   firstNonEmpty(raw.Path, raw.Playlist),
		}
		if r.Key == "" && keys != nil {
			r.Key = keys[i]
		}
		if r.Height == 0 && raw.Resolution != "" {
			if _, h, ok := strings.Cut(raw.Resolution, "x"); ok {
				r.Height, _ = strconv.Atoi(h)
			}
		}
		if r.Height == 0 {
			r.Height, _ = strconv.Atoi(strings.TrimSuffix(r.Key, "p"))
		}
		r.Bitrate = parseNumber(raw.Bitrate)
		if r.Bitrate == 0 {
			r.Bitrate = parseNumber(raw.Bandwidth)
		}
		if r.Key == "" || r.Key == Auto {
			continue
		}
		if r.Path == "" {
			r.Path = r.Key + "/index.m3u8"
		}
		out = append(out, r)
	}
	return SortRenditions(out), nil
}

// parseNumber reads a JSON number or numeric string.
func parseNumber(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsManifestURL reports whether u already names an m3u8 playlist.
func IsManifestURL(u string) bool {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	}
	return strings.HasSuffix(strings.ToLower(p), ".m3u8")
}

// EnsureManifest appends MasterSuffix to an asset root unless it already names
// a playlist.
func EnsureManifest(u string) string {
	if IsManifestURL(u) {
		return u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return strings.TrimRight(u, "/") + MasterSuffix
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + MasterSuffix
	return parsed.String()
}

// BaseURL returns the directory of a manifest URL, with a trailing slash and
// without query or fragment.
func BaseURL(manifestURL string) string {
	parsed, err := url.Parse(manifestURL)
	if err != nil {
		if i := strings.LastIndexByte(manifestURL, '/'); i >= 0 {
			return manifestURL[:i+1]
		}
		return manifestURL
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	dir := path.Dir(parsed.Path)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	parsed.Path = dir
	return parsed.String()
}

// Resolve resolves ref against base the way playlist URIs are resolved.
func Resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
