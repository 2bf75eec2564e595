package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrNotPlaylist is returned when the input does not start with #EXTM3U.
var ErrNotPlaylist = errors.New("not an m3u8 playlist")

// Kind distinguishes master from media playlists.
type Kind int

const (
	KindMedia Kind = iota
	KindMaster
)

// Parse reads an m3u8 playlist. Exactly one of the returned variants slice or
// media playlist is populated, according to the returned kind.
func Parse(r io.Reader) (Kind, []Variant, *MediaPlaylist, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 512*1024)

	first := true
	var (
		variants []Variant
		media    = &MediaPlaylist{}
		pending  *Variant
		extinf   = -1.0
		seq      int64
		isMaster bool
	)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			if !strings.HasPrefix(line, "#EXTM3U") {
				return 0, nil, nil, ErrNotPlaylist
			}
			first = false
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			isMaster = true
			v := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			pending = &v
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return 0, nil, nil, fmt.Errorf("target duration: %w", err)
			}
			media.TargetDuration = n
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			n, err := strconv.ParseInt(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64)
			if err != nil {
				return 0, nil, nil, fmt.Errorf("media sequence: %w", err)
			}
			media.MediaSequence = n
			seq = n
		case strings.HasPrefix(line, "#EXTINF:"):
			val := strings.TrimPrefix(line, "#EXTINF:")
			if i := strings.IndexByte(val, ','); i >= 0 {
				val = val[:i]
			}
			d, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return 0, nil, nil, fmt.Errorf("segment duration: %w", err)
			}
			extinf = d
		case line == "#EXT-X-ENDLIST":
			media.Ended = true
		case strings.HasPrefix(line, "#"):
			// unsupported tag
		default:
			if pending != nil {
				pending.URI = line
				variants = append(variants, *pending)
				pending = nil
				continue
			}
			if extinf >= 0 {
				media.Segments = append(media.Segments, Segment{Sequence: seq, Duration: extinf, URI: line})
				seq++
				extinf = -1
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, nil, nil, err
	}
	if first {
		return 0, nil, nil, ErrNotPlaylist
	}
	if isMaster {
		return KindMaster, variants, nil, nil
	}
	return KindMedia, nil, media, nil
}

// parseStreamInf reads BANDWIDTH and RESOLUTION from an attribute list.
func parseStreamInf(attrs string) Variant {
	var v Variant
	for _, kv := range splitAttributes(attrs) {
		k, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(k) {
		case "BANDWIDTH":
			v.Bandwidth, _ = strconv.ParseInt(val, 10, 64)
		case "RESOLUTION":
			w, h, ok := strings.Cut(val, "x")
			if ok {
				v.Width, _ = strconv.Atoi(w)
				v.Height, _ = strconv.Atoi(h)
			}
		}
	}
	return v
}

// splitAttributes splits on commas outside quoted strings.
func splitAttributes(s string) []string {
	var (
		out    []string
		start  int
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// BuildMediaPlaylist renders segments (ordered by sequence ascending) as a VOD
// or live media playlist. If ended is true, #EXT-X-ENDLIST is appended.
// An empty segments slice produces a minimal valid playlist with media sequence 0.
func BuildMediaPlaylist(segments []Segment, ended bool) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if len(segments) == 0 {
		b.WriteString("#EXT-X-TARGETDURATION:1\n")
		b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
		if ended {
			b.WriteString("#EXT-X-ENDLIST\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(segments))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n\n", segments[0].Sequence)

	for _, seg := range segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.Duration)
		b.WriteString(seg.URI)
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// BuildMasterPlaylist renders one EXT-X-STREAM-INF entry per variant.
func BuildMasterPlaylist(variants []Variant) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth)
		if v.Width > 0 && v.Height > 0 {
			fmt.Fprintf(&b, ",RESOLUTION=%dx%d", v.Width, v.Height)
		}
		b.WriteString("\n")
		b.WriteString(v.URI)
		b.WriteString("\n")
	}
	return b.String()
}

// targetDuration returns the HLS #EXT-X-TARGETDURATION value:
// the ceiling of the maximum segment duration in seconds (integer).
func targetDuration(segments []Segment) int {
	max := 0.0
	for _, seg := range segments {
		if seg.Duration > max {
			max = seg.Duration
		}
	}
	if max <= 0 {
		return 1
	}
	return int(math.Ceil(max))
}
