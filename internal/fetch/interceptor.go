// Package fetch rewrites the requests issued on behalf of the player: it
// attaches the API credential and repairs segment URLs that were published
// without their hls/ path element.
package fetch

import (
	"net/http"
	"regexp"

	"hls-watch/internal/engine"
)

// DefaultHeader is the credential header used when none is configured.
const DefaultHeader = "X-API-Key"

// malformedSegment matches <root>/<64-hex id>/<rendition>/<file> where the
// rendition directory sits directly under the id instead of under hls/.
var malformedSegment = regexp.MustCompile(`^(.*/[0-9a-fA-F]{64})/([^/]+/[^/?#]+\.(?:ts|m4s|mp4|aac))((?:[?#].*)?)$`)

// Interceptor holds the static credential. The zero value rewrites paths only.
type Interceptor struct {
	header     string
	credential string
}

// New returns an Interceptor. An empty credential leaves requests
// unauthenticated; an empty header falls back to DefaultHeader.
func New(header, credential string) *Interceptor {
	if header == "" {
		header = DefaultHeader
	}
	return &Interceptor{header: header, credential: credential}
}

// Rewrite returns a copy of req with the credential header set and the URL
// repaired. Applying it twice yields the same result as applying it once.
func (i *Interceptor) Rewrite(req engine.Request) engine.Request {
	out := engine.Request{URL: RewriteSegmentURL(req.URL)}
	if req.Header != nil {
		out.Header = req.Header.Clone()
	}
	if i != nil && i.credential != "" {
		if out.Header == nil {
			out.Header = make(http.Header)
		}
		out.Header.Set(i.header, i.credential)
	}
	return out
}

// Hook exposes Rewrite as an engine request hook.
func (i *Interceptor) Hook() engine.RequestHook {
	return i.Rewrite
}

// RewriteSegmentURL inserts the missing hls/ element into a malformed segment
// URL. Any other URL is returned unchanged.
func RewriteSegmentURL(u string) string {
	m := malformedSegment.FindStringSubmatch(u)
	if m == nil {
		return u
	}
	// <id>/hls/<file> is a valid layout for single-file renditions.
	if len(m[2]) >= 4 && m[2][:4] == "hls/" {
		return u
	}
	return m[1] + "/hls/" + m[2] + m[3]
}
