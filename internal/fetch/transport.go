package fetch

import (
	"net/http"
	"net/url"

	"hls-watch/internal/engine"
)

// Transport applies the interceptor to every request sent through it.
type Transport struct {
	Base        http.RoundTripper
	Interceptor *Interceptor
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, i *Interceptor) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Interceptor: i}
}

// RoundTrip implements http.RoundTripper. The caller's request is not modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := t.Interceptor.Rewrite(engine.Request{URL: req.URL.String(), Header: req.Header})

	out := req.Clone(req.Context())
	if rewritten.URL != req.URL.String() {
		u, err := url.Parse(rewritten.URL)
		if err != nil {
			return nil, err
		}
		out.URL = u
		out.Host = u.Host
	}
	out.Header = rewritten.Header
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	return t.Base.RoundTrip(out)
}

// Client returns an http.Client using a Transport over base.
func (i *Interceptor) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: NewTransport(base, i)}
}
