package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hls-watch/internal/fetch"
	"hls-watch/internal/platform/logger"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultRateLimit      = 20
	defaultRateLimitBurst = 40
	maxBodySize           = 4 << 20
)

// ErrUpstream wraps failures of the platform API that are not ErrNotFound.
var ErrUpstream = errors.New("catalog upstream unavailable")

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	// Interceptor attaches the API credential to every request.
	Interceptor    *fetch.Interceptor
	Transport      http.RoundTripper
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	Logger         *slog.Logger
}

func (o HTTPOptions) normalize() HTTPOptions {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultRetries
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultBackoff
	}
	if o.RateLimit <= 0 {
		o.RateLimit = rate.Limit(defaultRateLimit)
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = defaultRateLimitBurst
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// HTTPClient is the REST implementation of Client.
type HTTPClient struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, opts HTTPOptions) *HTTPClient {
	opts = opts.normalize()
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: fetch.NewTransport(opts.Transport, opts.Interceptor),
		},
		limiter:    rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		log:        opts.Logger,
	}
}

// ResolveVideo fetches GET /videos/{id}.
func (c *HTTPClient) ResolveVideo(ctx context.Context, identity string) (Resolution, error) {
	var root map[string]any
	if err := c.do(ctx, http.MethodGet, "/videos/"+url.PathEscape(identity), nil, nil, &root); err != nil {
		return Resolution{}, err
	}
	res, err := normalizeResolution(fields(root))
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %s: %w", identity, err)
	}
	if res.Video.ID == "" {
		res.Video.ID = identity
	}
	return res, nil
}

// ListRelated fetches GET /videos?exclude={id}&limit={n}.
func (c *HTTPClient) ListRelated(ctx context.Context, excludeIdentity string, pageSize int) ([]RelatedItem, error) {
	q := url.Values{}
	if excludeIdentity != "" {
		q.Set("exclude", excludeIdentity)
	}
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}
	var root any
	if err := c.do(ctx, http.MethodGet, "/videos", q, nil, &root); err != nil {
		return nil, err
	}
	items := normalizeRelated(root, excludeIdentity)
	if pageSize > 0 && len(items) > pageSize {
		items = items[:pageSize]
	}
	return items, nil
}

// LookupProfile fetches GET /users/{username}.
func (c *HTTPClient) LookupProfile(ctx context.Context, username string) (Profile, error) {
	var root map[string]any
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, nil, &root); err != nil {
		return Profile{}, err
	}
	p := normalizeProfile(fields(root))
	if p.Username == "" {
		p.Username = username
		if p.DisplayName == "" {
			p.DisplayName = username
		}
	}
	return p, nil
}

// RecordVote posts the vote; VoteNone removes it.
func (c *HTTPClient) RecordVote(ctx context.Context, identity string, dir VoteDirection) error {
	path := "/videos/" + url.PathEscape(identity) + "/vote"
	if dir == VoteNone {
		return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	}
	return c.do(ctx, http.MethodPost, path, nil, map[string]string{"direction": string(dir)}, nil)
}

func (c *HTTPClient) RecordFollow(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(username)+"/follow", nil, nil, nil)
}

func (c *HTTPClient) RecordUnfollow(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(username)+"/follow", nil, nil, nil)
}

// do sends one API request, retrying network errors and 5xx responses, and
// decodes a JSON body into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.attempt(ctx, method, u, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return err
		}
		c.log.Warn("catalog request failed, retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return lastErr
}

func (c *HTTPClient) attempt(ctx context.Context, method, u string, payload []byte, out any) (retry bool, err error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return false, ErrNotFound
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return true, fmt.Errorf("%w: %s %s returned %d", ErrUpstream, method, u, resp.StatusCode)
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: %s %s returned %d", ErrUpstream, method, u, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", u, err)
	}
	return false, nil
}
