// Package catalogtest provides an in-memory catalog.Client whose calls can be
// held open so tests decide the order in which results arrive.
package catalogtest

import (
	"context"
	"sync"

	"hls-watch/internal/catalog"
)

// ResolveKey, RelatedKey and ProfileKey name calls for Hold and Calls.
func ResolveKey(identity string) string { return "resolve/" + identity }
func RelatedKey(exclude string) string { return "related/" + exclude }
func ProfileKey(username string) string { return "profile/" + username }

// Vote is a recorded RecordVote call.
type Vote struct {
	Identity  string
	Direction catalog.VoteDirection
}

// Client is a scriptable catalog.Client. Unknown videos resolve to
// catalog.ErrNotFound; unknown profiles fail so callers fall back.
type Client struct {
	mu         sync.Mutex
	videos     map[string]catalog.Resolution
	profiles   map[string]catalog.Profile
	related    []catalog.RelatedItem
	relatedErr error
	gates      map[string]chan struct{}
	calls      map[string]int
	votes      []Vote
	follows    []string
}

var _ catalog.Client = (*Client)(nil)

func New() *Client {
	return &Client{
		videos:   make(map[string]catalog.Resolution),
		profiles: make(map[string]catalog.Profile),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

func (c *Client) AddVideo(res catalog.Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videos[res.Video.ID] = res
}

func (c *Client) AddProfile(p catalog.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.Username] = p
}

// SetRelated sets the list returned by ListRelated, minus the excluded id.
func (c *Client) SetRelated(items []catalog.RelatedItem, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.related = items
	c.relatedErr = err
}

// Hold blocks calls matching key until the returned release is called.
// Release is safe to call more than once.
func (c *Client) Hold(key string) (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.gates[key] = ch
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if c.gates[key] == ch {
				delete(c.gates, key)
			}
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Calls reports how many calls matching key have started.
func (c *Client) Calls(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key]
}

func (c *Client) Votes() []Vote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Vote(nil), c.votes...)
}

// Follows lists recorded follow changes as "+user" or "-user".
func (c *Client) Follows() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.follows...)
}

func (c *Client) enter(ctx context.Context, key string) error {
	c.mu.Lock()
	c.calls[key]++
	gate := c.gates[key]
	c.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) ResolveVideo(ctx context.Context, identity string) (catalog.Resolution, error) {
	if err := c.enter(ctx, ResolveKey(identity)); err != nil {
		return catalog.Resolution{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.videos[identity]
	if !ok {
		return catalog.Resolution{}, catalog.ErrNotFound
	}
	return res, nil
}

func (c *Client) ListRelated(ctx context.Context, excludeIdentity string, pageSize int) ([]catalog.RelatedItem, error) {
	if err := c.enter(ctx, RelatedKey(excludeIdentity)); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.relatedErr != nil {
		return nil, c.relatedErr
	}
	out := make([]catalog.RelatedItem, 0, len(c.related))
	for _, it := range c.related {
		if it.ID == excludeIdentity {
			continue
		}
		if pageSize > 0 && len(out) == pageSize {
			break
		}
		out = append(out, it)
	}
	return out, nil
}

func (c *Client) LookupProfile(ctx context.Context, username string) (catalog.Profile, error) {
	if err := c.enter(ctx, ProfileKey(username)); err != nil {
		return catalog.Profile{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[username]
	if !ok {
		return catalog.Profile{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *Client) RecordVote(_ context.Context, identity string, dir catalog.VoteDirection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes = append(c.votes, Vote{Identity: identity, Direction: dir})
	return nil
}

func (c *Client) RecordFollow(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.follows = append(c.follows, "+"+username)
	return nil
}

func (c *Client) RecordUnfollow(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.follows = append(c.follows, "-"+username)
	return nil
}
