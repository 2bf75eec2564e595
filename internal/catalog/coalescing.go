package catalog

import (
	"context"

	"golang.org/x/sync/singleflight"

	"hls-watch/internal/player"
)

// Coalescing shares one in-flight ResolveVideo call per identity between all
// callers, so the player's asset lookup and the page's metadata fetch for the
// same navigation cost one request.
type Coalescing struct {
	Client
	group singleflight.Group
}

var _ player.AssetResolver = (*Coalescing)(nil)

// NewCoalescing wraps c.
func NewCoalescing(c Client) *Coalescing {
	return &Coalescing{Client: c}
}

// ResolveVideo joins an in-flight lookup for identity or starts one. The
// shared call is not cancelled when one caller gives up.
func (c *Coalescing) ResolveVideo(ctx context.Context, identity string) (Resolution, error) {
	ch := c.group.DoChan(identity, func() (any, error) {
		return c.Client.ResolveVideo(context.WithoutCancel(ctx), identity)
	})
	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Resolution{}, res.Err
		}
		return res.Val.(Resolution), nil
	}
}

// LookupAsset implements player.AssetResolver.
func (c *Coalescing) LookupAsset(ctx context.Context, identity string) (player.Asset, error) {
	res, err := c.ResolveVideo(ctx, identity)
	if err != nil {
		return player.Asset{}, err
	}
	return player.Asset{URL: res.Video.AssetURL, PosterURL: res.Video.PosterURL}, nil
}
