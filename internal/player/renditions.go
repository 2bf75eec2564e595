package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"hls-watch/internal/engine"
	"hls-watch/internal/manifest"
)

const maxSideFileSize = 1 << 20

// ListRenditions fetches the renditions side-file next to the current
// manifest. A missing file yields an empty set and no error.
func (c *Controller) ListRenditions(ctx context.Context) ([]manifest.Rendition, error) {
	c.mu.Lock()
	gen, manifestURL := c.gen, c.source.ManifestURL
	c.mu.Unlock()
	if manifestURL == "" {
		return nil, engine.ErrNoSource
	}

	rs, err := c.fetchRenditions(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	c.storeRenditions(gen, rs)
	return rs, nil
}

// refreshRenditions runs after each successful load. Failures only hide the
// quality menu.
func (c *Controller) refreshRenditions(gen uint64, manifestURL string) {
	rs, err := c.fetchRenditions(c.ctx, manifestURL)
	if err != nil {
		if c.ctx.Err() == nil {
			c.log.Warn("renditions unavailable", slog.String("manifest", manifestURL), slog.String("error", err.Error()))
		}
		return
	}
	c.storeRenditions(gen, rs)
}

func (c *Controller) fetchRenditions(ctx context.Context, manifestURL string) ([]manifest.Rendition, error) {
	u := manifest.BaseURL(manifestURL) + manifest.RenditionsFile
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch renditions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch renditions: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSideFileSize))
	if err != nil {
		return nil, fmt.Errorf("read renditions: %w", err)
	}
	return manifest.ParseRenditions(data)
}

// storeRenditions replaces the source's renditions if gen is still current.
func (c *Controller) storeRenditions(gen uint64, rs []manifest.Rendition) {
	c.mu.Lock()
	if gen != c.gen || c.disposed {
		c.mu.Unlock()
		return
	}
	src := c.source
	src.Renditions = rs
	c.source = src
	c.state.Renditions = rs
	var n notice
	c.changedLocked(&n)
	c.mu.Unlock()
	n.deliver()
}

// SwitchRendition re-sources the engine to the adaptive manifest (key "auto")
// or to the media playlist of one rendition. The position and play intent
// are captured now and restored once the new source reports metadata; until
// then the published position stays at the captured value.
func (c *Controller) SwitchRendition(ctx context.Context, key string) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.eng == nil || c.source.ManifestURL == "" {
		c.mu.Unlock()
		return engine.ErrNoSource
	}
	if key == "" {
		key = manifest.Auto
	}
	if key == c.state.ActiveRendition {
		c.mu.Unlock()
		return nil
	}

	target := c.source.ManifestURL
	if key != manifest.Auto {
		r, ok := manifest.Find(c.source.Renditions, key)
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownRendition, key)
		}
		target = manifest.Resolve(manifest.BaseURL(c.source.ManifestURL), r.Path)
	}

	if c.restore == nil {
		c.restore = &restorePoint{time: c.state.CurrentTime, play: c.state.IsPlaying}
	}
	c.url = target
	c.state.ActiveRendition = key
	c.state.IsBuffering = true
	c.state.IsSeeking = false
	c.eng.SetSource(target)

	var n notice
	c.changedLocked(&n)
	c.mu.Unlock()
	n.deliver()

	c.metrics.IncRenditionSwitches()
	c.log.Debug("rendition switched", slog.String("rendition", key), slog.String("source", target))
	return nil
}
