package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"hls-watch/internal/engine"
	"hls-watch/internal/manifest"
)

// identityPattern matches opaque video identities that need a lookup.
var identityPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// IsIdentity reports whether s is an opaque video identity.
func IsIdentity(s string) bool {
	return identityPattern.MatchString(s)
}

// Load resolves src and re-sources the engine. Resolution order: an opaque
// identity is looked up, anything else is treated as a URL or storage path,
// and the master playlist suffix is appended unless the result already names
// a playlist. When autoplay was requested at Initialize, playback is started.
//
// The current source keeps playing, and its state stays live, until src has
// been resolved; State.Pending names the source being resolved meanwhile. A
// resolution failure is reported in State.LoadErr and returned as a
// *SourceResolutionError; only when nothing was playing does the player move
// to StatusLoadFailed. ErrSuperseded is returned when a newer Load started
// meanwhile; that result must be ignored.
func (c *Controller) Load(ctx context.Context, src PlaybackSource) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.eng == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.loadSeq++
	seq := c.loadSeq
	c.input = src
	c.state.Pending = src.Identity
	c.state.LoadErr = nil
	if c.url == "" {
		c.state.Status = StatusLoading
		c.state.SourceID = src.Identity
		c.state.PosterURL = src.PosterURL
		c.state.Err = nil
	}
	var n notice
	c.changedLocked(&n)
	c.mu.Unlock()
	n.deliver()

	manifestURL, poster, err := c.resolve(ctx, src)

	c.mu.Lock()
	if seq != c.loadSeq || c.disposed {
		c.mu.Unlock()
		return ErrSuperseded
	}
	n = notice{}
	c.state.Pending = ""
	if err != nil && ctx.Err() != nil {
		if c.url == "" {
			c.state.Status = StatusIdle
			c.state.SourceID = ""
		}
		c.changedLocked(&n)
		c.mu.Unlock()
		n.deliver()
		return ctx.Err()
	}
	if err != nil {
		rerr := &SourceResolutionError{Identity: src.Identity, Err: err}
		c.state.LoadErr = rerr
		if c.url == "" {
			c.state.Status = StatusLoadFailed
			c.state.Err = rerr
		}
		c.changedLocked(&n)
		c.mu.Unlock()
		n.deliver()

		c.metrics.IncSourceFailures()
		c.log.Info("source resolution failed", slog.String("identity", src.Identity), slog.String("error", err.Error()))
		return rerr
	}

	c.gen++
	gen := c.gen
	c.live = src
	c.source = PlaybackSource{Identity: src.Identity, ManifestURL: manifestURL, PosterURL: poster}
	c.url = manifestURL
	c.readyEmitted = false
	c.restore = nil
	c.state = State{
		Status:          StatusLoading,
		SourceID:        src.Identity,
		ManifestURL:     manifestURL,
		PosterURL:       poster,
		ActiveRendition: manifest.Auto,
		Volume:          c.state.Volume,
		Muted:           c.state.Muted,
		Fullscreen:      c.state.Fullscreen,
	}
	// The engine does not deliver events synchronously from SetSource, so it
	// is safe to call under c.mu and keeps concurrent loads ordered.
	c.eng.SetSource(manifestURL)
	c.goLocked(func() { c.refreshRenditions(gen, manifestURL) })
	if c.opts.Autoplay {
		c.playLocked(c.eng)
	}
	c.changedLocked(&n)
	c.mu.Unlock()
	n.deliver()

	c.log.Debug("source loaded", slog.String("identity", src.Identity), slog.String("manifest", manifestURL))
	return nil
}

// Retry re-issues the load that failed to resolve, or reloads the current
// source after an engine error.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	src := c.live
	if c.state.LoadErr != nil || c.url == "" {
		src = c.input
	}
	c.mu.Unlock()
	if src.Identity == "" && src.ManifestURL == "" {
		return engine.ErrNoSource
	}
	return c.Load(ctx, src)
}

// resolve returns the manifest and poster URLs for src.
func (c *Controller) resolve(ctx context.Context, src PlaybackSource) (string, string, error) {
	poster := src.PosterURL
	if src.ManifestURL != "" {
		u, err := c.normalize(src.ManifestURL)
		if err != nil {
			return "", "", err
		}
		return manifest.EnsureManifest(u), poster, nil
	}

	id := strings.TrimSpace(src.Identity)
	raw := id
	if IsIdentity(id) {
		if c.cfg.Resolver == nil {
			return "", "", fmt.Errorf("no asset resolver for %s", id)
		}
		asset, err := c.cfg.Resolver.LookupAsset(ctx, id)
		if err != nil {
			return "", "", fmt.Errorf("lookup: %w", err)
		}
		if asset.URL == "" {
			return "", "", fmt.Errorf("lookup returned no asset url: %w", ErrInvalidIdentity)
		}
		raw = asset.URL
		if asset.PosterURL != "" {
			poster = asset.PosterURL
		}
	}
	u, err := c.normalize(raw)
	if err != nil {
		return "", "", err
	}
	return manifest.EnsureManifest(u), poster, nil
}

// normalize turns a URL or storage path into an absolute URL.
func (c *Controller) normalize(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidIdentity
	}
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return raw, nil
	}
	if c.cfg.StorageBaseURL == "" || strings.Contains(raw, "://") {
		return "", fmt.Errorf("%q is not a url or storage path: %w", raw, ErrInvalidIdentity)
	}
	return strings.TrimRight(c.cfg.StorageBaseURL, "/") + "/" + strings.TrimLeft(raw, "/"), nil
}

// onEvent translates engine events into State. Events from a replaced source
// are dropped.
func (c *Controller) onEvent(ev engine.Event) {
	c.mu.Lock()
	if c.disposed || c.url == "" || ev.Source != c.url {
		c.mu.Unlock()
		return
	}
	var n notice
	s := &c.state
	switch ev.Type {
	case engine.EventLoadedMetadata:
		s.Duration = ev.Duration
		if r := c.restore; r != nil {
			c.restore = nil
			c.eng.Seek(r.time)
			if r.play {
				c.playLocked(c.eng)
			}
		}
	case engine.EventDurationChange:
		s.Duration = ev.Duration
	case engine.EventCanPlay:
		s.IsBuffering = false
		if s.Status == StatusLoading {
			s.Status = StatusReady
		}
		c.readyLocked(&n)
	case engine.EventPlay:
		s.IsPlaying = true
	case engine.EventPlaying:
		s.IsPlaying = true
		s.IsBuffering = false
		if s.Status == StatusLoading {
			s.Status = StatusReady
		}
		c.readyLocked(&n)
	case engine.EventPause:
		s.IsPlaying = false
	case engine.EventTimeUpdate:
		if c.restore == nil {
			s.CurrentTime = ev.CurrentTime
		}
	case engine.EventWaiting:
		s.IsBuffering = true
	case engine.EventSeeking:
		s.IsSeeking = true
	case engine.EventSeeked:
		s.IsSeeking = false
		if c.restore == nil {
			s.CurrentTime = ev.CurrentTime
		}
	case engine.EventEnded:
		s.HasEnded = true
		s.IsPlaying = false
		s.IsBuffering = false
	case engine.EventVolumeChange:
		s.Volume = ev.Volume
		s.Muted = ev.Muted
	case engine.EventFullscreenChange:
		s.Fullscreen = ev.Fullscreen
	case engine.EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("unknown engine error")
		}
		s.Status = StatusEngineError
		s.Err = &EngineError{Source: ev.Source, Err: err}
		s.IsPlaying = false
		s.IsBuffering = false
		c.metrics.IncEngineErrors()
		c.log.Error("engine error", slog.String("source", ev.Source), slog.String("error", err.Error()))
	case engine.EventLevelSwitched:
		c.log.Debug("level switched", slog.Int("level", ev.Level))
		c.mu.Unlock()
		return
	default:
		c.mu.Unlock()
		return
	}
	c.changedLocked(&n)
	c.mu.Unlock()
	n.deliver()
}
