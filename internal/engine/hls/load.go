package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"hls-watch/internal/engine"
	"hls-watch/internal/manifest"
)

// HTTPError is a non-2xx response to a manifest or segment request.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// get issues a GET with both the library-level and the instance-level request
// hooks applied.
func (e *Engine) get(ctx context.Context, url string) (*http.Response, error) {
	req := engine.Apply(engine.Request{URL: url, Header: http.Header{}}, e.opts.RequestHook, e.backend.current())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	resp, err := e.cfg.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &HTTPError{URL: req.URL, Status: resp.StatusCode}
	}
	return resp, nil
}

func (e *Engine) fetchPlaylist(ctx context.Context, url string) (manifest.Kind, []manifest.Variant, *manifest.MediaPlaylist, error) {
	resp, err := e.get(ctx, url)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	kind, variants, media, err := manifest.Parse(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return kind, variants, media, nil
}

// fetchLevels loads src and, for a master playlist, the media playlist of the
// lowest variant. Other levels are fetched when adaptive switching selects them.
func (e *Engine) fetchLevels(ctx context.Context, src string) ([]*level, error) {
	kind, variants, media, err := e.fetchPlaylist(ctx, src)
	if err != nil {
		return nil, err
	}
	if kind == manifest.KindMedia {
		return []*level{{url: src, playlist: media}}, nil
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("master playlist %s has no variants", src)
	}

	levels := make([]*level, 0, len(variants))
	for _, v := range variants {
		levels = append(levels, &level{variant: v, url: manifest.Resolve(src, v.URI)})
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].variant.Bandwidth < levels[j].variant.Bandwidth
	})

	if err := e.fetchLevelPlaylist(ctx, levels[0]); err != nil {
		return nil, err
	}
	return levels, nil
}

func (e *Engine) fetchLevelPlaylist(ctx context.Context, l *level) error {
	_, _, media, err := e.fetchPlaylist(ctx, l.url)
	if err != nil {
		return err
	}
	if media == nil {
		return fmt.Errorf("variant %s is not a media playlist", l.url)
	}
	l.playlist = media
	return nil
}

// load runs for the lifetime of one source: it publishes metadata, then keeps
// the forward buffer filled until ctx is cancelled.
func (e *Engine) load(ctx context.Context, gen uint64, src string) {
	defer e.wg.Done()

	levels, err := e.fetchLevels(ctx, src)
	if err != nil {
		e.fail(ctx, gen, err)
		return
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.levels = levels
	e.levelIdx = 0
	e.autoLevel = len(levels) > 1
	e.tl = newTimeline(levels[0].playlist)
	e.emitLocked(engine.Event{Type: engine.EventDurationChange})
	e.emitLocked(engine.Event{Type: engine.EventLoadedMetadata})
	if len(e.tl.buffered) == 0 {
		e.markReadyLocked()
	}
	e.mu.Unlock()

	for {
		idx, uri, ok := e.nextSegment(gen)
		if !ok {
			return
		}
		if idx < 0 {
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
				continue
			}
		}

		start := time.Now()
		n, err := e.fetchSegment(ctx, uri)
		if err != nil {
			e.fail(ctx, gen, err)
			return
		}
		e.segmentLoaded(ctx, gen, idx, n, time.Since(start))
	}
}

// nextSegment returns the index and URI of the segment to fetch next, -1 when
// the buffer is full, and ok=false once gen has been superseded.
func (e *Engine) nextSegment(gen uint64) (int, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.disposed {
		return 0, "", false
	}
	idx := e.tl.nextToFetch(e.currentTime, e.cfg.BufferAhead)
	if idx < 0 {
		return -1, "", true
	}
	l := e.levels[e.levelIdx]
	if l.playlist == nil || idx >= len(l.playlist.Segments) {
		l = e.levels[0]
	}
	return idx, manifest.Resolve(l.url, l.playlist.Segments[idx].URI), true
}

func (e *Engine) fetchSegment(ctx context.Context, uri string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < segmentRetries; attempt++ {
		resp, err := e.get(ctx, uri)
		if err == nil {
			n, err := io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if err == nil {
				return n, nil
			}
			lastErr = err
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var httpErr *HTTPError
		if errors.As(lastErr, &httpErr) && httpErr.Status >= 400 && httpErr.Status < 500 {
			break
		}
	}
	return 0, lastErr
}

// segmentLoaded marks idx buffered, reacts to the new buffer state and runs
// adaptive level selection.
func (e *Engine) segmentLoaded(ctx context.Context, gen uint64, idx int, size int64, took time.Duration) {
	e.mu.Lock()
	if gen != e.gen || e.disposed {
		e.mu.Unlock()
		return
	}
	e.tl.buffered[idx] = true
	e.markReadyLocked()

	next := -1
	if e.autoLevel && took > 0 {
		bps := float64(size*8) / took.Seconds()
		if want := chooseLevel(e.levels, bps); want != e.levelIdx {
			next = want
		}
	}
	var target *level
	if next >= 0 {
		target = e.levels[next]
	}
	e.mu.Unlock()

	if target == nil {
		return
	}
	if target.playlist == nil {
		if err := e.fetchLevelPlaylist(ctx, target); err != nil {
			e.log.Warn("level playlist unavailable", slog.String("url", target.url), slog.String("error", err.Error()))
			return
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.disposed {
		return
	}
	e.levelIdx = next
	e.emitLocked(engine.Event{Type: engine.EventLevelSwitched})
}

// markReadyLocked emits canplay the first time the playhead position is
// buffered and resumes a stalled or pending playback.
func (e *Engine) markReadyLocked() {
	if !e.tl.bufferedAt(e.currentTime) {
		return
	}
	if !e.canPlay {
		e.canPlay = true
		e.emitLocked(engine.Event{Type: engine.EventCanPlay})
	}
	if !e.paused && !e.playing && !e.ended {
		e.startPlayingLocked()
	}
}

func (e *Engine) fail(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.disposed {
		return
	}
	e.log.Error("media load failed", slog.String("source", e.source), slog.String("error", err.Error()))
	e.playing = false
	e.rejectWaitersLocked(err)
	e.emitLocked(engine.Event{Type: engine.EventError, Err: err})
}
