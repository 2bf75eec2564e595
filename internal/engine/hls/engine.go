// Package hls is a headless HLS engine. It fetches master and media playlists,
// downloads segments ahead of a virtual playhead, adapts the variant to the
// measured throughput and reports progress as media events. It does not
// decode: "playing" means the playhead advances over buffered media.
package hls

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"hls-watch/internal/engine"
	"hls-watch/internal/platform/logger"
)

const (
	defaultTick        = 250 * time.Millisecond
	defaultBufferAhead = 30.0
	segmentRetries     = 3
)

// Config holds the dependencies shared by all engine instances.
type Config struct {
	Client *http.Client
	Clock  clockwork.Clock
	Logger *slog.Logger
	// Tick is the playhead update interval.
	Tick time.Duration
	// BufferAhead is how many seconds of media to keep buffered past the playhead.
	BufferAhead float64
}

func (c Config) withDefaults() Config {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = logger.Discard()
	}
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.BufferAhead <= 0 {
		c.BufferAhead = defaultBufferAhead
	}
	return c
}

// NewFactory returns an engine.Factory producing headless engines.
func NewFactory(cfg Config) engine.Factory {
	return func(opts engine.Options) (engine.Engine, error) {
		return New(cfg, opts), nil
	}
}

// loader is the per-instance request backend.
type loader struct {
	mu   sync.RWMutex
	hook engine.RequestHook
}

func (l *loader) SetRequestHook(h engine.RequestHook) {
	l.mu.Lock()
	l.hook = h
	l.mu.Unlock()
}

func (l *loader) current() engine.RequestHook {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hook
}

// Engine is a headless engine.Engine.
type Engine struct {
	cfg     Config
	opts    engine.Options
	backend *loader
	log     *slog.Logger

	mu          sync.Mutex
	source      string
	gen         uint64
	cancelLoad  context.CancelFunc
	levels      []*level
	levelIdx    int
	autoLevel   bool
	tl          *timeline
	paused      bool
	playing     bool
	waiting     bool
	canPlay     bool
	ended       bool
	currentTime float64
	volume      float64
	muted       bool
	fullscreen  bool
	activated   bool
	waiters     []chan error
	disposed    bool

	events *dispatcher
	wake   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine bound to opts.Container and starts its playhead and
// event loop goroutines. Dispose stops them.
func New(cfg Config, opts engine.Options) *Engine {
	cfg = cfg.withDefaults()
	if opts.Policy == "" {
		opts.Policy = engine.PolicyMutedOnly
	}
	e := &Engine{
		cfg:     cfg,
		opts:    opts,
		backend: &loader{},
		log:     cfg.Logger.With(slog.String("container", opts.Container)),
		paused:  true,
		volume:  1,
		muted:   opts.Muted,
		events:  newDispatcher(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.events.run(e.done)
	}()
	ticker := cfg.Clock.NewTicker(cfg.Tick)
	go e.runPlayhead(ticker, cfg.Clock.Now())
	return e
}

// Backend returns the per-instance request backend.
func (e *Engine) Backend() engine.Backend { return e.backend }

// Subscribe registers fn for all subsequent events.
func (e *Engine) Subscribe(fn func(engine.Event)) func() {
	return e.events.subscribe(fn)
}

// SetSource discards everything belonging to the previous source and starts
// loading url.
func (e *Engine) SetSource(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.rejectWaitersLocked(engine.ErrAborted)

	hadSource := e.source != ""
	e.gen++
	e.source = url
	e.levels = nil
	e.levelIdx = 0
	e.autoLevel = true
	e.tl = nil
	e.paused = true
	e.playing = false
	e.waiting = false
	e.canPlay = false
	e.ended = false
	e.currentTime = 0

	if hadSource {
		e.emitLocked(engine.Event{Type: engine.EventEmptied})
	}
	if url == "" {
		e.cancelLoad = nil
		return
	}
	e.emitLocked(engine.Event{Type: engine.EventLoadStart})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancelLoad = cancel
	e.wg.Add(1)
	go e.load(ctx, e.gen, url)
}

// Play starts playback. It blocks until the playhead can advance.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return engine.ErrDisposed
	}
	if e.source == "" {
		e.mu.Unlock()
		return engine.ErrNoSource
	}
	if !e.opts.Policy.Allowed(e.muted, e.activated) {
		e.mu.Unlock()
		return engine.ErrNotAllowed
	}
	if e.ended {
		e.ended = false
		e.currentTime = 0
		e.wakeLoaderLocked()
	}
	if e.paused {
		e.paused = false
		e.emitLocked(engine.Event{Type: engine.EventPlay})
	}
	if e.playing {
		e.mu.Unlock()
		return nil
	}
	if e.canPlay && e.tl != nil && e.tl.bufferedAt(e.currentTime) {
		e.startPlayingLocked()
		e.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops the playhead and rejects pending plays.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || e.paused {
		return
	}
	e.paused = true
	e.playing = false
	e.rejectWaitersLocked(engine.ErrAborted)
	e.emitLocked(engine.Event{Type: engine.EventPause})
}

// Seek moves the playhead, clamped to the media duration.
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || e.source == "" {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if e.tl != nil && seconds > e.tl.total {
		seconds = e.tl.total
	}
	e.emitLocked(engine.Event{Type: engine.EventSeeking})
	e.currentTime = seconds
	e.ended = false
	e.emitLocked(engine.Event{Type: engine.EventTimeUpdate})
	e.emitLocked(engine.Event{Type: engine.EventSeeked})

	switch {
	case e.tl == nil:
	case !e.tl.bufferedAt(seconds):
		if !e.paused && !e.waiting {
			e.playing = false
			e.waiting = true
			e.emitLocked(engine.Event{Type: engine.EventWaiting})
		}
	default:
		e.markReadyLocked()
	}
	e.wakeLoaderLocked()
}

func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if e.disposed || v == e.volume {
		return
	}
	e.volume = v
	e.emitLocked(engine.Event{Type: engine.EventVolumeChange})
}

func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || muted == e.muted {
		return
	}
	e.muted = muted
	e.emitLocked(engine.Event{Type: engine.EventVolumeChange})
}

// SetFullscreen toggles presentation mode of the bound container.
func (e *Engine) SetFullscreen(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return engine.ErrDisposed
	}
	if e.opts.Container == "" {
		return fmt.Errorf("fullscreen: engine has no container")
	}
	if on == e.fullscreen {
		return nil
	}
	e.fullscreen = on
	e.emitLocked(engine.Event{Type: engine.EventFullscreenChange})
	return nil
}

// Activate records a user activation.
func (e *Engine) Activate() {
	e.mu.Lock()
	e.activated = true
	e.mu.Unlock()
}

// Dispose stops loading, the playhead and the event loop. Pending plays are
// rejected. It must not be called from an event listener.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.rejectWaitersLocked(engine.ErrAborted)
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()
}

// emitLocked stamps ev with the current source and playback values and queues
// it for delivery. Caller must hold e.mu.
func (e *Engine) emitLocked(ev engine.Event) {
	ev.Source = e.source
	ev.CurrentTime = e.currentTime
	if e.tl != nil {
		ev.Duration = e.tl.total
	}
	ev.Volume = e.volume
	ev.Muted = e.muted
	ev.Fullscreen = e.fullscreen
	ev.Level = e.levelIdx
	e.events.push(ev)
}

func (e *Engine) rejectWaitersLocked(err error) {
	for _, ch := range e.waiters {
		ch <- err
	}
	e.waiters = nil
}

func (e *Engine) startPlayingLocked() {
	e.playing = true
	e.waiting = false
	for _, ch := range e.waiters {
		ch <- nil
	}
	e.waiters = nil
	e.emitLocked(engine.Event{Type: engine.EventPlaying})
}

func (e *Engine) wakeLoaderLocked() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// runPlayhead advances the playhead on every tick while playing.
func (e *Engine) runPlayhead(ticker clockwork.Ticker, last time.Time) {
	defer e.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.Chan():
			now := e.cfg.Clock.Now()
			e.advance(now.Sub(last).Seconds())
			last = now
		}
	}
}

func (e *Engine) advance(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || !e.playing || e.tl == nil {
		return
	}

	e.currentTime += dt
	if e.tl.ended && e.currentTime >= e.tl.total {
		e.currentTime = e.tl.total
		e.playing = false
		e.paused = true
		e.ended = true
		e.emitLocked(engine.Event{Type: engine.EventTimeUpdate})
		e.emitLocked(engine.Event{Type: engine.EventPause})
		e.emitLocked(engine.Event{Type: engine.EventEnded})
		return
	}
	if !e.tl.bufferedAt(e.currentTime) {
		e.playing = false
		e.waiting = true
		e.emitLocked(engine.Event{Type: engine.EventWaiting})
	}
	e.emitLocked(engine.Event{Type: engine.EventTimeUpdate})
	e.wakeLoaderLocked()
}
