// Package player is the stream session controller: it owns the single media
// engine of a mounted player, resolves what to play, installs the request
// interceptor, handles quality switching and republishes engine events as an
// immutable State.
package player

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hls-watch/internal/engine"
	"hls-watch/internal/fetch"
	"hls-watch/internal/manifest"
	"hls-watch/internal/platform/logger"
	"hls-watch/internal/platform/metrics"
)

// Config holds the collaborators of a Controller.
type Config struct {
	Factory  engine.Factory
	Resolver AssetResolver
	// Interceptor is installed on every engine and on the side-file client.
	Interceptor *fetch.Interceptor
	// Client fetches the renditions side-file. Defaults to a client using the
	// interceptor transport.
	Client *http.Client
	// StorageBaseURL prefixes bare storage paths.
	StorageBaseURL string
	Policy         engine.AutoplayPolicy
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// restorePoint is the position and intent captured before a rendition switch.
type restorePoint struct {
	time float64
	play bool
}

// Controller is the stream session controller. It is safe for concurrent use.
type Controller struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	eng         engine.Engine
	unsubscribe func()
	opts        InitOptions
	// input is the latest Load request, live the request behind source.
	input  PlaybackSource
	live   PlaybackSource
	source PlaybackSource
	// url is the engine source; events carrying any other source are dropped.
	url          string
	gen          uint64
	loadSeq      uint64
	readyEmitted bool
	restore      *restorePoint
	state        State
	disposed     bool

	nextID    int
	listeners map[int]func(State)
	ready     map[int]func(identity string)
}

// New returns a Controller. Initialize must be called before Load.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	client := cfg.Client
	if client == nil {
		client = cfg.Interceptor.Client(nil)
		client.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:       cfg,
		log:       cfg.Logger.With(slog.String("player", uuid.NewString())),
		metrics:   cfg.Metrics,
		client:    client,
		ctx:       ctx,
		cancel:    cancel,
		state:     State{Status: StatusIdle, ActiveRendition: manifest.Auto, Volume: 1},
		listeners: make(map[int]func(State)),
		ready:     make(map[int]func(string)),
	}
}

// Initialize creates the engine bound to container and subscribes to its
// events. Calling it again while an engine exists does nothing.
func (c *Controller) Initialize(container string, opts InitOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.eng != nil {
		return nil
	}

	hook := c.cfg.Interceptor.Hook()
	eng, err := c.cfg.Factory(engine.Options{
		Container:   container,
		Muted:       opts.Muted,
		Autoplay:    opts.Autoplay,
		RequestHook: hook,
		Policy:      c.cfg.Policy,
	})
	if err != nil {
		return err
	}
	// The library-level hook is not guaranteed to reach the instance backend,
	// so it is installed there as well.
	eng.Backend().SetRequestHook(hook)

	c.eng = eng
	c.opts = opts
	c.unsubscribe = eng.Subscribe(c.onEvent)
	c.state.Muted = opts.Muted
	c.log.Debug("engine initialized", slog.String("container", container), slog.Bool("autoplay", opts.Autoplay))
	return nil
}

// Dispose tears the engine down once. Later calls do nothing. It must not be
// called from a state or readiness listener.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.gen++
	eng, unsubscribe := c.eng, c.unsubscribe
	c.eng = nil
	c.unsubscribe = nil
	c.cancel()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if eng != nil {
		eng.Dispose()
	}
	c.wg.Wait()
	c.log.Debug("player disposed")
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Source returns the current playback source.
func (c *Controller) Source() PlaybackSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Subscribe registers fn for every state change. Listeners may be called from
// different goroutines; State is authoritative.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// OnReady registers fn for readiness signals. A signal is sent once per load,
// on the first canplay or playing event of that source, and carries the
// identity passed to Load.
func (c *Controller) OnReady(fn func(identity string)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.ready[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.ready, id)
		c.mu.Unlock()
	}
}

// notice is what must be delivered to listeners once c.mu is released.
type notice struct {
	state    State
	fns      []func(State)
	readyID  string
	readyFns []func(string)
	hasState bool
	hasReady bool
}

// changedLocked snapshots the state for delivery. Caller must hold c.mu.
func (c *Controller) changedLocked(n *notice) {
	n.hasState = true
	n.state = c.state
	n.fns = n.fns[:0]
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			n.fns = append(n.fns, fn)
		}
	}
}

func (c *Controller) readyLocked(n *notice) {
	if c.readyEmitted {
		return
	}
	c.readyEmitted = true
	n.hasReady = true
	n.readyID = c.source.Identity
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.ready[id]; ok {
			n.readyFns = append(n.readyFns, fn)
		}
	}
}

func (n *notice) deliver() {
	if n.hasState {
		for _, fn := range n.fns {
			fn(n.state)
		}
	}
	if n.hasReady {
		for _, fn := range n.readyFns {
			fn(n.readyID)
		}
	}
}

// goLocked runs fn in a goroutine that Dispose waits for. Caller must hold
// c.mu and have checked that the controller is not disposed.
func (c *Controller) goLocked(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// playLocked starts playback in the background. Rejections caused by newer
// requests or by the autoplay policy are swallowed.
func (c *Controller) playLocked(eng engine.Engine) {
	c.goLocked(func() {
		c.playResult(eng.Play(c.ctx))
	})
}

func (c *Controller) playResult(err error) {
	switch {
	case err == nil:
	case IsExpectedRace(err):
		c.metrics.IncExpectedRace(raceReason(err))
		c.log.Debug("play rejected", slog.String("reason", raceReason(err)))
	case c.ctx.Err() != nil:
	default:
		// Engine failures are reported through the error event.
		c.log.Debug("play failed", slog.String("error", err.Error()))
	}
}
