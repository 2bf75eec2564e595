// Package enginetest provides a scriptable engine.Engine for controller tests.
// Events are delivered synchronously by Emit, so tests decide exactly when the
// engine reports progress.
package enginetest

import (
	"context"
	"sync"

	"hls-watch/internal/engine"
)

// Engine is a fake engine.Engine.
type Engine struct {
	Options engine.Options

	mu          sync.Mutex
	sources     []string
	listeners   map[int]func(engine.Event)
	nextID      int
	hook        engine.RequestHook
	paused      bool
	currentTime float64
	volume      float64
	muted       bool
	fullscreen  bool
	activated   bool
	seeks       []float64
	plays       int
	disposals   int
	emitted     map[engine.EventType]int

	// PlayFunc decides the result of Play. The default succeeds and emits
	// play and playing.
	PlayFunc func(ctx context.Context) error
}

var _ engine.Engine = (*Engine)(nil)

// New returns a paused fake engine.
func New(opts engine.Options) *Engine {
	return &Engine{
		Options:   opts,
		listeners: make(map[int]func(engine.Event)),
		emitted:   make(map[engine.EventType]int),
		paused:    true,
		volume:    1,
		muted:     opts.Muted,
	}
}

// Factory returns an engine.Factory that records every engine it creates.
func Factory(created *[]*Engine) engine.Factory {
	var mu sync.Mutex
	return func(opts engine.Options) (engine.Engine, error) {
		e := New(opts)
		mu.Lock()
		*created = append(*created, e)
		mu.Unlock()
		return e, nil
	}
}

func (e *Engine) SetSource(url string) {
	e.mu.Lock()
	e.sources = append(e.sources, url)
	e.currentTime = 0
	e.paused = true
	e.mu.Unlock()
}

func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	e.plays++
	fn := e.PlayFunc
	e.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.Emit(engine.Event{Type: engine.EventPlay})
	e.Emit(engine.Event{Type: engine.EventPlaying})
	return nil
}

func (e *Engine) Pause() {
	e.mu.Lock()
	wasPaused := e.paused
	e.paused = true
	e.mu.Unlock()
	if !wasPaused {
		e.Emit(engine.Event{Type: engine.EventPause})
	}
}

func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	e.seeks = append(e.seeks, seconds)
	e.currentTime = seconds
	e.mu.Unlock()
}

func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	e.Emit(engine.Event{Type: engine.EventVolumeChange})
}

func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()
	e.Emit(engine.Event{Type: engine.EventVolumeChange})
}

func (e *Engine) SetFullscreen(on bool) error {
	e.mu.Lock()
	e.fullscreen = on
	e.mu.Unlock()
	e.Emit(engine.Event{Type: engine.EventFullscreenChange})
	return nil
}

func (e *Engine) Activate() {
	e.mu.Lock()
	e.activated = true
	e.mu.Unlock()
}

func (e *Engine) Subscribe(fn func(engine.Event)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Engine) Backend() engine.Backend { return backend{e} }

func (e *Engine) Dispose() {
	e.mu.Lock()
	e.disposals++
	e.mu.Unlock()
}

type backend struct{ e *Engine }

func (b backend) SetRequestHook(h engine.RequestHook) {
	b.e.mu.Lock()
	b.e.hook = h
	b.e.mu.Unlock()
}

// Emit delivers ev to all listeners on the calling goroutine. Unset fields are
// filled from the fake's current source and playback values.
func (e *Engine) Emit(ev engine.Event) {
	e.mu.Lock()
	if ev.Source == "" && len(e.sources) > 0 {
		ev.Source = e.sources[len(e.sources)-1]
	}
	if ev.CurrentTime == 0 {
		ev.CurrentTime = e.currentTime
	}
	if ev.Type == engine.EventVolumeChange {
		ev.Volume = e.volume
		ev.Muted = e.muted
	}
	if ev.Type == engine.EventFullscreenChange {
		ev.Fullscreen = e.fullscreen
	}
	fns := make([]func(engine.Event), 0, len(e.listeners))
	for id := 0; id < e.nextID; id++ {
		if fn, ok := e.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
	e.mu.Lock()
	e.emitted[ev.Type]++
	e.mu.Unlock()
}

// Emitted counts the events of typ whose delivery has completed.
func (e *Engine) Emitted(typ engine.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emitted[typ]
}

// Advance sets the playhead and emits timeupdate.
func (e *Engine) Advance(t float64) {
	e.mu.Lock()
	e.currentTime = t
	e.mu.Unlock()
	e.Emit(engine.Event{Type: engine.EventTimeUpdate, CurrentTime: t})
}

// Sources returns every URL passed to SetSource, in order.
func (e *Engine) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sources...)
}

// LastSource returns the current source URL.
func (e *Engine) LastSource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sources) == 0 {
		return ""
	}
	return e.sources[len(e.sources)-1]
}

func (e *Engine) Seeks() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.seeks...)
}

func (e *Engine) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

func (e *Engine) Disposals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposals
}

func (e *Engine) Activated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activated
}

func (e *Engine) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// RequestHook returns the hook installed on the backend.
func (e *Engine) RequestHook() engine.RequestHook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hook
}

func (e *Engine) SetPlayFunc(fn func(ctx context.Context) error) {
	e.mu.Lock()
	e.PlayFunc = fn
	e.mu.Unlock()
}
