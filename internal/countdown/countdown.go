// Package countdown implements the "up next" autoplay countdown. Elapsed time
// comes from a monotonic clock and stops while the host player is not
// playing; a paused countdown resumes from the same remaining time.
package countdown

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"hls-watch/internal/platform/logger"
	"hls-watch/internal/platform/metrics"
)

// DefaultDuration is used when Show is given no duration.
const DefaultDuration = 5 * time.Second

// ErrNotRunning is returned by PlayNow when no countdown is shown.
var ErrNotRunning = errors.New("countdown not running")

// State is the widget state.
type State string

const (
	Hidden  State = "hidden"
	Running State = "running"
	Paused  State = "paused"
	Fired   State = "fired"
)

// Trigger says what fired the countdown.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
)

// Snapshot is the observable state of the widget.
type Snapshot struct {
	State     State         `json:"state"`
	Target    string        `json:"target,omitempty"`
	Remaining time.Duration `json:"remaining"`
	// Progress is elapsed/duration in [0, 1].
	Progress float64 `json:"progress"`
}

// Config configures a Widget.
type Config struct {
	Clock clockwork.Clock
	// OnFire is called exactly once per shown countdown, outside the widget lock.
	OnFire func(target string, trigger Trigger)
	// OnTick, if set, receives a snapshot every TickInterval while running.
	OnTick       func(Snapshot)
	TickInterval time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Widget is the autoplay countdown. It is safe for concurrent use.
type Widget struct {
	cfg Config
	log *slog.Logger

	mu          sync.Mutex
	state       State
	target      string
	duration    time.Duration
	start       time.Time
	pausedAt    time.Time
	hostPlaying bool
	gen         uint64
	stop        chan struct{}
	closed      bool

	wg sync.WaitGroup
}

// New returns a hidden widget. The host is assumed to be playing until told
// otherwise.
func New(cfg Config) *Widget {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Widget{cfg: cfg, log: cfg.Logger, state: Hidden, hostPlaying: true}
}

// Show starts a countdown toward target. Showing the target that is already
// counting down does nothing; any other call resets the countdown.
func (w *Widget) Show(target string, d time.Duration) {
	if d <= 0 {
		d = DefaultDuration
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if (w.state == Running || w.state == Paused) && w.target == target {
		return
	}
	w.stopLocked()
	w.gen++
	w.target = target
	w.duration = d
	w.start = w.cfg.Clock.Now()
	if w.hostPlaying {
		w.state = Running
		w.runLocked()
	} else {
		w.state = Paused
		w.pausedAt = w.start
	}
	w.log.Debug("countdown shown", slog.String("target", target), slog.Duration("duration", d))
}

// SetHostPlaying pauses the countdown when the host stops playing and resumes
// it when playback continues.
func (w *Widget) SetHostPlaying(playing bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hostPlaying = playing
	if w.closed {
		return
	}
	now := w.cfg.Clock.Now()
	switch {
	case !playing && w.state == Running:
		w.stopLocked()
		w.gen++
		w.state = Paused
		w.pausedAt = now
	case playing && w.state == Paused:
		// Shift the start reference by the time spent paused.
		w.start = w.start.Add(now.Sub(w.pausedAt))
		w.gen++
		w.state = Running
		w.runLocked()
	}
}

// PlayNow fires the countdown immediately. It returns ErrNotRunning unless a
// countdown is running or paused, so a countdown can never fire twice.
func (w *Widget) PlayNow() error {
	w.mu.Lock()
	if w.state != Running && w.state != Paused {
		w.mu.Unlock()
		return ErrNotRunning
	}
	target := w.fireLocked()
	w.mu.Unlock()

	w.notify(target, TriggerManual)
	return nil
}

// Hide cancels the countdown.
func (w *Widget) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Hidden {
		return
	}
	w.stopLocked()
	w.gen++
	w.state = Hidden
	w.target = ""
}

// Snapshot returns the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked(w.cfg.Clock.Now())
}

// Close hides the widget and waits for its timers to stop. Later calls do
// nothing.
func (w *Widget) Close() {
	w.mu.Lock()
	w.closed = true
	w.stopLocked()
	w.gen++
	w.state = Hidden
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Widget) elapsedLocked(now time.Time) time.Duration {
	switch w.state {
	case Running:
		return now.Sub(w.start)
	case Paused:
		return w.pausedAt.Sub(w.start)
	case Fired:
		return w.duration
	}
	return 0
}

func (w *Widget) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{State: w.state, Target: w.target}
	if w.state == Hidden || w.duration <= 0 {
		return s
	}
	elapsed := w.elapsedLocked(now)
	if elapsed > w.duration {
		elapsed = w.duration
	}
	if elapsed < 0 {
		elapsed = 0
	}
	s.Remaining = w.duration - elapsed
	s.Progress = float64(elapsed) / float64(w.duration)
	return s
}

// runLocked arms the fire timer and the progress ticker for the remaining
// time. Caller must hold w.mu with w.state == Running.
func (w *Widget) runLocked() {
	remaining := w.duration - w.cfg.Clock.Now().Sub(w.start)
	if remaining < 0 {
		remaining = 0
	}
	timer := w.cfg.Clock.NewTimer(remaining)
	var ticker clockwork.Ticker
	if w.cfg.OnTick != nil {
		ticker = w.cfg.Clock.NewTicker(w.cfg.TickInterval)
	}
	stop := make(chan struct{})
	w.stop = stop
	w.wg.Add(1)
	go w.run(w.gen, timer, ticker, stop)
}

func (w *Widget) run(gen uint64, timer clockwork.Timer, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer w.wg.Done()
	defer timer.Stop()
	var tick <-chan time.Time
	if ticker != nil {
		defer ticker.Stop()
		tick = ticker.Chan()
	}
	for {
		select {
		case <-stop:
			return
		case <-timer.Chan():
			w.expire(gen)
			return
		case <-tick:
			w.progress(gen)
		}
	}
}

func (w *Widget) expire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.state != Running {
		w.mu.Unlock()
		return
	}
	target := w.fireLocked()
	w.mu.Unlock()

	w.notify(target, TriggerTimer)
}

func (w *Widget) progress(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.state != Running {
		w.mu.Unlock()
		return
	}
	s := w.snapshotLocked(w.cfg.Clock.Now())
	w.mu.Unlock()

	w.cfg.OnTick(s)
}

// fireLocked is the single transition into Fired.
func (w *Widget) fireLocked() string {
	w.stopLocked()
	w.gen++
	w.state = Fired
	return w.target
}

func (w *Widget) notify(target string, trigger Trigger) {
	w.cfg.Metrics.IncAutoplayFired(string(trigger))
	w.log.Info("autoplay fired", slog.String("target", target), slog.String("trigger", string(trigger)))
	if w.cfg.OnFire != nil {
		w.cfg.OnFire(target, trigger)
	}
}

func (w *Widget) stopLocked() {
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}
