// Package controls is the playback UI shell. It renders nothing: it keeps the
// controls-visible flag and forwards every control action to exactly one
// player operation. Retrying a failed video is a page action and lives with
// the watch controller.
package controls

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"hls-watch/internal/manifest"
	"hls-watch/internal/player"
)

// DefaultIdle is how long controls stay visible after the last pointer
// movement while playing.
const DefaultIdle = 3 * time.Second

// Player is the part of the stream session controller the shell drives.
type Player interface {
	State() player.State
	Subscribe(fn func(player.State)) (unsubscribe func())
	TogglePlay() error
	Replay() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	ToggleMute() error
	ToggleFullscreen() error
	SwitchRendition(ctx context.Context, key string) error
}

// Shell tracks control visibility over a Player.
type Shell struct {
	p     Player
	clock clockwork.Clock
	idle  time.Duration

	mu          sync.Mutex
	visible     bool
	playing     bool
	gen         uint64
	stop        chan struct{}
	closed      bool
	unsubscribe func()
	onChange    func(visible bool)

	wg sync.WaitGroup
}

// New returns a Shell with visible controls. A zero idle uses DefaultIdle.
func New(p Player, clock clockwork.Clock, idle time.Duration) *Shell {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if idle <= 0 {
		idle = DefaultIdle
	}
	s := &Shell{p: p, clock: clock, idle: idle, visible: true}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribe = p.Subscribe(s.onState)
	s.playing = p.State().IsPlaying
	if s.playing {
		s.armLocked()
	}
	return s
}

// OnChange registers fn for visibility changes.
func (s *Shell) OnChange(fn func(visible bool)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Visible reports whether controls are shown.
func (s *Shell) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// PointerMoved shows the controls and restarts the idle timer.
func (s *Shell) PointerMoved() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.disarmLocked()
	fn := s.setVisibleLocked(true)
	if s.playing {
		s.armLocked()
	}
	s.mu.Unlock()
	if fn != nil {
		fn(true)
	}
}

// QualityOptions lists the quality menu entries; empty hides the menu.
func (s *Shell) QualityOptions() []string {
	return manifest.QualityOptions(s.p.State().Renditions)
}

func (s *Shell) TogglePlay() error { return s.p.TogglePlay() }

func (s *Shell) Replay() error { return s.p.Replay() }

func (s *Shell) Seek(seconds float64) error { return s.p.Seek(seconds) }

func (s *Shell) SetVolume(v float64) error { return s.p.SetVolume(v) }

func (s *Shell) ToggleMute() error { return s.p.ToggleMute() }

func (s *Shell) ToggleFullscreen() error { return s.p.ToggleFullscreen() }

func (s *Shell) SelectQuality(ctx context.Context, key string) error {
	return s.p.SwitchRendition(ctx, key)
}

// Close stops following the player and waits for the idle timer.
func (s *Shell) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.disarmLocked()
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	unsubscribe()
	s.wg.Wait()
}

// onState hides nothing by itself: it arms the idle timer when playback
// starts and pins the controls while paused.
func (s *Shell) onState(st player.State) {
	s.mu.Lock()
	if s.closed || st.IsPlaying == s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = st.IsPlaying
	s.disarmLocked()
	var fn func(bool)
	if s.playing {
		if s.visible {
			s.armLocked()
		}
	} else {
		fn = s.setVisibleLocked(true)
	}
	s.mu.Unlock()
	if fn != nil {
		fn(true)
	}
}

func (s *Shell) setVisibleLocked(v bool) func(bool) {
	if s.visible == v {
		return nil
	}
	s.visible = v
	return s.onChange
}

func (s *Shell) armLocked() {
	s.gen++
	gen := s.gen
	timer := s.clock.NewTimer(s.idle)
	stop := make(chan struct{})
	s.stop = stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer timer.Stop()
		select {
		case <-stop:
		case <-timer.Chan():
			s.hide(gen)
		}
	}()
}

func (s *Shell) disarmLocked() {
	s.gen++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Shell) hide(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.playing || s.closed {
		s.mu.Unlock()
		return
	}
	s.stop = nil
	fn := s.setVisibleLocked(false)
	s.mu.Unlock()
	if fn != nil {
		fn(false)
	}
}
