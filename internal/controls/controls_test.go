package controls

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hls-watch/internal/manifest"
	"hls-watch/internal/player"
)

// stubPlayer records operations and lets tests push state.
type stubPlayer struct {
	mu        sync.Mutex
	state     player.State
	listeners []func(player.State)
	calls     []string
}

func (p *stubPlayer) State() player.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *stubPlayer) Subscribe(fn func(player.State)) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	idx := len(p.listeners) - 1
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.listeners[idx] = nil
		p.mu.Unlock()
	}
}

func (p *stubPlayer) push(st player.State) {
	p.mu.Lock()
	p.state = st
	fns := make([]func(player.State), len(p.listeners))
	copy(fns, p.listeners)
	p.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(st)
		}
	}
}

func (p *stubPlayer) call(name string) error {
	p.mu.Lock()
	p.calls = append(p.calls, name)
	p.mu.Unlock()
	return nil
}

func (p *stubPlayer) TogglePlay() error { return p.call("TogglePlay") }
func (p *stubPlayer) Replay() error { return p.call("Replay") }
func (p *stubPlayer) Seek(float64) error { return p.call("Seek") }
func (p *stubPlayer) SetVolume(float64) error { return p.call("SetVolume") }
func (p *stubPlayer) ToggleMute() error { return p.call("ToggleMute") }
func (p *stubPlayer) ToggleFullscreen() error { return p.call("ToggleFullscreen") }
func (p *stubPlayer) SwitchRendition(context.Context, string) error { return p.call("SwitchRendition") }

func (p *stubPlayer) getCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func newShell(t *testing.T) (*Shell, *stubPlayer, clockwork.FakeClock) {
	t.Helper()
	p := &stubPlayer{}
	clk := clockwork.NewFakeClock()
	s := New(p, clk, 3*time.Second)
	t.Cleanup(s.Close)
	return s, p, clk
}

func TestShell_hides_after_idle_while_playing(t *testing.T) {
	s, p, clk := newShell(t)
	require.True(t, s.Visible())

	p.push(player.State{IsPlaying: true})
	clk.Advance(2 * time.Second)
	assert.True(t, s.Visible())

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return !s.Visible() }, time.Second, time.Millisecond)

	s.PointerMoved()
	assert.True(t, s.Visible())
	clk.Advance(2 * time.Second)
	s.PointerMoved()
	clk.Advance(2 * time.Second)
	assert.Never(t, func() bool { return !s.Visible() }, 30*time.Millisecond, 5*time.Millisecond)

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return !s.Visible() }, time.Second, time.Millisecond)
}

func TestShell_never_hides_while_paused(t *testing.T) {
	s, p, clk := newShell(t)
	p.push(player.State{IsPlaying: true})
	clk.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return !s.Visible() }, time.Second, time.Millisecond)

	p.push(player.State{IsPlaying: false})
	assert.True(t, s.Visible())

	s.PointerMoved()
	clk.Advance(time.Minute)
	assert.Never(t, func() bool { return !s.Visible() }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestShell_actions_map_to_one_operation(t *testing.T) {
	s, p, _ := newShell(t)
	ctx := context.Background()

	require.NoError(t, s.TogglePlay())
	require.NoError(t, s.Seek(10))
	require.NoError(t, s.SetVolume(0.5))
	require.NoError(t, s.ToggleMute())
	require.NoError(t, s.ToggleFullscreen())
	require.NoError(t, s.SelectQuality(ctx, "720p"))
	require.NoError(t, s.Replay())

	assert.Equal(t, []string{
		"TogglePlay", "Seek", "SetVolume", "ToggleMute", "ToggleFullscreen",
		"SwitchRendition", "Replay",
	}, p.getCalls())
}

func TestShell_QualityOptions(t *testing.T) {
	s, p, _ := newShell(t)
	assert.Empty(t, s.QualityOptions())

	p.push(player.State{Renditions: []manifest.Rendition{{Key: "720p", Height: 720}, {Key: "240p", Height: 240}}})
	assert.Equal(t, []string{manifest.Auto, "240p", "720p"}, s.QualityOptions())
}

func TestShell_OnChange(t *testing.T) {
	s, p, clk := newShell(t)
	changes := make(chan bool, 4)
	s.OnChange(func(v bool) { changes <- v })

	p.push(player.State{IsPlaying: true})
	clk.Advance(3 * time.Second)
	assert.False(t, <-changes)
	s.PointerMoved()
	assert.True(t, <-changes)
}

func TestShell_Close_releases_timer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := &stubPlayer{}
	s := New(p, clockwork.NewFakeClock(), time.Second)
	p.push(player.State{IsPlaying: true})
	s.Close()
	s.Close()

	p.push(player.State{IsPlaying: false})
	s.PointerMoved()
}
