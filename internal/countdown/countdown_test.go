package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fires records OnFire calls.
type fires struct {
	mu       sync.Mutex
	targets  []string
	triggers []Trigger
}

func (f *fires) record(target string, trigger Trigger) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()
}

func (f *fires) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.targets)
}

func newWidget(t *testing.T) (*Widget, clockwork.FakeClock, *fires) {
	t.Helper()
	clk := clockwork.NewFakeClock()
	f := &fires{}
	w := New(Config{Clock: clk, OnFire: f.record})
	t.Cleanup(w.Close)
	return w, clk, f
}

func TestWidget_fires_after_duration(t *testing.T) {
	w, clk, f := newWidget(t)
	w.Show("next", 5*time.Second)

	s := w.Snapshot()
	assert.Equal(t, Running, s.State)
	assert.Equal(t, 5*time.Second, s.Remaining)
	assert.Equal(t, "next", s.Target)

	clk.Advance(4 * time.Second)
	assert.Equal(t, time.Second, w.Snapshot().Remaining)
	assert.InDelta(t, 0.8, w.Snapshot().Progress, 0.001)

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"next"}, f.targets)
	assert.Equal(t, []Trigger{TriggerTimer}, f.triggers)
	assert.Equal(t, Fired, w.Snapshot().State)
	assert.Equal(t, time.Duration(0), w.Snapshot().Remaining)
}

func TestWidget_pause_resume_keeps_remaining(t *testing.T) {
	w, clk, f := newWidget(t)
	w.Show("next", 5*time.Second)

	clk.Advance(2 * time.Second)
	w.SetHostPlaying(false)
	clk.Advance(10 * time.Second)

	s := w.Snapshot()
	assert.Equal(t, Paused, s.State)
	assert.Equal(t, 3*time.Second, s.Remaining)

	w.SetHostPlaying(true)
	s = w.Snapshot()
	assert.Equal(t, Running, s.State)
	assert.Equal(t, 3*time.Second, s.Remaining)
	assert.Zero(t, f.count())

	clk.Advance(2900 * time.Millisecond)
	assert.Never(t, func() bool { return f.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	clk.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, time.Millisecond)
}

func TestWidget_remaining_never_increases_while_running(t *testing.T) {
	w, clk, _ := newWidget(t)
	w.Show("next", 5*time.Second)
	last := w.Snapshot().Remaining
	for i := 0; i < 8; i++ {
		clk.Advance(500 * time.Millisecond)
		r := w.Snapshot().Remaining
		assert.LessOrEqual(t, r, last)
		last = r
	}
}

func TestWidget_shown_while_host_paused(t *testing.T) {
	w, clk, _ := newWidget(t)
	w.SetHostPlaying(false)
	w.Show("next", 5*time.Second)
	clk.Advance(time.Minute)

	s := w.Snapshot()
	assert.Equal(t, Paused, s.State)
	assert.Equal(t, 5*time.Second, s.Remaining)
}

func TestWidget_PlayNow_fires_once(t *testing.T) {
	w, clk, f := newWidget(t)
	w.Show("next", 5*time.Second)
	clk.Advance(time.Second)

	require.NoError(t, w.PlayNow())
	assert.ErrorIs(t, w.PlayNow(), ErrNotRunning)

	clk.Advance(10 * time.Second)
	assert.Never(t, func() bool { return f.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []Trigger{TriggerManual}, f.triggers)
}

func TestWidget_PlayNow_racing_expiry_fires_once(t *testing.T) {
	for i := 0; i < 50; i++ {
		w, clk, f := newWidget(t)
		w.Show("next", time.Second)

		clk.Advance(time.Second)
		_ = w.PlayNow()

		require.Eventually(t, func() bool { return f.count() == 1 }, time.Second, time.Millisecond)
		assert.Never(t, func() bool { return f.count() > 1 }, 10*time.Millisecond, time.Millisecond)
		w.Close()
	}
}

func TestWidget_Hide_cancels(t *testing.T) {
	w, clk, f := newWidget(t)
	w.Show("next", 5*time.Second)
	w.Hide()
	clk.Advance(10 * time.Second)

	assert.Never(t, func() bool { return f.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, Hidden, w.Snapshot().State)
	assert.ErrorIs(t, w.PlayNow(), ErrNotRunning)
}

func TestWidget_Show_resets_for_new_target(t *testing.T) {
	w, clk, _ := newWidget(t)
	w.Show("a", 5*time.Second)
	clk.Advance(3 * time.Second)

	w.Show("a", 5*time.Second)
	assert.Equal(t, 2*time.Second, w.Snapshot().Remaining)

	w.Show("b", 5*time.Second)
	s := w.Snapshot()
	assert.Equal(t, "b", s.Target)
	assert.Equal(t, 5*time.Second, s.Remaining)
}

func TestWidget_ticks_only_while_running(t *testing.T) {
	clk := clockwork.NewFakeClock()
	var mu sync.Mutex
	var ticks []Snapshot
	w := New(Config{Clock: clk, TickInterval: time.Second, OnTick: func(s Snapshot) {
		mu.Lock()
		ticks = append(ticks, s)
		mu.Unlock()
	}})
	defer w.Close()
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks)
	}

	w.Show("next", 10*time.Second)
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return count() == 1 }, time.Second, time.Millisecond)

	w.SetHostPlaying(false)
	clk.Advance(5 * time.Second)
	assert.Never(t, func() bool { return count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, Running, ticks[0].State)
	assert.InDelta(t, 0.1, ticks[0].Progress, 0.001)
	mu.Unlock()
}

func TestWidget_Close_stops_timers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clk := clockwork.NewFakeClock()
	w := New(Config{Clock: clk, OnTick: func(Snapshot) {}})
	w.Show("next", 5*time.Second)
	w.Close()
	w.Close()

	w.Show("other", 5*time.Second)
	assert.Equal(t, Hidden, w.Snapshot().State)
}
