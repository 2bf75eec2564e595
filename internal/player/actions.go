package player

import (
	"context"

	"hls-watch/internal/engine"
)

// engineLocked returns the engine or the error explaining why there is none.
// Caller must hold c.mu.
func (c *Controller) engineLocked() (engine.Engine, error) {
	if c.disposed {
		return nil, ErrDisposed
	}
	if c.eng == nil {
		return nil, ErrNotInitialized
	}
	return c.eng, nil
}

// Play starts playback on behalf of the user and waits until it has started.
// Expected races are swallowed and reported as success.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	eng.Activate()
	err = eng.Play(ctx)
	if IsExpectedRace(err) {
		c.playResult(err)
		return nil
	}
	return err
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	eng.Pause()
	return nil
}

// TogglePlay pauses a playing video, replays an ended one and otherwise starts
// playback in the background.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	playing, ended := c.state.IsPlaying, c.state.HasEnded
	c.mu.Unlock()

	eng.Activate()
	switch {
	case ended:
		return c.Replay()
	case playing:
		eng.Pause()
	default:
		c.mu.Lock()
		if !c.disposed {
			c.playLocked(eng)
		}
		c.mu.Unlock()
	}
	return nil
}

// Replay clears the ended flag and plays from the start.
func (c *Controller) Replay() error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.HasEnded = false
	c.state.CurrentTime = 0
	eng.Seek(0)
	eng.Activate()
	c.playLocked(eng)
	var n notice
	c.changedLocked(&n)
	c.mu.Unlock()
	n.deliver()
	return nil
}

// Seek moves the playhead, clamped to [0, duration]. During a rendition switch
// it moves the position that will be restored.
func (c *Controller) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	eng, err := c.engineLocked()
	if err != nil {
		return err
	}
	if seconds < 0 {
		seconds = 0
	}
	if d := c.state.Duration; d > 0 && seconds > d {
		seconds = d
	}
	if c.restore != nil {
		c.restore.time = seconds
		c.state.CurrentTime = seconds
		return nil
	}
	eng.Seek(seconds)
	return nil
}

// SetVolume sets the volume, clamped to [0, 1].
func (c *Controller) SetVolume(v float64) error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	eng.SetVolume(v)
	return nil
}

func (c *Controller) SetMuted(muted bool) error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	eng.SetMuted(muted)
	return nil
}

func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	muted := c.state.Muted
	c.mu.Unlock()
	return c.SetMuted(!muted)
}

func (c *Controller) ToggleFullscreen() error {
	c.mu.Lock()
	eng, err := c.engineLocked()
	on := !c.state.Fullscreen
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return eng.SetFullscreen(on)
}
