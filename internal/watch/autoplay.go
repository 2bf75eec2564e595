package watch

import (
	"log/slog"

	"hls-watch/internal/player"
)

// The countdown is shown with the first related item once the committed
// video is playing within CountdownDuration of its end, or has ended. It
// follows the player's playing state while shown and is hidden again when the
// position leaves that window, on replay and on navigation.

func (c *Controller) onPlayerState(st player.State) {
	c.autoplay(st)
}

// autoplayCheck re-evaluates after the visible state changed.
func (c *Controller) autoplayCheck() {
	if c.cfg.Countdown == nil {
		return
	}
	c.autoplay(c.cfg.Player.State())
}

func (c *Controller) autoplay(st player.State) {
	cd := c.cfg.Countdown
	if cd == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	host := st.IsPlaying || st.HasEnded
	hostChanged := host != c.hostActive
	c.hostActive = host

	current := c.pending == nil && c.visible.VideoID != "" && st.SourceID == c.visible.VideoID
	remaining := st.Duration - st.CurrentTime
	inWindow := current && (st.HasEnded || (st.Duration > 0 && remaining <= c.cfg.CountdownDuration.Seconds()))

	var hide, show bool
	var target string
	switch {
	case !inWindow:
		if c.shownFor != "" {
			hide = true
			c.shownFor = ""
		}
		if current {
			c.dismissed = false
		}
	case c.shownFor == "" && !c.dismissed && host:
		if next := c.visible.next(); next != "" {
			show = true
			target = next
			c.shownFor = next
		}
	}
	c.mu.Unlock()

	if hide {
		cd.Hide()
	}
	if hostChanged {
		cd.SetHostPlaying(host)
	}
	if show {
		c.log.Debug("autoplay countdown shown", slog.String("next", target))
		cd.Show(target, c.cfg.CountdownDuration)
	}
}

// CancelAutoplay hides the countdown and keeps it hidden until the viewer
// leaves the end of the current video or navigates.
func (c *Controller) CancelAutoplay() {
	c.mu.Lock()
	c.shownFor = ""
	c.dismissed = true
	c.mu.Unlock()
	if c.cfg.Countdown != nil {
		c.cfg.Countdown.Hide()
	}
}
