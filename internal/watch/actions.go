package watch

import (
	"context"
	"log/slog"

	"hls-watch/internal/catalog"
)

// Vote sets the viewer's vote on the committed video. Voting the current
// direction again clears it. The visible state is updated at once and the
// vote is recorded in the background; a failed recording is rolled back if
// the page still shows the same video and vote.
func (c *Controller) Vote(ctx context.Context, dir catalog.VoteDirection) (catalog.VoteDirection, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.visible.VideoID == "" {
		c.mu.Unlock()
		return "", ErrNothingCommitted
	}
	prev := c.visible.Vote
	if dir == prev {
		dir = catalog.VoteNone
	}
	id := c.visible.VideoID
	prevVideo := c.visible.Video
	c.visible.Vote = dir
	applyVote(&c.visible.Video, prev, dir)
	c.saveLocked(c.log)
	fns := c.listenersLocked()
	st := c.stateLocked()

	c.goLocked(func() {
		err := c.cfg.Catalog.RecordVote(c.ctx, id, dir)
		if err == nil || c.ctx.Err() != nil {
			return
		}
		c.log.Warn("vote not recorded", slog.String("video", id), slog.String("error", err.Error()))
		c.mu.Lock()
		if c.visible.VideoID != id || c.visible.Vote != dir {
			c.mu.Unlock()
			return
		}
		c.visible.Vote = prev
		c.visible.Video.Likes = prevVideo.Likes
		c.visible.Video.Dislikes = prevVideo.Dislikes
		c.saveLocked(c.log)
		fns := c.listenersLocked()
		st := c.stateLocked()
		c.mu.Unlock()
		deliver(fns, st)
	})
	c.mu.Unlock()
	deliver(fns, st)
	return dir, nil
}

func applyVote(v *catalog.Video, from, to catalog.VoteDirection) {
	switch from {
	case catalog.VoteUp:
		v.Likes = max(v.Likes-1, 0)
	case catalog.VoteDown:
		v.Dislikes = max(v.Dislikes-1, 0)
	}
	switch to {
	case catalog.VoteUp:
		v.Likes++
	case catalog.VoteDown:
		v.Dislikes++
	}
}

// ToggleFollow follows or unfollows the committed video's creator, with the
// same optimistic update and rollback as Vote. It returns the new state.
func (c *Controller) ToggleFollow(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.visible.VideoID == "" {
		c.mu.Unlock()
		return false, ErrNothingCommitted
	}
	username := c.visible.Video.CreatorUsername
	if username == "" {
		c.mu.Unlock()
		return false, ErrNoCreator
	}
	follow := !c.visible.Following
	id := c.visible.VideoID
	c.visible.Following = follow
	if follow {
		c.visible.Creator.Followers++
	} else if c.visible.Creator.Followers > 0 {
		c.visible.Creator.Followers--
	}
	c.saveLocked(c.log)
	fns := c.listenersLocked()
	st := c.stateLocked()

	c.goLocked(func() {
		var err error
		if follow {
			err = c.cfg.Catalog.RecordFollow(c.ctx, username)
		} else {
			err = c.cfg.Catalog.RecordUnfollow(c.ctx, username)
		}
		if err == nil || c.ctx.Err() != nil {
			return
		}
		c.log.Warn("follow change not recorded", slog.String("creator", username), slog.String("error", err.Error()))
		c.mu.Lock()
		if c.visible.VideoID != id || c.visible.Following != follow {
			c.mu.Unlock()
			return
		}
		c.visible.Following = !follow
		if follow && c.visible.Creator.Followers > 0 {
			c.visible.Creator.Followers--
		} else if !follow {
			c.visible.Creator.Followers++
		}
		c.saveLocked(c.log)
		fns := c.listenersLocked()
		st := c.stateLocked()
		c.mu.Unlock()
		deliver(fns, st)
	})
	c.mu.Unlock()
	deliver(fns, st)
	return follow, nil
}
