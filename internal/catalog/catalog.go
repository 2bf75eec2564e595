// Package catalog is the boundary to the video platform API: video lookup,
// related items, creator profiles, votes and follows. Payloads are normalized
// once here; the rest of the module only sees the canonical types.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means the requested video or user does not exist. Any other
// error from a Client is transient.
var ErrNotFound = errors.New("not found")

// VoteDirection is the viewer's vote on a video.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
	VoteNone VoteDirection = "none"
)

// ParseVote accepts the spellings used by the API and by clients.
func ParseVote(s string) (VoteDirection, bool) {
	switch s {
	case "up", "like", "liked", "upvote", "1":
		return VoteUp, true
	case "down", "dislike", "disliked", "downvote", "-1":
		return VoteDown, true
	case "none", "", "0", "null":
		return VoteNone, true
	}
	return VoteNone, false
}

// Video is the canonical video metadata.
type Video struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	AssetURL        string    `json:"asset_url,omitempty"`
	PosterURL       string    `json:"poster_url,omitempty"`
	CreatorUsername string    `json:"creator_username,omitempty"`
	Duration        float64   `json:"duration,omitempty"`
	Views           int64     `json:"views"`
	Likes           int64     `json:"likes"`
	Dislikes        int64     `json:"dislikes"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Resolution is the result of resolving a video identity: metadata plus the
// viewer-specific vote and follow state.
type Resolution struct {
	Video     Video         `json:"video"`
	Vote      VoteDirection `json:"vote"`
	Following bool          `json:"following"`
}

// Profile is a creator profile. Fallback marks a profile synthesized because
// the lookup failed.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Followers   int64  `json:"followers"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// RelatedItem is one candidate in the related list.
type RelatedItem struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	PosterURL       string  `json:"poster_url,omitempty"`
	CreatorUsername string  `json:"creator_username,omitempty"`
	Duration        float64 `json:"duration,omitempty"`
	Views           int64   `json:"views"`
}

// Client is the video platform API.
type Client interface {
	ResolveVideo(ctx context.Context, identity string) (Resolution, error)
	// ListRelated is best effort; failures must not block playback.
	ListRelated(ctx context.Context, excludeIdentity string, pageSize int) ([]RelatedItem, error)
	LookupProfile(ctx context.Context, username string) (Profile, error)
	RecordVote(ctx context.Context, identity string, dir VoteDirection) error
	RecordFollow(ctx context.Context, username string) error
	RecordUnfollow(ctx context.Context, username string) error
}

// FallbackProfile is used when a profile lookup fails.
func FallbackProfile(username string) Profile {
	return Profile{Username: username, DisplayName: username, Fallback: true}
}

// ProfileOrFallback looks up username and falls back to FallbackProfile on
// any error.
func ProfileOrFallback(ctx context.Context, c Client, username string) Profile {
	p, err := c.LookupProfile(ctx, username)
	if err != nil {
		return FallbackProfile(username)
	}
	if p.Username == "" {
		p.Username = username
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	return p
}
