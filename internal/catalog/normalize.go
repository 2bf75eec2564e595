package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fields is a decoded JSON object whose keys may use camelCase or snake_case
// spellings. Lookups take every accepted alias; the first present one wins.
type fields map[string]any

func (f fields) value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (f fields) str(keys ...string) string {
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func (f fields) float(keys ...string) float64 {
	for _, k := range keys {
		switch v := f[k].(type) {
		case json.Number:
			if n, err := v.Float64(); err == nil {
				return n
			}
		case float64:
			return v
		case string:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func (f fields) integer(keys ...string) int64 {
	return int64(f.float(keys...))
}

func (f fields) boolean(keys ...string) bool {
	v, ok := f.value(keys...)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	case json.Number:
		return b.String() != "0"
	case float64:
		return b != 0
	}
	return false
}

func (f fields) obj(keys ...string) fields {
	for _, k := range keys {
		if m, ok := f[k].(map[string]any); ok {
			return fields(m)
		}
	}
	return nil
}

func (f fields) list(keys ...string) []any {
	for _, k := range keys {
		if l, ok := f[k].([]any); ok {
			return l
		}
	}
	return nil
}

func (f fields) timestamp(keys ...string) time.Time {
	s := f.str(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// merge returns a copy of base overlaid with over.
func merge(base, over fields) fields {
	out := make(fields, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// creatorOf finds the creator username, which may be a nested object or a
// flat field.
func creatorOf(f fields) string {
	if c := f.obj("creator", "user", "uploader", "owner", "author"); c != nil {
		if u := c.str("username", "user_name", "userName", "handle", "name"); u != "" {
			return u
		}
	}
	return f.str("creatorUsername", "creator_username", "username", "uploaderUsername", "uploader_username", "creator", "uploader")
}

func voteOf(f fields) VoteDirection {
	if v, ok := f.value("userVote", "user_vote", "voteState", "vote_state", "myVote", "my_vote", "vote", "direction"); ok {
		var s string
		switch t := v.(type) {
		case string:
			s = strings.ToLower(t)
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case map[string]any:
			return voteOf(fields(t))
		}
		if dir, ok := ParseVote(s); ok {
			return dir
		}
	}
	switch {
	case f.boolean("isLiked", "is_liked", "liked"):
		return VoteUp
	case f.boolean("isDisliked", "is_disliked", "disliked"):
		return VoteDown
	}
	return VoteNone
}

func normalizeVideo(f fields) Video {
	return Video{
		ID:              f.str("id", "_id", "videoId", "video_id", "identity"),
		Title:           f.str("title", "name"),
		Description:     f.str("description", "desc"),
		AssetURL:        f.str("assetUrl", "asset_url", "videoUrl", "video_url", "hlsUrl", "hls_url", "url", "storagePath", "storage_path", "path"),
		PosterURL:       f.str("posterUrl", "poster_url", "thumbnailUrl", "thumbnail_url", "thumbnail", "poster"),
		CreatorUsername: creatorOf(f),
		Duration:        f.float("duration", "durationSeconds", "duration_seconds", "length"),
		Views:           f.integer("views", "viewCount", "view_count"),
		Likes:           f.integer("likes", "likeCount", "like_count", "upvotes"),
		Dislikes:        f.integer("dislikes", "dislikeCount", "dislike_count", "downvotes"),
		CreatedAt:       f.timestamp("createdAt", "created_at", "uploadedAt", "uploaded_at"),
	}
}

// normalizeResolution accepts {success, assetUrl, metadata, voteState,
// followingFlag, creatorUsername} as well as {data: {video: {...}, ...}} and a
// bare video object.
func normalizeResolution(root fields) (Resolution, error) {
	if v, ok := root.value("success", "ok"); ok {
		if b, isBool := v.(bool); isBool && !b {
			return Resolution{}, ErrNotFound
		}
	}
	body := root
	if d := root.obj("data", "result"); d != nil {
		body = merge(root, d)
	}
	inner := body.obj("video", "metadata")
	all := merge(body, inner)

	video := normalizeVideo(all)
	if video.ID == "" && video.AssetURL == "" {
		return Resolution{}, fmt.Errorf("video payload has neither id nor asset url")
	}
	return Resolution{
		Video:     video,
		Vote:      voteOf(all),
		Following: all.boolean("isFollowing", "is_following", "followingFlag", "following_flag", "following", "isFollowingCreator", "is_following_creator"),
	}, nil
}

func normalizeProfile(root fields) Profile {
	f := root
	if d := root.obj("data", "user", "profile"); d != nil {
		f = d
	}
	p := Profile{
		Username:    f.str("username", "user_name", "userName", "handle"),
		DisplayName: f.str("displayName", "display_name", "fullName", "full_name", "name"),
		AvatarURL:   f.str("avatarUrl", "avatar_url", "avatar", "profilePicture", "profile_picture"),
		Bio:         f.str("bio", "about", "description"),
		Followers:   f.integer("followers", "followerCount", "follower_count", "followersCount", "followers_count", "subscribers"),
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	return p
}

func normalizeRelatedItem(f fields) RelatedItem {
	v := normalizeVideo(f)
	return RelatedItem{
		ID:              v.ID,
		Title:           v.Title,
		PosterURL:       v.PosterURL,
		CreatorUsername: v.CreatorUsername,
		Duration:        v.Duration,
		Views:           v.Views,
	}
}

// normalizeRelated accepts a bare array or an object wrapping one.
func normalizeRelated(v any, exclude string) []RelatedItem {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case map[string]any:
		f := fields(t)
		raw = f.list("videos", "items", "data", "results", "related")
		if raw == nil {
			if d := f.obj("data"); d != nil {
				raw = d.list("videos", "items", "results")
			}
		}
	}
	out := make([]RelatedItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		item := normalizeRelatedItem(fields(m))
		if item.ID == "" || item.ID == exclude {
			continue
		}
		out = append(out, item)
	}
	return out
}
