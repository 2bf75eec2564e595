package catalog

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestNormalizeResolution(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Resolution{
		Video: Video{
			ID:              "abc",
			Title:           "Sunset",
			AssetURL:        "https://cdn.example/abc",
			PosterURL:       "https://cdn.example/abc.jpg",
			CreatorUsername: "maria",
			Duration:        42.5,
			Views:           10,
			Likes:           3,
			Dislikes:        1,
			CreatedAt:       created,
		},
		Vote:      VoteUp,
		Following: true,
	}

	cases := map[string]string{
		"camel case envelope": `{
			"success": true,
			"assetUrl": "https://cdn.example/abc",
			"voteState": "like",
			"followingFlag": true,
			"creatorUsername": "maria",
			"metadata": {"id": "abc", "title": "Sunset", "posterUrl": "https://cdn.example/abc.jpg",
				"duration": 42.5, "viewCount": 10, "likeCount": 3, "dislikeCount": 1,
				"createdAt": "2025-03-01T12:00:00Z"}
		}`,
		"snake case data wrapper": `{
			"data": {
				"video": {"video_id": "abc", "title": "Sunset", "asset_url": "https://cdn.example/abc",
					"thumbnail_url": "https://cdn.example/abc.jpg", "duration_seconds": "42.5",
					"view_count": 10, "like_count": 3, "dislike_count": 1, "created_at": "2025-03-01T12:00:00Z",
					"creator": {"username": "maria"}},
				"user_vote": 1,
				"is_following": true
			}
		}`,
		"bare video with flags": `{
			"id": "abc", "name": "Sunset", "url": "https://cdn.example/abc", "poster": "https://cdn.example/abc.jpg",
			"duration": 42.5, "views": 10, "likes": 3, "dislikes": 1, "uploaded_at": "2025-03-01T12:00:00Z",
			"uploader_username": "maria", "isLiked": true, "following": "true"
		}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			root := decode(t, raw).(map[string]any)
			got, err := normalizeResolution(fields(root))
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("normalizeResolution mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeResolution_failures(t *testing.T) {
	_, err := normalizeResolution(fields(decode(t, `{"success": false, "error": "missing"}`).(map[string]any)))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = normalizeResolution(fields(decode(t, `{"title": "no id"}`).(map[string]any)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNormalizeVote(t *testing.T) {
	cases := []struct {
		raw  string
		want VoteDirection
	}{
		{`{"id":"a","voteState":"dislike"}`, VoteDown},
		{`{"id":"a","vote":{"direction":"up"}}`, VoteUp},
		{`{"id":"a","my_vote":-1}`, VoteDown},
		{`{"id":"a","userVote":null}`, VoteNone},
		{`{"id":"a","is_disliked":true}`, VoteDown},
		{`{"id":"a"}`, VoteNone},
	}
	for _, tc := range cases {
		res, err := normalizeResolution(fields(decode(t, tc.raw).(map[string]any)))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, res.Vote, tc.raw)
	}
}

func TestNormalizeProfile(t *testing.T) {
	got := normalizeProfile(fields(decode(t, `{"user": {"user_name": "maria", "avatar_url": "a.png", "follower_count": 7}}`).(map[string]any)))
	want := Profile{Username: "maria", DisplayName: "maria", AvatarURL: "a.png", Followers: 7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalizeProfile mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeRelated(t *testing.T) {
	raw := `{"data": {"videos": [
		{"id": "a", "title": "A", "thumbnailUrl": "a.jpg", "creator": {"username": "u1"}, "views": 5},
		{"id": "current", "title": "Self"},
		{"title": "no id"},
		"junk",
		{"_id": "b", "title": "B", "duration": 12}
	]}}`
	got := normalizeRelated(decode(t, raw), "current")
	want := []RelatedItem{
		{ID: "a", Title: "A", PosterURL: "a.jpg", CreatorUsername: "u1", Views: 5},
		{ID: "b", Title: "B", Duration: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalizeRelated mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, normalizeRelated(decode(t, `[{"id":"x"},{"id":"y"}]`), ""), 2)
	assert.Empty(t, normalizeRelated(decode(t, `{"unexpected": true}`), ""))
}

func TestParseVote(t *testing.T) {
	for in, want := range map[string]VoteDirection{"up": VoteUp, "like": VoteUp, "-1": VoteDown, "": VoteNone, "none": VoteNone} {
		got, ok := ParseVote(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseVote("sideways")
	assert.False(t, ok)
}
