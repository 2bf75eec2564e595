package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-watch/internal/catalog"
	"hls-watch/internal/catalog/catalogtest"
)

const videoID = "6f1c2e8a9b3d4f5a6c7e8d9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b"

func TestCoalescing_shares_one_lookup(t *testing.T) {
	fake := catalogtest.New()
	fake.AddVideo(catalog.Resolution{Video: catalog.Video{ID: videoID, AssetURL: "https://cdn.example/v"}})
	release := fake.Hold(catalogtest.ResolveKey(videoID))
	c := catalog.NewCoalescing(fake)

	var wg sync.WaitGroup
	results := make(chan string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.ResolveVideo(context.Background(), videoID)
			if err == nil {
				results <- res.Video.AssetURL
			}
		}()
	}
	require.Eventually(t, func() bool { return fake.Calls(catalogtest.ResolveKey(videoID)) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()
	close(results)

	n := 0
	for u := range results {
		assert.Equal(t, "https://cdn.example/v", u)
		n++
	}
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, fake.Calls(catalogtest.ResolveKey(videoID)))

	asset, err := c.LookupAsset(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/v", asset.URL)
	assert.Equal(t, 2, fake.Calls(catalogtest.ResolveKey(videoID)))
}

func TestCoalescing_caller_cancel_does_not_cancel_shared_call(t *testing.T) {
	fake := catalogtest.New()
	fake.AddVideo(catalog.Resolution{Video: catalog.Video{ID: videoID, AssetURL: "https://cdn.example/v"}})
	release := fake.Hold(catalogtest.ResolveKey(videoID))
	c := catalog.NewCoalescing(fake)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.ResolveVideo(ctx, videoID)
		first <- err
	}()
	require.Eventually(t, func() bool { return fake.Calls(catalogtest.ResolveKey(videoID)) == 1 }, time.Second, time.Millisecond)

	second := make(chan catalog.Resolution, 1)
	go func() {
		res, _ := c.ResolveVideo(context.Background(), videoID)
		second <- res
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	release()
	select {
	case res := <-second:
		assert.Equal(t, videoID, res.Video.ID)
	case <-time.After(time.Second):
		t.Fatal("shared lookup did not complete")
	}
}

func TestCoalescing_propagates_not_found(t *testing.T) {
	c := catalog.NewCoalescing(catalogtest.New())
	_, err := c.ResolveVideo(context.Background(), videoID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestProfileOrFallback(t *testing.T) {
	fake := catalogtest.New()
	fake.AddProfile(catalog.Profile{Username: "maria", DisplayName: "Maria", Followers: 3})

	got := catalog.ProfileOrFallback(context.Background(), fake, "maria")
	assert.Equal(t, "Maria", got.DisplayName)
	assert.False(t, got.Fallback)

	got = catalog.ProfileOrFallback(context.Background(), fake, "ghost")
	assert.Equal(t, catalog.Profile{Username: "ghost", DisplayName: "ghost", Fallback: true}, got)
}
