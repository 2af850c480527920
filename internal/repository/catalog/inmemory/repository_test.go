package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/catalog"
)

func TestCache(t *testing.T) {
	repo := NewRepo(2, time.Hour)
	ctx := context.Background()

	_, err := repo.GetSearch(ctx, "q")
	assert.ErrorIs(t, err, catalog.ErrCacheMiss)

	videos := []domain.Video{{Id: "a", SourceId: "a"}}
	require.NoError(t, repo.SetSearch(ctx, " Q", videos))

	got, err := repo.GetSearch(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, videos, got)

	video, err := repo.GetVideo(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", video.Id)

	require.NoError(t, repo.SetVideo(ctx, domain.Video{Id: "b", SourceId: "b"}))
	require.NoError(t, repo.SetVideo(ctx, domain.Video{Id: "c", SourceId: "c"}))
	_, err = repo.GetVideo(ctx, "a")
	assert.ErrorIs(t, err, catalog.ErrCacheMiss, "least recently used entry is evicted")
}

func TestCacheExpires(t *testing.T) {
	repo := NewRepo(10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, repo.SetVideo(ctx, domain.Video{Id: "a", SourceId: "a"}))
	assert.Eventually(t, func() bool {
		_, err := repo.GetVideo(ctx, "a")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
