package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/catalog"
)

func newRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, time.Hour), s
}

func TestSearchCache(t *testing.T) {
	repo, s := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetSearch(ctx, "lofi")
	assert.ErrorIs(t, err, catalog.ErrCacheMiss)

	videos := []domain.Video{
		{Id: "a", SourceId: "a", Title: "A", DurationSeconds: 61},
		{Id: "b", SourceId: "b", Title: "B", DurationSeconds: 3723},
	}
	require.NoError(t, repo.SetSearch(ctx, "Lofi ", videos))

	got, err := repo.GetSearch(ctx, "lofi")
	require.NoError(t, err)
	assert.Equal(t, videos, got)

	video, err := repo.GetVideo(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, videos[1], video)

	s.FastForward(time.Hour + time.Second)
	_, err = repo.GetSearch(ctx, "lofi")
	assert.ErrorIs(t, err, catalog.ErrCacheMiss)
}

func TestVideoCache(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetVideo(ctx, "x")
	assert.ErrorIs(t, err, catalog.ErrCacheMiss)

	video := domain.Video{Id: "x", SourceId: "x", Title: "X"}
	require.NoError(t, repo.SetVideo(ctx, video))

	got, err := repo.GetVideo(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, video, got)
}
