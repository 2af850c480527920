package inmemory

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/catalog"
)

type repo struct {
	searches *expirable.LRU[string, []domain.Video]
	videos   *expirable.LRU[string, domain.Video]
}

func NewRepo(size int, ttl time.Duration) *repo {
	return &repo{
		searches: expirable.NewLRU[string, []domain.Video](size, nil, ttl),
		videos:   expirable.NewLRU[string, domain.Video](size, nil, ttl),
	}
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (r *repo) GetSearch(_ context.Context, query string) ([]domain.Video, error) {
	videos, ok := r.searches.Get(normalize(query))
	if !ok {
		return nil, catalog.ErrCacheMiss
	}

	return videos, nil
}

func (r *repo) SetSearch(_ context.Context, query string, videos []domain.Video) error {
	r.searches.Add(normalize(query), videos)
	for _, video := range videos {
		r.videos.Add(video.SourceId, video)
	}

	return nil
}

func (r *repo) GetVideo(_ context.Context, sourceId string) (domain.Video, error) {
	video, ok := r.videos.Get(sourceId)
	if !ok {
		return domain.Video{}, catalog.ErrCacheMiss
	}

	return video, nil
}

func (r *repo) SetVideo(_ context.Context, video domain.Video) error {
	r.videos.Add(video.SourceId, video)
	return nil
}
