package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/catalog"
)

const keyPrefix = "catalog"

type repo struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRepo(rc *redis.Client, ttl time.Duration) *repo {
	return &repo{
		rc:  rc,
		ttl: ttl,
	}
}

func (r repo) searchKey(query string) string {
	return keyPrefix + ":search:" + strings.ToLower(strings.TrimSpace(query))
}

func (r repo) videoKey(sourceId string) string {
	return keyPrefix + ":video:" + sourceId
}

func (r repo) GetSearch(ctx context.Context, query string) ([]domain.Video, error) {
	var videos []domain.Video
	if err := r.get(ctx, r.searchKey(query), &videos); err != nil {
		return nil, err
	}

	return videos, nil
}

// SetSearch stores the result list and every listed video in one pipeline.
func (r repo) SetSearch(ctx context.Context, query string, videos []domain.Video) error {
	data, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	pipe := r.rc.TxPipeline()
	pipe.Set(ctx, r.searchKey(query), data, r.ttl)
	for _, video := range videos {
		videoData, err := json.Marshal(video)
		if err != nil {
			return fmt.Errorf("failed to marshal video: %w", err)
		}
		pipe.Set(ctx, r.videoKey(video.SourceId), videoData, r.ttl)
	}

	return r.executePipe(ctx, pipe)
}

func (r repo) GetVideo(ctx context.Context, sourceId string) (domain.Video, error) {
	var video domain.Video
	if err := r.get(ctx, r.videoKey(sourceId), &video); err != nil {
		return domain.Video{}, err
	}

	return video, nil
}

func (r repo) SetVideo(ctx context.Context, video domain.Video) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	return r.rc.Set(ctx, r.videoKey(video.SourceId), data, r.ttl).Err()
}

func (r repo) get(ctx context.Context, key string, dest any) error {
	data, err := r.rc.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return catalog.ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
