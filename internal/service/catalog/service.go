package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/catalog"
	"github.com/watchroom/server/pkg/ytvideodata"
	"golang.org/x/time/rate"
)

var (
	ErrEmptyQuery    = errors.New("query is required")
	ErrRateLimited   = errors.New("too many catalog requests")
	ErrSearchFailed  = errors.New("search failed")
	ErrVideoNotFound = errors.New("video not found")
)

type iProvider interface {
	Search(context.Context, string) ([]domain.Video, error)
	GetById(context.Context, string) (domain.Video, error)
}

type iCache interface {
	GetSearch(context.Context, string) ([]domain.Video, error)
	SetSearch(context.Context, string, []domain.Video) error
	GetVideo(context.Context, string) (domain.Video, error)
	SetVideo(context.Context, domain.Video) error
}

type iFallback interface {
	Get(context.Context, string) (*ytvideodata.VideoData, error)
}

type Config struct {
	// RequestsPerSecond bounds upstream calls; cache hits are not counted.
	RequestsPerSecond float64
	Burst             int
}

type service struct {
	provider iProvider
	cache    iCache
	fallback iFallback
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewService(provider iProvider, cache iCache, fallback iFallback, logger *slog.Logger, cfg *Config) *service {
	return &service{
		provider: provider,
		cache:    cache,
		fallback: fallback,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:   logger,
	}
}

func (s *service) Search(ctx context.Context, query string) ([]domain.Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if videos, err := s.cache.GetSearch(ctx, query); err == nil {
		return videos, nil
	} else if !errors.Is(err, catalog.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "failed to read search cache", "error", err)
	}

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	videos, err := s.provider.Search(ctx, query)
	if err != nil {
		s.logger.WarnContext(ctx, "catalog search failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	if err := s.cache.SetSearch(ctx, query, videos); err != nil {
		s.logger.WarnContext(ctx, "failed to write search cache", "error", err)
	}

	return videos, nil
}

func (s *service) GetById(ctx context.Context, sourceId string) (domain.Video, error) {
	if video, err := s.cache.GetVideo(ctx, sourceId); err == nil {
		return video, nil
	} else if !errors.Is(err, catalog.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "failed to read video cache", "error", err)
	}

	if !s.limiter.Allow() {
		return domain.Video{}, ErrRateLimited
	}

	video, err := s.provider.GetById(ctx, sourceId)
	if errors.Is(err, catalog.ErrNotConfigured) && s.fallback != nil {
		video, err = s.getFromFallback(ctx, sourceId)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrVideoNotFound) || errors.Is(err, ytvideodata.ErrVideoNotFound) {
			return domain.Video{}, ErrVideoNotFound
		}
		s.logger.WarnContext(ctx, "catalog lookup failed", "source_id", sourceId, "error", err)
		return domain.Video{}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	if err := s.cache.SetVideo(ctx, video); err != nil {
		s.logger.WarnContext(ctx, "failed to write video cache", "error", err)
	}

	return video, nil
}

// getFromFallback has no duration information.
func (s *service) getFromFallback(ctx context.Context, sourceId string) (domain.Video, error) {
	data, err := s.fallback.Get(ctx, sourceId)
	if err != nil {
		return domain.Video{}, err
	}

	return domain.Video{
		Id:           sourceId,
		Title:        data.Title,
		ThumbnailUrl: data.ThumbnailUrl,
		SourceId:     sourceId,
	}, nil
}
