package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/catalog"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
	searchLimit    = 10
	unknownTitle   = "Unknown Title"
)

type repo struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewRepo(apiKey string, httpClient *http.Client, baseURL string) *repo {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &repo{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type thumbnail struct {
	URL string `json:"url"`
}

type videoItem struct {
	Id      string `json:"id"`
	Snippet struct {
		Title      string               `json:"title"`
		Thumbnails map[string]thumbnail `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type videosResponse struct {
	Items []videoItem `json:"items"`
}

type searchResponse struct {
	Items []struct {
		Id struct {
			VideoId string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// Search returns up to ten embeddable videos with their durations.
func (r *repo) Search(ctx context.Context, query string) ([]domain.Video, error) {
	if r.apiKey == "" {
		return nil, catalog.ErrNotConfigured
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", fmt.Sprint(searchLimit))
	params.Set("videoEmbeddable", "true")

	var found searchResponse
	if err := r.get(ctx, "/search", params, &found); err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}

	ids := make([]string, 0, len(found.Items))
	for _, item := range found.Items {
		if item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return []domain.Video{}, nil
	}

	details, err := r.videos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get video details: %w", err)
	}

	videos := make([]domain.Video, 0, len(details))
	for _, item := range details {
		videos = append(videos, toVideo(item))
	}

	return videos, nil
}

func (r *repo) GetById(ctx context.Context, sourceId string) (domain.Video, error) {
	if r.apiKey == "" {
		return domain.Video{}, catalog.ErrNotConfigured
	}

	items, err := r.videos(ctx, []string{sourceId})
	if err != nil {
		return domain.Video{}, fmt.Errorf("failed to get video: %w", err)
	}
	if len(items) == 0 {
		return domain.Video{}, catalog.ErrVideoNotFound
	}

	return toVideo(items[0]), nil
}

func (r *repo) videos(ctx context.Context, ids []string) ([]videoItem, error) {
	params := url.Values{}
	params.Set("part", "contentDetails,snippet")
	params.Set("id", strings.Join(ids, ","))

	var resp videosResponse
	if err := r.get(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}

	return resp.Items, nil
}

func (r *repo) get(ctx context.Context, path string, params url.Values, dest any) error {
	params.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func toVideo(item videoItem) domain.Video {
	title := item.Snippet.Title
	if title == "" {
		title = unknownTitle
	}

	return domain.Video{
		Id:              item.Id,
		Title:           title,
		ThumbnailUrl:    item.Snippet.Thumbnails["medium"].URL,
		DurationSeconds: float64(ParseDuration(item.ContentDetails.Duration)),
		SourceId:        item.Id,
	}
}
