package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/watchroom/server/internal/domain"
)

var ErrServerUnavailable = errors.New("server unavailable")

// APIClient calls the server's REST endpoints.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/api/v1",
		httpClient: httpClient,
	}
}

type apiResponse[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error"`
}

func (c *APIClient) Search(ctx context.Context, query string) ([]domain.Video, error) {
	var videos []domain.Video
	err := c.do(ctx, http.MethodGet, "/search?q="+url.QueryEscape(query), &videos)
	return videos, err
}

func (c *APIClient) GetVideo(ctx context.Context, sourceId string) (domain.Video, error) {
	var video domain.Video
	err := c.do(ctx, http.MethodGet, "/videos/"+url.PathEscape(sourceId), &video)
	return video, err
}

// CreateRoom asks the server for a fresh room id.
func (c *APIClient) CreateRoom(ctx context.Context) (string, error) {
	var resp struct {
		RoomId string `json:"room_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms/", &resp); err != nil {
		return "", err
	}

	return resp.RoomId, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	var body apiResponse[json.RawMessage]
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, body.Error)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	return json.Unmarshal(body.Data, out)
}

// ItemFromVideo builds a queue item for a catalog entry.
func ItemFromVideo(v domain.Video, addedBy string) domain.QueueItem {
	return domain.QueueItem{
		Title:           v.Title,
		ThumbnailUrl:    v.ThumbnailUrl,
		DurationSeconds: v.DurationSeconds,
		SourceId:        v.SourceId,
		AddedBy:         addedBy,
	}
}
