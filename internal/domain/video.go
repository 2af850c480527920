package domain

// Video is a catalog entry as returned by search and lookup.
type Video struct {
	Id              string  `json:"id"`
	Title           string  `json:"title"`
	ThumbnailUrl    string  `json:"thumbnail_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	SourceId        string  `json:"source_id"`
}
