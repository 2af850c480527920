package catalog

import "errors"

var (
	ErrCacheMiss     = errors.New("cache miss")
	ErrVideoNotFound = errors.New("video not found")
	ErrNotConfigured = errors.New("catalog api key is not configured")
)
