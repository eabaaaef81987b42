package backend

import (
	"context"
	"time"

	"aptprice/internal/cache"
	"aptprice/internal/source"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the memoized fetcher and its cleanup hook
type BackendResult struct {
	Fetcher source.TransactionFetcher
	Cache   *cache.Fetcher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// RTMS specific
	BaseURL   string
	PageSize  int
	Timeout   time.Duration
	UserAgent string

	// Fixture specific
	FixtureDir string

	// Memoization
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	RTMSBackend    BackendType = "rtms"
	FixtureBackend BackendType = "fixture"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RTMSBackend, FixtureBackend:
		return true
	default:
		return false
	}
}
