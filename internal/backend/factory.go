package backend

import (
	"context"
	"fmt"
	"log/slog"

	"aptprice/internal/cache"
	"aptprice/internal/core"
	"aptprice/internal/source"
	"aptprice/internal/source/memory"
	"aptprice/internal/source/rtms"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the configured source and wraps it with the TTL cache.
// The returned cleanup stops the cache's expiry sweeper.
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		src source.TransactionFetcher
		err error
	)
	switch config.Type {
	case RTMSBackend:
		src, err = f.createRTMSBackend(config)
	case FixtureBackend:
		src, err = f.createFixtureBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	maxEntries := config.CacheMaxEntries
	if maxEntries < 1 {
		maxEntries = 256
	}
	lru := cache.NewLRUCache[core.FetchResult](maxEntries, config.CacheTTL)
	memo := cache.NewFetcher(src, lru, f.logger)

	manager := cache.NewManager(f.logger)
	manager.Register(lru)
	manager.StartCleanup(config.CacheCleanupInterval)

	f.logger.Info("Initialized fetch cache",
		"ttl", config.CacheTTL.String(),
		"max_entries", maxEntries)

	return &BackendResult{
		Fetcher: memo,
		Cache:   memo,
		Cleanup: func() error {
			manager.Stop()
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createRTMSBackend(config Config) (source.TransactionFetcher, error) {
	client, err := rtms.NewClient(rtms.Options{
		BaseURL:   config.BaseURL,
		PageSize:  config.PageSize,
		Timeout:   config.Timeout,
		UserAgent: config.UserAgent,
		Logger:    f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RTMS client: %w", err)
	}

	f.logger.Info("Initialized RTMS backend",
		"base_url", config.BaseURL,
		"page_size", config.PageSize,
		"timeout", config.Timeout.String())
	return client, nil
}

func (f *DefaultFactory) createFixtureBackend(config Config) (source.TransactionFetcher, error) {
	store := memory.NewFromFiles(config.FixtureDir)
	f.logger.Info("Initialized fixture backend", "fixture_dir", config.FixtureDir)
	return store, nil
}
