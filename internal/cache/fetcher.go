package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"aptprice/internal/core"
	applog "aptprice/internal/log"
	"aptprice/internal/source"
)

// Fetcher memoizes successful fetches of the wrapped source, including empty
// results. Errors are never cached. Concurrent fetches of the same key share
// one upstream call.
type Fetcher struct {
	next   source.TransactionFetcher
	cache  Cache[core.FetchResult]
	group  singleflight.Group
	logger *slog.Logger
}

var _ source.TransactionFetcher = (*Fetcher)(nil)

func NewFetcher(next source.TransactionFetcher, c Cache[core.FetchResult], logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		next:   next,
		cache:  c,
		logger: logger.With(applog.FieldComponent, applog.ComponentCache),
	}
}

// Key identifies a query by region, period and a digest of the credential.
// The credential itself is never part of the key.
func Key(q core.TransactionQuery) string {
	return q.RegionCode + "|" + q.YearMonth.String() + "|" + credentialScope(q.Credential)
}

func credentialScope(credential string) string {
	if credential == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) Fetch(ctx context.Context, q core.TransactionQuery) (core.FetchResult, error) {
	if err := q.Validate(); err != nil {
		return core.FetchResult{}, err
	}

	key := Key(q)
	if res, ok := f.cache.Get(key); ok {
		f.logger.DebugContext(ctx, "Fetch served from cache",
			applog.FieldRegion, q.RegionCode,
			applog.FieldDealYMD, q.YearMonth.String(),
			applog.FieldCacheHit, true)
		return res, nil
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		res, err := f.next.Fetch(ctx, q)
		if err != nil {
			return core.FetchResult{}, err
		}
		f.cache.Set(key, res)
		return res, nil
	})
	if err != nil {
		return core.FetchResult{}, err
	}
	return v.(core.FetchResult), nil
}

// Invalidate drops the cached result for q, if any.
func (f *Fetcher) Invalidate(q core.TransactionQuery) {
	f.cache.Delete(Key(q))
}

// Stats reports cache usage when the underlying cache tracks it.
func (f *Fetcher) Stats() Stats {
	if s, ok := f.cache.(interface{ Stats() Stats }); ok {
		return s.Stats()
	}
	return Stats{Size: f.cache.Size()}
}
