package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aptprice/internal/core"
	applog "aptprice/internal/log"
	"aptprice/internal/source"
)

// LookupResult is the tagged outcome of a single region/month lookup.
// Exactly one of Empty, Transactions or Raw is meaningful:
// Raw is only set together with a *core.SchemaError.
type LookupResult struct {
	Query        core.TransactionQuery
	Empty        bool
	Transactions []core.Transaction
	Raw          []core.RawItem
	Summary      core.Summary
	TotalCount   int
	Truncated    bool
	InvalidDates []int
}

// LookupService runs fetch and normalize for one query
type LookupService struct {
	fetcher source.TransactionFetcher
	log     *applog.StructuredLogger
}

func NewLookupService(fetcher source.TransactionFetcher, logger *applog.Logger) *LookupService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &LookupService{
		fetcher: fetcher,
		log:     applog.NewStructuredLogger(logger.WithComponent(applog.ComponentLookup)),
	}
}

// Lookup fetches and normalizes q. On a schema failure the raw items are
// returned alongside the error so callers can show them unnormalized.
func (s *LookupService) Lookup(ctx context.Context, q core.TransactionQuery) (LookupResult, error) {
	start := time.Now()
	res, err := s.lookup(ctx, q)
	s.log.LogLookup(ctx, q.RegionCode, q.YearMonth.String(), len(res.Transactions),
		time.Since(start).Milliseconds(), err, kindOf(ctx, err))
	return res, err
}

func (s *LookupService) lookup(ctx context.Context, q core.TransactionQuery) (LookupResult, error) {
	out := LookupResult{Query: q}

	fetched, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return out, fmt.Errorf("fetch %s: %w", q, err)
	}
	out.TotalCount = fetched.TotalCount
	out.Truncated = fetched.Truncated
	if fetched.Empty() {
		out.Empty = true
		return out, nil
	}

	txs, report, err := core.NormalizeWithReport(fetched.Items)
	if err != nil {
		out.Raw = fetched.Items
		return out, fmt.Errorf("normalize %s: %w", q, err)
	}
	out.Transactions = txs
	out.Summary = core.Summarize(txs)
	out.InvalidDates = report.InvalidDates
	return out, nil
}

// kindOf tags err for logs and skipped months. "canceled" means the caller's
// ctx ended. An http.Client timeout on one slow month still unwraps to
// context.DeadlineExceeded but arrives as a FetchError, so it stays "transport".
func kindOf(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}
	if ctx.Err() != nil {
		return "canceled"
	}
	if kind := core.ErrorKind(err); kind != "internal" {
		return kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}
