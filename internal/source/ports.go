package source

import (
	"context"

	"aptprice/internal/core"
)

// Ports for transaction sources.
type (
	// TransactionFetcher retrieves the raw items for one region and month.
	// A successful result with no items is the explicit "no data" outcome.
	TransactionFetcher interface {
		Fetch(ctx context.Context, q core.TransactionQuery) (core.FetchResult, error)
	}

	// FetcherFunc adapts a function to TransactionFetcher.
	FetcherFunc func(ctx context.Context, q core.TransactionQuery) (core.FetchResult, error)
)

func (f FetcherFunc) Fetch(ctx context.Context, q core.TransactionQuery) (core.FetchResult, error) {
	return f(ctx, q)
}
