package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"aptprice/internal/core"
	applog "aptprice/internal/log"
	"aptprice/internal/source"
)

const (
	DefaultHistoryMonths = 36
	MaxHistoryMonths     = 120
	DefaultHistoryPause  = 200 * time.Millisecond
)

// HistoryRequest selects one building's trades over consecutive months ending at Anchor.
type HistoryRequest struct {
	Building   string
	RegionCode string
	Anchor     core.YearMonth
	MonthsBack int
	Credential string
}

// SkippedMonth records a month that contributed nothing.
type SkippedMonth struct {
	YearMonth core.YearMonth
	Reason    string // "no_data", or an error kind such as "api_rejected"
	Err       error
}

// HistoryResult holds the matching trades sorted ascending by deal date.
type HistoryResult struct {
	Building     string
	RegionCode   string
	From, To     core.YearMonth
	Transactions []core.Transaction
	Monthly      []core.MonthPoint
	Skipped      []SkippedMonth
}

// Empty reports that no month produced a matching trade.
func (r HistoryResult) Empty() bool {
	return len(r.Transactions) == 0
}

type HistoryOptions struct {
	// Pause is the minimum spacing between consecutive fetches.
	Pause         time.Duration
	DefaultMonths int
	Logger        *applog.Logger
}

// HistoryService aggregates fetch and normalize over a range of months,
// one request at a time.
type HistoryService struct {
	fetcher       source.TransactionFetcher
	pause         time.Duration
	defaultMonths int
	log           *applog.StructuredLogger
	logger        *applog.Logger
}

func NewHistoryService(fetcher source.TransactionFetcher, opts HistoryOptions) *HistoryService {
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.DefaultMonths < 1 || opts.DefaultMonths > MaxHistoryMonths {
		opts.DefaultMonths = DefaultHistoryMonths
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHistory)
	return &HistoryService{
		fetcher:       fetcher,
		pause:         opts.Pause,
		defaultMonths: opts.DefaultMonths,
		log:           applog.NewStructuredLogger(logger),
		logger:        logger,
	}
}

// FetchHistory walks offsets 0..MonthsBack-1 back from the anchor. Months that
// fail or have no data are skipped and listed in the result. The only errors
// returned are request validation failures, a missing credential (which no
// later month can fix) and context cancellation.
func (s *HistoryService) FetchHistory(ctx context.Context, req HistoryRequest) (HistoryResult, error) {
	building := NormalizeName(req.Building)
	if building == "" {
		return HistoryResult{}, &core.ValidationError{Field: "building", Value: req.Building, Reason: "must not be empty"}
	}
	months := req.MonthsBack
	if months == 0 {
		months = s.defaultMonths
	}
	if months < 1 || months > MaxHistoryMonths {
		return HistoryResult{}, &core.ValidationError{
			Field:  "monthsBack",
			Value:  strconv.Itoa(req.MonthsBack),
			Reason: fmt.Sprintf("must be between 1 and %d", MaxHistoryMonths),
		}
	}
	base := core.TransactionQuery{RegionCode: req.RegionCode, YearMonth: req.Anchor, Credential: req.Credential}
	if err := base.Validate(); err != nil {
		return HistoryResult{}, err
	}

	start := time.Now()
	out := HistoryResult{
		Building:   building,
		RegionCode: req.RegionCode,
		From:       req.Anchor.AddMonths(-(months - 1)),
		To:         req.Anchor,
	}

	limit := rate.Inf
	if s.pause > 0 {
		limit = rate.Every(s.pause)
	}
	pacer := rate.NewLimiter(limit, 1)

	for offset := 0; offset < months; offset++ {
		if err := pacer.Wait(ctx); err != nil {
			return HistoryResult{}, err
		}
		ym := req.Anchor.AddMonths(-offset)
		rows, skip := s.fetchMonth(ctx, base.WithYearMonth(ym), building)
		if err := ctx.Err(); err != nil {
			return HistoryResult{}, err
		}
		if skip != nil && errors.Is(skip.Err, core.ErrMissingCredential) {
			return HistoryResult{}, skip.Err
		}
		if skip != nil {
			out.Skipped = append(out.Skipped, *skip)
			continue
		}
		out.Transactions = append(out.Transactions, rows...)
	}

	sortByDealDate(out.Transactions)
	out.Monthly = core.MonthlyMeans(out.Transactions)

	s.log.LogHistory(ctx, req.RegionCode, building, months, len(out.Transactions), len(out.Skipped),
		time.Since(start).Milliseconds())
	return out, nil
}

func (s *HistoryService) fetchMonth(ctx context.Context, q core.TransactionQuery, building string) ([]core.Transaction, *SkippedMonth) {
	res, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		s.logger.DebugContext(ctx, "Skipping month after fetch failure",
			applog.FieldDealYMD, q.YearMonth.String(), applog.FieldError, err.Error())
		return nil, &SkippedMonth{YearMonth: q.YearMonth, Reason: kindOf(ctx, err), Err: err}
	}
	if res.Empty() {
		return nil, &SkippedMonth{YearMonth: q.YearMonth, Reason: "no_data"}
	}
	txs, err := core.Normalize(res.Items)
	if err != nil {
		s.logger.DebugContext(ctx, "Skipping month after normalize failure",
			applog.FieldDealYMD, q.YearMonth.String(), applog.FieldError, err.Error())
		return nil, &SkippedMonth{YearMonth: q.YearMonth, Reason: kindOf(ctx, err), Err: err}
	}

	var matched []core.Transaction
	for _, t := range txs {
		if NormalizeName(t.Name) == building {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// NormalizeName puts a building name in NFC form with collapsed whitespace,
// so decomposed Hangul from different sources compares equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// sortByDealDate orders ascending by deal date; undated rows go last.
func sortByDealDate(ts []core.Transaction) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i].DealDate, ts[j].DealDate
		if a.IsEmpty() || b.IsEmpty() {
			return !a.IsEmpty() && b.IsEmpty()
		}
		return a.Before(b.Time)
	})
}
