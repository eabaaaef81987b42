package services

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"aptprice/internal/core"
	applog "aptprice/internal/log"
)

// fakeFetcher returns canned results keyed by DEAL_YMD and records call order.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]core.FetchResult
	errs    map[string]error
	calls   []string
	times   []time.Time
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: map[string]core.FetchResult{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, q core.TransactionQuery) (core.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ym := q.YearMonth.String()
	f.calls = append(f.calls, ym)
	f.times = append(f.times, time.Now())
	if err, ok := f.errs[ym]; ok {
		return core.FetchResult{}, err
	}
	res := f.results[ym]
	res.Query = q
	return res, nil
}

func item(name, amount, year, month, day string) core.RawItem {
	return core.RawItem{
		"aptNm":      name,
		"umdNm":      "역삼동",
		"dealAmount": amount,
		"excluUseAr": "84.5",
		"floor":      "10",
		"buildYear":  "2010",
		"dealYear":   year,
		"dealMonth":  month,
		"dealDay":    day,
	}
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Writer: io.Discard})
}

func mustQuery(t *testing.T, ym string) core.TransactionQuery {
	t.Helper()
	q, err := core.NewQuery("11680", ym, "key")
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return q
}

func TestLookupSuccess(t *testing.T) {
	f := newFakeFetcher()
	f.results["202310"] = core.FetchResult{
		Items:      []core.RawItem{item("A", "50,000", "2023", "10", "5"), item("B", "70,000", "2023", "10", "9")},
		TotalCount: 2,
	}
	svc := NewLookupService(f, quietLogger())

	res, err := svc.Lookup(context.Background(), mustQuery(t, "202310"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Empty || len(res.Transactions) != 2 || res.Raw != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Summary.Count != 2 || res.Summary.Mean != 60000 || res.Summary.Max != 70000 || res.Summary.Min != 50000 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
}

func TestLookupEmpty(t *testing.T) {
	svc := NewLookupService(newFakeFetcher(), quietLogger())
	res, err := svc.Lookup(context.Background(), mustQuery(t, "202310"))
	if err != nil || !res.Empty {
		t.Fatalf("expected explicit empty result, got %+v (err=%v)", res, err)
	}
}

func TestLookupSchemaErrorReturnsRaw(t *testing.T) {
	f := newFakeFetcher()
	bad := item("A", "50,000", "2023", "10", "5")
	delete(bad, "excluUseAr")
	f.results["202310"] = core.FetchResult{Items: []core.RawItem{bad}}
	svc := NewLookupService(f, quietLogger())

	res, err := svc.Lookup(context.Background(), mustQuery(t, "202310"))
	var se *core.SchemaError
	if !errors.As(err, &se) || se.Field != "excluUseAr" {
		t.Fatalf("expected MissingField(excluUseAr), got %v", err)
	}
	if len(res.Raw) != 1 || res.Raw[0]["aptNm"] != "A" {
		t.Fatalf("expected raw fallback rows, got %+v", res.Raw)
	}
}

func TestLookupFetchError(t *testing.T) {
	f := newFakeFetcher()
	f.errs["202310"] = &core.FetchError{Kind: core.FetchRejected, Code: "99", Message: "INVALID_REQUEST_PARAMETER"}
	svc := NewLookupService(f, quietLogger())

	_, err := svc.Lookup(context.Background(), mustQuery(t, "202310"))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Code != "99" {
		t.Fatalf("expected ApiRejected 99, got %v", err)
	}
}

func TestHistoryPartialFailure(t *testing.T) {
	f := newFakeFetcher()
	f.results["202310"] = core.FetchResult{Items: []core.RawItem{
		item("A", "52,000", "2023", "10", "5"),
		item("Other", "10,000", "2023", "10", "1"),
	}}
	f.errs["202309"] = &core.FetchError{Kind: core.FetchTransport}
	f.results["202308"] = core.FetchResult{Items: []core.RawItem{item("A", "50,000", "2023", "8", "20")}}

	svc := NewHistoryService(f, HistoryOptions{Logger: quietLogger()})
	res, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building:   "A",
		RegionCode: "11680",
		Anchor:     core.YearMonth{Year: 2023, Month: 10},
		MonthsBack: 3,
		Credential: "key",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("expected rows from months 1 and 3, got %d", len(res.Transactions))
	}
	if res.Transactions[0].DealAmount != 50000 || res.Transactions[1].DealAmount != 52000 {
		t.Fatalf("expected ascending by date, got %+v", res.Transactions)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].YearMonth.String() != "202309" || res.Skipped[0].Reason != "transport" {
		t.Fatalf("unexpected skipped months %+v", res.Skipped)
	}
	want := []string{"202310", "202309", "202308"}
	for i, ym := range want {
		if f.calls[i] != ym {
			t.Fatalf("call %d expected %s, got %s", i, ym, f.calls[i])
		}
	}
	if res.From.String() != "202308" || res.To.String() != "202310" {
		t.Fatalf("unexpected range %s-%s", res.From, res.To)
	}
	if len(res.Monthly) != 2 {
		t.Fatalf("expected 2 monthly points, got %d", len(res.Monthly))
	}
}

func TestHistoryClientTimeoutIsTransport(t *testing.T) {
	f := newFakeFetcher()
	f.errs["202310"] = &core.FetchError{
		Kind: core.FetchTransport,
		Err:  &url.Error{Op: "Get", URL: "http://rtms.test", Err: context.DeadlineExceeded},
	}
	f.results["202309"] = core.FetchResult{Items: []core.RawItem{item("A", "50,000", "2023", "9", "3")}}

	svc := NewHistoryService(f, HistoryOptions{Logger: quietLogger()})
	res, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building:   "A",
		RegionCode: "11680",
		Anchor:     core.YearMonth{Year: 2023, Month: 10},
		MonthsBack: 2,
		Credential: "key",
	})
	if err != nil {
		t.Fatalf("a slow month must not abort the walk: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "transport" {
		t.Fatalf("expected the timed-out month skipped as transport, got %+v", res.Skipped)
	}
	if len(res.Transactions) != 1 {
		t.Fatalf("expected the later month still fetched, got %d rows", len(res.Transactions))
	}
}

func TestKindOf(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	timeout := &core.FetchError{Kind: core.FetchTransport, Err: context.DeadlineExceeded}

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want string
	}{
		{"nil", context.Background(), nil, ""},
		{"client timeout", context.Background(), timeout, "transport"},
		{"caller gone", canceled, timeout, "canceled"},
		{"bare deadline", context.Background(), context.DeadlineExceeded, "canceled"},
		{"schema", context.Background(), &core.SchemaError{Kind: core.MissingField}, "missing_field"},
		{"unknown", context.Background(), errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindOf(tt.ctx, tt.err); got != tt.want {
				t.Fatalf("kindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistorySkipsSchemaErrorsAndEmptyMonths(t *testing.T) {
	f := newFakeFetcher()
	bad := item("A", "5만", "2023", "10", "5")
	f.results["202310"] = core.FetchResult{Items: []core.RawItem{bad}}
	f.results["202308"] = core.FetchResult{Items: []core.RawItem{item("A", "1,000", "2023", "8", "2")}}

	svc := NewHistoryService(f, HistoryOptions{Logger: quietLogger()})
	res, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 10}, MonthsBack: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Transactions) != 1 || len(res.Skipped) != 2 {
		t.Fatalf("unexpected result: %d rows, skipped %+v", len(res.Transactions), res.Skipped)
	}
	reasons := map[string]string{}
	for _, s := range res.Skipped {
		reasons[s.YearMonth.String()] = s.Reason
	}
	if reasons["202310"] != "bad_numeric_value" || reasons["202309"] != "no_data" {
		t.Fatalf("unexpected reasons %v", reasons)
	}
}

func TestHistoryAllEmpty(t *testing.T) {
	svc := NewHistoryService(newFakeFetcher(), HistoryOptions{Logger: quietLogger()})
	res, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 10}, MonthsBack: 4,
	})
	if err != nil {
		t.Fatalf("expected no aggregator error, got %v", err)
	}
	if !res.Empty() || len(res.Skipped) != 4 {
		t.Fatalf("expected explicit empty result with 4 skipped months, got %+v", res)
	}
}

func TestHistoryDefaultsTo36Months(t *testing.T) {
	f := newFakeFetcher()
	svc := NewHistoryService(f, HistoryOptions{Logger: quietLogger()})
	_, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.calls) != 36 {
		t.Fatalf("expected 36 fetches, got %d", len(f.calls))
	}
	if f.calls[35] != "202011" {
		t.Fatalf("expected last month 202011, got %s", f.calls[35])
	}
}

func TestHistoryValidation(t *testing.T) {
	svc := NewHistoryService(newFakeFetcher(), HistoryOptions{Logger: quietLogger()})
	anchor := core.YearMonth{Year: 2023, Month: 10}
	cases := []HistoryRequest{
		{Building: " ", RegionCode: "11680", Anchor: anchor},
		{Building: "A", RegionCode: "116", Anchor: anchor},
		{Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 13}},
		{Building: "A", RegionCode: "11680", Anchor: anchor, MonthsBack: -1},
		{Building: "A", RegionCode: "11680", Anchor: anchor, MonthsBack: 121},
	}
	for i, req := range cases {
		if _, err := svc.FetchHistory(context.Background(), req); !errors.Is(err, core.ErrInvalidQuery) {
			t.Fatalf("case %d expected ErrInvalidQuery, got %v", i, err)
		}
	}
}

func TestHistoryStopsOnMissingCredential(t *testing.T) {
	f := newFakeFetcher()
	f.errs["202310"] = core.ErrMissingCredential
	svc := NewHistoryService(f, HistoryOptions{Logger: quietLogger()})
	_, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 10}, MonthsBack: 12,
	})
	if !errors.Is(err, core.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(f.calls))
	}
}

func TestHistoryPacesRequests(t *testing.T) {
	f := newFakeFetcher()
	svc := NewHistoryService(f, HistoryOptions{Pause: 30 * time.Millisecond, Logger: quietLogger()})
	_, err := svc.FetchHistory(context.Background(), HistoryRequest{
		Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 10}, MonthsBack: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(f.times); i++ {
		if gap := f.times[i].Sub(f.times[i-1]); gap < 20*time.Millisecond {
			t.Fatalf("expected pause between requests, gap %d was %v", i, gap)
		}
	}
}

func TestHistoryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewHistoryService(newFakeFetcher(), HistoryOptions{Pause: time.Second, Logger: quietLogger()})
	_, err := svc.FetchHistory(ctx, HistoryRequest{
		Building: "A", RegionCode: "11680", Anchor: core.YearMonth{Year: 2023, Month: 10}, MonthsBack: 3,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	decomposed := "\u1105\u1162\u1106\u1175\u110b\u1161\u11ab" // 래미안 as conjoining jamo
	if NormalizeName(decomposed) != "래미안" {
		t.Fatalf("expected NFC composition, got %q", NormalizeName(decomposed))
	}
	if NormalizeName("  래미안   대치  ") != "래미안 대치" {
		t.Fatalf("expected whitespace collapsed, got %q", NormalizeName("  래미안   대치  "))
	}
}
