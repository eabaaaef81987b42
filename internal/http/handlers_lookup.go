package http

import (
	"context"
	"net/http"

	"aptprice/internal/core"
	"aptprice/internal/services"
)

// handleLookup renders the region/month result: metrics, table, charts and
// the building picker. Schema errors fall back to the raw item table.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errorFragment(http.StatusBadRequest, "요청 형식이 올바르지 않습니다").Write(w)
		return
	}
	params := ParseLookupParams(r.PostForm)
	view, q := s.runLookup(r.Context(), params, s.credential(r, r.PostForm.Get("service_key")))

	b := NewHTMXResponse()
	switch {
	case view.Error != nil:
		b.Status(view.Error.Status)
		logFailure(r.Context(), "Lookup failed", *view.Error, q)
	case !view.Empty:
		b.TriggerLookupCompleted(view.Region, view.YearMonth, len(view.Rows))
	}
	if view.Truncated {
		b.Notice(NoticeWarning, truncationNotice(len(view.Rows), view.TotalCount))
	}
	s.renderResult(w, r, b, "lookup_result.html", view, func(iv *indexView) { iv.Lookup = view })
}

func (s *Server) runLookup(ctx context.Context, params LookupParams, key string) (*lookupView, core.TransactionQuery) {
	view := &lookupView{
		Region:        params.Region,
		RegionLabel:   districtLabel(params.Region),
		YearMonth:     params.YearMonth,
		HistoryMonths: s.historyMonths,
	}

	q, err := core.NewQuery(params.Region, params.YearMonth, key)
	if err != nil {
		ev := describeError(err)
		view.Error = &ev
		return view, q
	}
	view.YearMonth = q.YearMonth.String()
	view.MonthLabel = koreanMonth(q.YearMonth)

	res, err := s.lookup.Lookup(ctx, q)
	view.Truncated = res.Truncated
	view.TotalCount = res.TotalCount
	if err != nil {
		ev := describeError(err)
		view.Error = &ev
		if len(res.Raw) > 0 {
			view.Raw = buildRawTable(res.Raw)
		}
		return view, q
	}
	if res.Empty {
		view.Empty = true
		return view, q
	}

	fillLookupView(view, res)
	return view, q
}

func fillLookupView(view *lookupView, res services.LookupResult) {
	view.Rows = rowsOf(res.Transactions)
	view.Summary = summarize(res.Summary)
	view.Charts = lookupChartsOf(res.Transactions)
	view.Buildings = core.BuildingNames(res.Transactions)
	view.InvalidDates = len(res.InvalidDates)
}
