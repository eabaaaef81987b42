package http

import (
	"context"
	"net/http"

	"aptprice/internal/core"
	"aptprice/internal/services"
)

// handleHistory renders one building's trend over the trailing window.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errorFragment(http.StatusBadRequest, "요청 형식이 올바르지 않습니다").Write(w)
		return
	}
	params := ParseHistoryParams(r.PostForm)
	view, q := s.runHistory(r.Context(), params, s.credential(r, r.PostForm.Get("service_key")))

	b := NewHTMXResponse()
	if view.Error != nil {
		b.Status(view.Error.Status)
		logFailure(r.Context(), "History failed", *view.Error, q)
	} else {
		b.TriggerHistoryLoaded(view.Building, len(view.Rows), len(view.Skipped))
	}
	s.renderResult(w, r, b, "history_result.html", view, func(iv *indexView) { iv.History = view })
}

// runHistory validates the anchor month here; region and building are
// validated by the history service.
func (s *Server) runHistory(ctx context.Context, params HistoryParams, key string) (*historyView, core.TransactionQuery) {
	view := &historyView{
		Building:    params.Building,
		Region:      params.Region,
		RegionLabel: districtLabel(params.Region),
	}
	q := core.TransactionQuery{RegionCode: params.Region}

	res, err := s.fetchHistory(ctx, params, key)
	if err != nil {
		ev := describeError(err)
		view.Error = &ev
		return view, q
	}
	q.YearMonth = res.To

	view.Building = res.Building
	view.From = koreanMonth(res.From)
	view.To = koreanMonth(res.To)
	view.Months = monthsBetween(res.From, res.To)
	view.Empty = res.Empty()
	view.Rows = rowsOf(res.Transactions)
	view.Chart = historyChartOf(res)
	for _, sk := range res.Skipped {
		view.Skipped = append(view.Skipped, skippedView{
			Month:  sk.YearMonth.Label(),
			Reason: skipReasonLabel(sk.Reason),
		})
	}
	return view, q
}

func (s *Server) fetchHistory(ctx context.Context, params HistoryParams, key string) (services.HistoryResult, error) {
	anchor, err := core.ParseYearMonth(params.YearMonth)
	if err != nil {
		return services.HistoryResult{}, err
	}
	months, err := parseMonths(params.Months)
	if err != nil {
		return services.HistoryResult{}, err
	}
	return s.history.FetchHistory(ctx, services.HistoryRequest{
		Building:   params.Building,
		RegionCode: params.Region,
		Anchor:     anchor,
		MonthsBack: months,
		Credential: key,
	})
}

func monthsBetween(from, to core.YearMonth) int {
	return (to.Year-from.Year)*12 + (to.Month - from.Month) + 1
}
