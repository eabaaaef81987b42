package http

import (
	"net/http"

	"aptprice/internal/core"
	"aptprice/internal/services"
)

type (
	transactionJSON struct {
		Name             string   `json:"name"`
		District         string   `json:"district,omitempty"`
		DealAmount       int64    `json:"deal_amount"`
		ExclusiveAreaSqm *float64 `json:"exclusive_area_sqm"`
		Pyeong           *float64 `json:"pyeong"`
		Floor            *int     `json:"floor"`
		BuildYear        *int     `json:"build_year"`
		DealDate         *string  `json:"deal_date"`
	}

	summaryJSON struct {
		Count int     `json:"count"`
		Mean  float64 `json:"mean"`
		Max   int64   `json:"max"`
		Min   int64   `json:"min"`
	}

	lookupResponse struct {
		Region       string            `json:"region"`
		YearMonth    string            `json:"ym"`
		Empty        bool              `json:"empty"`
		TotalCount   int               `json:"total_count"`
		Truncated    bool              `json:"truncated"`
		Summary      summaryJSON       `json:"summary"`
		Transactions []transactionJSON `json:"transactions"`
		InvalidDates []int             `json:"invalid_dates,omitempty"`
	}

	skippedJSON struct {
		YearMonth string `json:"ym"`
		Reason    string `json:"reason"`
	}

	monthlyJSON struct {
		YearMonth string  `json:"ym"`
		Count     int     `json:"count"`
		Mean      float64 `json:"mean"`
	}

	historyResponse struct {
		Building     string            `json:"building"`
		Region       string            `json:"region"`
		From         string            `json:"from"`
		To           string            `json:"to"`
		Empty        bool              `json:"empty"`
		Transactions []transactionJSON `json:"transactions"`
		Monthly      []monthlyJSON     `json:"monthly"`
		Skipped      []skippedJSON     `json:"skipped"`
	}

	// apiError adds the raw items to the error payload on schema failures.
	apiError struct {
		errorView
		Raw []core.RawItem `json:"raw,omitempty"`
	}
)

func transactionsJSON(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(ts))
	for i, t := range ts {
		out[i] = transactionJSON{
			Name:             t.Name,
			District:         t.District,
			DealAmount:       t.DealAmount,
			ExclusiveAreaSqm: t.ExclusiveAreaSqm,
			Pyeong:           t.Pyeong(),
			Floor:            t.Floor,
			BuildYear:        t.BuildYear,
		}
		if !t.DealDate.IsEmpty() {
			d := t.DealDate.String()
			out[i].DealDate = &d
		}
	}
	return out
}

// handleAPITransactions is the JSON form of POST /lookup.
func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	params := ParseLookupParams(r.URL.Query())
	q, err := core.NewQuery(params.Region, params.YearMonth, s.credential(r, ""))
	if err != nil {
		s.writeAPIError(w, r, err, nil, q)
		return
	}

	res, err := s.lookup.Lookup(r.Context(), q)
	if err != nil {
		s.writeAPIError(w, r, err, res.Raw, q)
		return
	}

	writeJSON(w, r, http.StatusOK, LookupJSON(res))
}

// LookupJSON is the /api/transactions payload; cmd/aptprice-lookup -json
// prints the same shape.
func LookupJSON(res services.LookupResult) any {
	return lookupResponse{
		Region:     res.Query.RegionCode,
		YearMonth:  res.Query.YearMonth.String(),
		Empty:      res.Empty,
		TotalCount: res.TotalCount,
		Truncated:  res.Truncated,
		Summary: summaryJSON{
			Count: res.Summary.Count,
			Mean:  res.Summary.Mean,
			Max:   res.Summary.Max,
			Min:   res.Summary.Min,
		},
		Transactions: transactionsJSON(res.Transactions),
		InvalidDates: res.InvalidDates,
	}
}

// handleAPIHistory is the JSON form of POST /history.
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	params := ParseHistoryParams(r.URL.Query())
	res, err := s.fetchHistory(r.Context(), params, s.credential(r, ""))
	if err != nil {
		s.writeAPIError(w, r, err, nil, core.TransactionQuery{RegionCode: params.Region})
		return
	}

	writeJSON(w, r, http.StatusOK, HistoryJSON(res))
}

// HistoryJSON is the /api/history payload.
func HistoryJSON(res services.HistoryResult) any {
	out := historyResponse{
		Building:     res.Building,
		Region:       res.RegionCode,
		From:         res.From.String(),
		To:           res.To.String(),
		Empty:        res.Empty(),
		Transactions: transactionsJSON(res.Transactions),
		Monthly:      make([]monthlyJSON, len(res.Monthly)),
		Skipped:      make([]skippedJSON, len(res.Skipped)),
	}
	for i, m := range res.Monthly {
		out.Monthly[i] = monthlyJSON{YearMonth: m.YearMonth.String(), Count: m.Count, Mean: m.Mean}
	}
	for i, sk := range res.Skipped {
		out.Skipped[i] = skippedJSON{YearMonth: sk.YearMonth.String(), Reason: sk.Reason}
	}
	return out
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error, raw []core.RawItem, q core.TransactionQuery) {
	ev := describeError(err)
	logFailure(r.Context(), "API request failed", ev, q)
	writeJSON(w, r, ev.Status, apiError{errorView: ev, Raw: raw})
}
