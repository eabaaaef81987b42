package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"aptprice/internal/core"
	"aptprice/internal/services"
)

// errorView describes a failed request for templates and JSON.
type errorView struct {
	Status  int    `json:"-"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Body    string `json:"body,omitempty"`
}

// maxBodyExcerpt caps the upstream body shown after a malformed response.
const maxBodyExcerpt = 4 << 10

func bodyExcerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		body = body[:maxBodyExcerpt]
	}
	return strings.ToValidUTF8(string(body), "")
}

// describeError maps the error taxonomy onto HTTP statuses: 400 for bad
// input, 422 for schema drift, 502 for upstream failures.
func describeError(err error) errorView {
	ev := errorView{Status: http.StatusInternalServerError, Error: err.Error(), Kind: core.ErrorKind(err)}

	var (
		ve *core.ValidationError
		se *core.SchemaError
		fe *core.FetchError
	)
	switch {
	case errors.As(err, &ve):
		ev.Status = http.StatusBadRequest
		ev.Field = ve.Field
		ev.Message = ve.Reason
	case errors.Is(err, core.ErrMissingCredential):
		ev.Status = http.StatusBadRequest
		ev.Field = "serviceKey"
		ev.Message = "서비스 키가 필요합니다"
	case errors.As(err, &se):
		ev.Status = http.StatusUnprocessableEntity
		ev.Field = se.Field
	case errors.As(err, &fe):
		ev.Status = http.StatusBadGateway
		ev.Code = fe.Code
		ev.Message = fe.Message
		ev.Body = bodyExcerpt(fe.Body)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		ev.Status = http.StatusGatewayTimeout
		ev.Kind = "canceled"
	default:
		ev.Error = "internal error"
	}
	return ev
}

// rowView is one rendered transaction.
type rowView struct {
	Name      string
	District  string
	Amount    string
	Area      string
	Pyeong    string
	Floor     string
	BuildYear string
	Date      string
}

func rowsOf(ts []core.Transaction) []rowView {
	out := make([]rowView, len(ts))
	for i, t := range ts {
		out[i] = rowView{
			Name:      t.Name,
			District:  t.District,
			Amount:    formatManwon(t.DealAmount),
			Area:      formatArea(t.ExclusiveAreaSqm),
			Pyeong:    formatPyeong(t.Pyeong()),
			Floor:     formatOptInt(t.Floor),
			BuildYear: formatOptInt(t.BuildYear),
			Date:      formatDate(t.DealDate),
		}
	}
	return out
}

// rawTable is the unnormalized fallback shown on schema errors.
type rawTable struct {
	Columns []string
	Rows    [][]string
}

// buildRawTable lists required fields first, then any other keys alphabetically.
func buildRawTable(items []core.RawItem) *rawTable {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range core.RequiredFields {
		seen[f] = true
		cols = append(cols, f)
	}
	var extra []string
	for _, it := range items {
		for k := range it {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	cols = append(cols, extra...)

	rows := make([][]string, len(items))
	for i, it := range items {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = it[c]
		}
		rows[i] = row
	}
	return &rawTable{Columns: cols, Rows: rows}
}

type summaryView struct {
	Count string
	Mean  string
	Max   string
	Min   string
}

func summarize(s core.Summary) summaryView {
	return summaryView{
		Count: formatCount(s.Count),
		Mean:  formatMeanManwon(s.Mean),
		Max:   formatManwon(s.Max),
		Min:   formatManwon(s.Min),
	}
}

// Chart series are serialized into the page and drawn client-side.
type (
	histogramBar struct {
		Label string `json:"label"`
		Count int    `json:"count"`
	}

	scatterPoint struct {
		X float64 `json:"x"`
		Y int64   `json:"y"`
	}

	lookupCharts struct {
		Histogram []histogramBar `json:"histogram"`
		Scatter   []scatterPoint `json:"scatter"`
	}

	dealPoint struct {
		Date   string `json:"date"`
		Amount int64  `json:"amount"`
		Area   string `json:"area"`
		Floor  string `json:"floor"`
	}

	monthlyPoint struct {
		Month string  `json:"month"`
		Mean  float64 `json:"mean"`
		Count int     `json:"count"`
	}

	historyChart struct {
		Deals   []dealPoint    `json:"deals"`
		Monthly []monthlyPoint `json:"monthly"`
	}
)

func lookupChartsOf(ts []core.Transaction) lookupCharts {
	bins := core.Histogram(ts, core.DefaultHistogramBins)
	charts := lookupCharts{
		Histogram: make([]histogramBar, len(bins)),
		Scatter:   make([]scatterPoint, 0, len(ts)),
	}
	for i, b := range bins {
		charts.Histogram[i] = histogramBar{
			Label: humanize.Comma(int64(b.Lower)) + "~" + humanize.Comma(int64(b.Upper)),
			Count: b.Count,
		}
	}
	for _, p := range core.ScatterPoints(ts) {
		charts.Scatter = append(charts.Scatter, scatterPoint{X: p.AreaSqm, Y: p.DealAmount})
	}
	return charts
}

func historyChartOf(res services.HistoryResult) historyChart {
	chart := historyChart{
		Deals:   make([]dealPoint, 0, len(res.Transactions)),
		Monthly: make([]monthlyPoint, len(res.Monthly)),
	}
	for _, t := range res.Transactions {
		if t.DealDate.IsEmpty() {
			continue
		}
		chart.Deals = append(chart.Deals, dealPoint{
			Date:   t.DealDate.String(),
			Amount: t.DealAmount,
			Area:   formatArea(t.ExclusiveAreaSqm),
			Floor:  formatOptInt(t.Floor),
		})
	}
	for i, m := range res.Monthly {
		chart.Monthly[i] = monthlyPoint{Month: m.YearMonth.Label(), Mean: m.Mean, Count: m.Count}
	}
	return chart
}

// lookupView feeds lookup_result.html.
type lookupView struct {
	Region        string
	RegionLabel   string
	YearMonth     string
	MonthLabel    string
	Error         *errorView
	Empty         bool
	Truncated     bool
	TotalCount    int
	Rows          []rowView
	Raw           *rawTable
	Summary       summaryView
	Charts        lookupCharts
	Buildings     []string
	InvalidDates  int
	HistoryMonths int
}

// historyView feeds history_result.html.
type historyView struct {
	Building    string
	Region      string
	RegionLabel string
	From, To    string
	Months      int
	Error       *errorView
	Empty       bool
	Rows        []rowView
	Chart       historyChart
	Skipped     []skippedView
}

type skippedView struct {
	Month  string
	Reason string
}

// skipReasonLabel renders the per-month skip reason for the page. A month
// that hit the upstream client timeout is "transport"; a caller that goes
// away aborts the walk, so "canceled" never appears here.
func skipReasonLabel(reason string) string {
	switch reason {
	case "no_data":
		return "거래 없음"
	case "transport":
		return "통신 오류"
	case "api_rejected":
		return "API 거부"
	case "malformed_response":
		return "응답 형식 오류"
	case "missing_field", "bad_numeric_value":
		return "데이터 형식 오류"
	default:
		return reason
	}
}

// indexView feeds index.html. Lookup and History are set when a result is
// rendered as a full page instead of an HTMX partial.
type indexView struct {
	Presets       []District
	DefaultMonth  string
	HasServerKey  bool
	HistoryMonths int
	Lookup        *lookupView
	History       *historyView
}
