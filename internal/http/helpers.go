package http

import (
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"aptprice/internal/core"
)

const placeholder = "-"

// District is a selectable 시군구 preset.
type District struct {
	Code  string
	Label string
}

// districtPresets lists the Seoul districts offered in the form.
var districtPresets = []District{
	{Code: "11680", Label: "강남구"},
	{Code: "11650", Label: "서초구"},
	{Code: "11710", Label: "송파구"},
	{Code: "11170", Label: "용산구"},
	{Code: "11200", Label: "성동구"},
	{Code: "11440", Label: "마포구"},
}

// districtLabel returns "강남구 (11680)" for presets and the bare code otherwise.
func districtLabel(code string) string {
	for _, d := range districtPresets {
		if d.Code == code {
			return d.Label + " (" + code + ")"
		}
	}
	return code
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"manwon":  formatManwon,
		"meanwon": formatMeanManwon,
		"krw":     formatKRW,
		"area":    formatArea,
		"pyeong":  formatPyeong,
		"optint":  formatOptInt,
		"count":   formatCount,
	}
}

// formatManwon renders an amount in 만원 with thousands separators, e.g. "52,000만원".
func formatManwon(v int64) string {
	return humanize.Comma(v) + "만원"
}

func formatMeanManwon(v float64) string {
	return formatManwon(int64(math.Round(v)))
}

// formatKRW renders 만원 amounts in 억 units, e.g. 52000 -> "5억 2,000만원".
func formatKRW(v int64) string {
	if v < 0 {
		return "-" + formatKRW(-v)
	}
	eok, rest := v/10000, v%10000
	switch {
	case eok == 0:
		return formatManwon(rest)
	case rest == 0:
		return humanize.Comma(eok) + "억"
	default:
		return humanize.Comma(eok) + "억 " + formatManwon(rest)
	}
}

func formatArea(v *float64) string {
	if v == nil {
		return placeholder
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatPyeong(v *float64) string {
	if v == nil {
		return placeholder
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func formatOptInt(v *int) string {
	if v == nil {
		return placeholder
	}
	return strconv.Itoa(*v)
}

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func formatDate(d core.Date) string {
	if d.IsEmpty() {
		return placeholder
	}
	return d.String()
}

// koreanMonth renders "2023년 10월".
func koreanMonth(ym core.YearMonth) string {
	return fmt.Sprintf("%d년 %02d월", ym.Year, ym.Month)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
