package core

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics over deal amounts (만원).
type Summary struct {
	Count int
	Mean  float64
	Max   int64
	Min   int64
}

// Bin is one equal-width histogram bucket over deal amounts.
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Point pairs exclusive area with deal amount.
type Point struct {
	AreaSqm    float64
	DealAmount int64
}

// MonthPoint aggregates one month of deals for trend charts.
type MonthPoint struct {
	YearMonth YearMonth
	Count     int
	Mean      float64
}

const DefaultHistogramBins = 30

// Summarize returns the zero Summary for an empty slice.
func Summarize(ts []Transaction) Summary {
	if len(ts) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(ts), Max: ts[0].DealAmount, Min: ts[0].DealAmount}
	var total float64
	for _, t := range ts {
		total += float64(t.DealAmount)
		if t.DealAmount > s.Max {
			s.Max = t.DealAmount
		}
		if t.DealAmount < s.Min {
			s.Min = t.DealAmount
		}
	}
	s.Mean = total / float64(len(ts))
	return s
}

// Histogram splits [min, max] into equal-width bins; the last bin is closed on both ends.
// When every amount is equal a single bin holds all rows.
func Histogram(ts []Transaction, bins int) []Bin {
	if len(ts) == 0 {
		return nil
	}
	if bins < 1 {
		bins = DefaultHistogramBins
	}
	s := Summarize(ts)
	lo, hi := float64(s.Min), float64(s.Max)
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(ts)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, t := range ts {
		idx := int(math.Floor((float64(t.DealAmount) - lo) / width))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

// ScatterPoints skips rows without an exclusive area.
func ScatterPoints(ts []Transaction) []Point {
	out := make([]Point, 0, len(ts))
	for _, t := range ts {
		if t.ExclusiveAreaSqm == nil {
			continue
		}
		out = append(out, Point{AreaSqm: *t.ExclusiveAreaSqm, DealAmount: t.DealAmount})
	}
	return out
}

// BuildingNames returns the distinct non-empty names, sorted.
func BuildingNames(ts []Transaction) []string {
	seen := make(map[string]struct{}, len(ts))
	var names []string
	for _, t := range ts {
		if t.Name == "" {
			continue
		}
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// MonthlyMeans groups dated rows by deal month, ascending.
func MonthlyMeans(ts []Transaction) []MonthPoint {
	type acc struct {
		count int
		total float64
	}
	byMonth := make(map[YearMonth]*acc)
	for _, t := range ts {
		if t.DealDate.IsEmpty() {
			continue
		}
		ym := YearMonthOf(t.DealDate.Time)
		a, ok := byMonth[ym]
		if !ok {
			a = &acc{}
			byMonth[ym] = a
		}
		a.count++
		a.total += float64(t.DealAmount)
	}

	out := make([]MonthPoint, 0, len(byMonth))
	for ym, a := range byMonth {
		out = append(out, MonthPoint{YearMonth: ym, Count: a.count, Mean: a.total / float64(a.count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YearMonth.Before(out[j].YearMonth) })
	return out
}
