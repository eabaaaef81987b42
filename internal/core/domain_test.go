package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewQuery(t *testing.T) {
	cases := []struct {
		region string
		ym     string
		ok     bool
	}{
		{"11680", "202310", true},
		{" 11680 ", " 202310 ", true},
		{"1168", "202310", false},
		{"116800", "202310", false},
		{"1168a", "202310", false},
		{"11680", "20231", false},
		{"11680", "202313", false},
		{"11680", "202300", false},
		{"11680", "2023-1", false},
		{"11680", "2023-10", true},
		{"11680", "2023.10", true},
		{"11680", "2023/10", true},
		{"11680", "2023-13", false},
		{"", "", false},
	}
	for i, tc := range cases {
		q, err := NewQuery(tc.region, tc.ym, "key")
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error", i)
			}
			if !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("case %d expected ErrInvalidQuery, got %v", i, err)
			}
			continue
		}
		if q.RegionCode != "11680" || q.YearMonth.String() != "202310" {
			t.Fatalf("case %d unexpected query %+v", i, q)
		}
	}
}

func TestQueryStringOmitsCredential(t *testing.T) {
	q, err := NewQuery("11680", "202310", "secret-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := q.String(); strings.Contains(s, "secret") {
		t.Fatalf("query string leaks credential: %s", s)
	}
}

func TestYearMonthAddMonths(t *testing.T) {
	cases := []struct {
		from YearMonth
		n    int
		want string
	}{
		{YearMonth{2023, 10}, 0, "202310"},
		{YearMonth{2023, 10}, -1, "202309"},
		{YearMonth{2023, 10}, -10, "202212"},
		{YearMonth{2023, 1}, -1, "202212"},
		{YearMonth{2023, 10}, -35, "202011"},
		{YearMonth{2023, 12}, 1, "202401"},
		{YearMonth{2023, 10}, 27, "202601"},
	}
	for _, tc := range cases {
		if got := tc.from.AddMonths(tc.n).String(); got != tc.want {
			t.Fatalf("%s%+d expected %s, got %s", tc.from, tc.n, tc.want, got)
		}
	}
}

func TestYearMonthOrderingAndLabel(t *testing.T) {
	a := YearMonth{2022, 12}
	b := YearMonth{2023, 1}
	if !a.Before(b) || b.Before(a) || a.Before(a) {
		t.Fatalf("unexpected ordering between %s and %s", a, b)
	}
	if b.Label() != "2023-01" {
		t.Fatalf("expected label 2023-01, got %s", b.Label())
	}
	if got := YearMonthOf(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)); got != (YearMonth{2024, 2}) {
		t.Fatalf("unexpected YearMonthOf: %v", got)
	}
}

func TestFetchResultEmpty(t *testing.T) {
	if !(FetchResult{}).Empty() {
		t.Fatalf("expected zero result to be empty")
	}
	if (FetchResult{Items: []RawItem{{"aptNm": "A"}}}).Empty() {
		t.Fatalf("expected populated result to be non-empty")
	}
}

func TestTransactionDisplayHelpers(t *testing.T) {
	area := 84.5
	tx := Transaction{DealAmount: 84500, ExclusiveAreaSqm: &area}
	p := tx.Pyeong()
	if p == nil || *p < 25.55 || *p > 25.57 {
		t.Fatalf("unexpected pyeong %v", p)
	}
	if tx.PricePerSqm() != 1000 {
		t.Fatalf("expected 1000 per sqm, got %v", tx.PricePerSqm())
	}
	if (Transaction{DealAmount: 1}).Pyeong() != nil {
		t.Fatalf("expected nil pyeong without area")
	}
}

func TestDateString(t *testing.T) {
	if NewDate(2023, 10, 5).String() != "2023-10-05" {
		t.Fatalf("unexpected date string %s", NewDate(2023, 10, 5).String())
	}
	if (Date{}).String() != "" {
		t.Fatalf("expected empty string for empty date")
	}
}
