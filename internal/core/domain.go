package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	// YearMonth is a DEAL_YMD period selector.
	YearMonth struct {
		Year  int
		Month int // 1-12
	}

	// TransactionQuery selects one region and month at the RTMS source.
	TransactionQuery struct {
		RegionCode string
		YearMonth  YearMonth
		Credential string
	}

	// RawItem holds the text children of one <item> element, keyed by element name.
	RawItem map[string]string

	// Transaction is a normalized apartment sale record.
	Transaction struct {
		Name             string
		District         string
		DealAmount       int64 // 10,000 KRW (만원)
		ExclusiveAreaSqm *float64
		Floor            *int
		BuildYear        *int
		DealDate         Date
	}

	// FetchResult is the outcome of one successful fetch. An empty result is not an error.
	FetchResult struct {
		Query      TransactionQuery
		Items      []RawItem
		TotalCount int
		Truncated  bool
		FetchedAt  time.Time
	}
)

const (
	RegionCodeLength = 5
	sqmPerPyeong     = 3.305785
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date is unset.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format("2006-01-02")
}

var yearMonthSeparators = strings.NewReplacer("-", "", ".", "", "/", "", " ", "")

// NormalizeYearMonth folds "2023-10", "2023.10" and "2023/10" to "202310".
func NormalizeYearMonth(s string) string {
	return yearMonthSeparators.Replace(strings.TrimSpace(s))
}

// ParseYearMonth parses a six digit YYYYMM string. Separated forms such as
// "2023-10" are accepted.
func ParseYearMonth(s string) (YearMonth, error) {
	s = NormalizeYearMonth(s)
	if len(s) != 6 || !isDigits(s) {
		return YearMonth{}, &ValidationError{Field: "yearMonth", Value: s, Reason: "must be 6 digits (YYYYMM)"}
	}
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[4:])
	ym := YearMonth{Year: year, Month: month}
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	return ym, nil
}

// YearMonthOf returns the period containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

func (ym YearMonth) Validate() error {
	if ym.Month < 1 || ym.Month > 12 {
		return &ValidationError{Field: "yearMonth", Value: ym.String(), Reason: "month must be between 01 and 12"}
	}
	if ym.Year < 1900 || ym.Year > 2999 {
		return &ValidationError{Field: "yearMonth", Value: ym.String(), Reason: "year out of range"}
	}
	return nil
}

// String returns the DEAL_YMD form, e.g. "202310".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d%02d", ym.Year, ym.Month)
}

// Label returns a display form, e.g. "2023-10".
func (ym YearMonth) Label() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// AddMonths shifts by whole calendar months; n may be negative.
func (ym YearMonth) AddMonths(n int) YearMonth {
	idx := ym.Year*12 + (ym.Month - 1) + n
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return YearMonth{Year: y, Month: m + 1}
}

// Before reports whether ym is earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// NewQuery validates region and period before any network call is made.
// The credential is passed through as given; backends decide whether they need one.
func NewQuery(regionCode, yearMonth, credential string) (TransactionQuery, error) {
	regionCode = strings.TrimSpace(regionCode)
	if err := ValidateRegionCode(regionCode); err != nil {
		return TransactionQuery{}, err
	}
	ym, err := ParseYearMonth(yearMonth)
	if err != nil {
		return TransactionQuery{}, err
	}
	return TransactionQuery{
		RegionCode: regionCode,
		YearMonth:  ym,
		Credential: strings.TrimSpace(credential),
	}, nil
}

// ValidateRegionCode checks the LAWD_CD shape.
func ValidateRegionCode(code string) error {
	if len(code) != RegionCodeLength || !isDigits(code) {
		return &ValidationError{Field: "regionCode", Value: code, Reason: "must be 5 digits"}
	}
	return nil
}

func (q TransactionQuery) Validate() error {
	if err := ValidateRegionCode(q.RegionCode); err != nil {
		return err
	}
	return q.YearMonth.Validate()
}

// WithYearMonth returns a copy of q for another period.
func (q TransactionQuery) WithYearMonth(ym YearMonth) TransactionQuery {
	q.YearMonth = ym
	return q
}

// String omits the credential.
func (q TransactionQuery) String() string {
	return q.RegionCode + "/" + q.YearMonth.String()
}

// Empty reports the explicit "no data" outcome.
func (r FetchResult) Empty() bool {
	return len(r.Items) == 0
}

// Pyeong converts the exclusive area for display; nil when the area is unknown.
func (t Transaction) Pyeong() *float64 {
	if t.ExclusiveAreaSqm == nil {
		return nil
	}
	p := *t.ExclusiveAreaSqm / sqmPerPyeong
	return &p
}

// PricePerSqm returns 만원 per m², or 0 when the area is unknown or zero.
func (t Transaction) PricePerSqm() float64 {
	if t.ExclusiveAreaSqm == nil || *t.ExclusiveAreaSqm <= 0 {
		return 0
	}
	return float64(t.DealAmount) / *t.ExclusiveAreaSqm
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
