package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RTMS item element names.
const (
	FieldName       = "aptNm"
	FieldDistrict   = "umdNm"
	FieldDealAmount = "dealAmount"
	FieldArea       = "excluUseAr"
	FieldFloor      = "floor"
	FieldBuildYear  = "buildYear"
	FieldDealYear   = "dealYear"
	FieldDealMonth  = "dealMonth"
	FieldDealDay    = "dealDay"
)

// RequiredFields lists the fields every item must carry, in checking order.
var RequiredFields = []string{
	FieldName,
	FieldDealAmount,
	FieldArea,
	FieldFloor,
	FieldBuildYear,
	FieldDealYear,
	FieldDealMonth,
	FieldDealDay,
}

// legacyAliases maps canonical names to the Korean element names used by the older endpoint.
var legacyAliases = map[string]string{
	FieldName:       "아파트",
	FieldDistrict:   "법정동",
	FieldDealAmount: "거래금액",
	FieldArea:       "전용면적",
	FieldFloor:      "층",
	FieldBuildYear:  "건축년도",
	FieldDealYear:   "년",
	FieldDealMonth:  "월",
	FieldDealDay:    "일",
}

// NormalizeReport carries per-row conditions that did not fail the batch.
type NormalizeReport struct {
	// InvalidDates lists row indexes whose year/month/day did not form a calendar date.
	InvalidDates []int
}

// Lookup returns the value for a canonical field name, falling back to its legacy alias.
func (it RawItem) Lookup(field string) (string, bool) {
	if v, ok := it[field]; ok {
		return strings.TrimSpace(v), true
	}
	if alias, ok := legacyAliases[field]; ok {
		if v, ok := it[alias]; ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Normalize converts raw items into transactions, preserving order.
// Any missing required field or unparseable deal amount fails the whole batch.
func Normalize(items []RawItem) ([]Transaction, error) {
	out, _, err := NormalizeWithReport(items)
	return out, err
}

// NormalizeWithReport is Normalize plus the list of rows whose deal date was unusable.
// Such rows are kept with an empty DealDate.
func NormalizeWithReport(items []RawItem) ([]Transaction, NormalizeReport, error) {
	var report NormalizeReport

	for row, it := range items {
		for _, field := range RequiredFields {
			if _, ok := it.Lookup(field); !ok {
				return nil, report, &SchemaError{Kind: MissingField, Field: field, Row: row}
			}
		}
	}

	out := make([]Transaction, 0, len(items))
	for row, it := range items {
		t, dateOK, err := normalizeItem(row, it)
		if err != nil {
			return nil, report, err
		}
		if !dateOK {
			report.InvalidDates = append(report.InvalidDates, row)
		}
		out = append(out, t)
	}
	return out, report, nil
}

func normalizeItem(row int, it RawItem) (Transaction, bool, error) {
	get := func(field string) string {
		v, _ := it.Lookup(field)
		return v
	}

	raw := get(FieldDealAmount)
	amount, err := ParseManwon(raw)
	if err != nil {
		return Transaction{}, false, &SchemaError{Kind: BadNumericValue, Field: FieldDealAmount, Row: row, Value: raw}
	}

	date, ok := composeDate(get(FieldDealYear), get(FieldDealMonth), get(FieldDealDay))

	return Transaction{
		Name:             get(FieldName),
		District:         get(FieldDistrict),
		DealAmount:       amount,
		ExclusiveAreaSqm: lenientFloat(get(FieldArea)),
		Floor:            lenientInt(get(FieldFloor)),
		BuildYear:        lenientInt(get(FieldBuildYear)),
		DealDate:         date,
	}, ok, nil
}

// composeDate joins the parts as YYYY-MM-DD and parses strictly, so 2023-02-30 is rejected.
func composeDate(year, month, day string) (Date, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil || y < 0 || m < 0 || d < 0 {
		return Date{}, false
	}
	t, err := time.Parse("2006-01-02", fmt.Sprintf("%04d-%02d-%02d", y, m, d))
	if err != nil {
		return Date{}, false
	}
	return Date{Time: t}, true
}

// RawItemFrom re-stringifies a transaction into the RTMS field layout.
// Nil optional fields become empty strings; an empty date yields empty date parts.
func RawItemFrom(t Transaction) RawItem {
	it := RawItem{
		FieldName:       t.Name,
		FieldDistrict:   t.District,
		FieldDealAmount: FormatManwon(t.DealAmount),
		FieldArea:       "",
		FieldFloor:      "",
		FieldBuildYear:  "",
		FieldDealYear:   "",
		FieldDealMonth:  "",
		FieldDealDay:    "",
	}
	if t.ExclusiveAreaSqm != nil {
		it[FieldArea] = strconv.FormatFloat(*t.ExclusiveAreaSqm, 'f', -1, 64)
	}
	if t.Floor != nil {
		it[FieldFloor] = strconv.Itoa(*t.Floor)
	}
	if t.BuildYear != nil {
		it[FieldBuildYear] = strconv.Itoa(*t.BuildYear)
	}
	if !t.DealDate.IsEmpty() {
		it[FieldDealYear] = strconv.Itoa(t.DealDate.Year())
		it[FieldDealMonth] = strconv.Itoa(int(t.DealDate.Month()))
		it[FieldDealDay] = strconv.Itoa(t.DealDate.Day())
	}
	return it
}
