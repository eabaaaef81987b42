// Package core provides the transaction model and the parsing rules that turn
// raw RTMS text fields into typed values.
//
// This file contains the numeric coercions: a strict parser for deal amounts
// and lenient parsers for the visualization-only fields.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

var errNotNumeric = errors.New("not numeric")

// ParseManwon parses a deal amount in 만원 units.
//
// Surrounding whitespace and thousands separators are removed before parsing.
// Only non-negative integers are accepted.
//
// Examples:
//
//	ParseManwon("50,000")    -> 50000, nil
//	ParseManwon("  125,500") -> 125500, nil
//	ParseManwon("12.5")      -> 0, error
func ParseManwon(s string) (int64, error) {
	s = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, errNotNumeric
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotNumeric
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errNotNumeric
	}
	return v, nil
}

// FormatManwon renders an amount with thousands separators, the inverse of ParseManwon.
func FormatManwon(v int64) string {
	return humanize.Comma(v)
}

// lenientFloat drops anything that is not a finite number, so "NaN" and
// "Inf" never reach the charts or the JSON encoder.
func lenientFloat(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// lenientInt accepts integral values only; "10.0" is accepted, "10.5" is not.
func lenientInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return &i
	}
	f := lenientFloat(s)
	if f == nil || *f != float64(int(*f)) {
		return nil
	}
	i := int(*f)
	return &i
}
