package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aptprice/internal/core"
)

// ServiceKeyHeader lets API callers supply their own RTMS key.
const ServiceKeyHeader = "X-Service-Key"

// LookupParams holds the raw region/month selection of a request.
type LookupParams struct {
	Region    string
	YearMonth string
}

// HistoryParams extends LookupParams with the building and window length.
type HistoryParams struct {
	LookupParams
	Building string
	Months   string
}

// ParseLookupParams reads the form or query values. A manually entered
// region code wins over the preset select.
func ParseLookupParams(v url.Values) LookupParams {
	region := sanitizeInput(v.Get("region"))
	if region == "" {
		region = sanitizeInput(v.Get("region_preset"))
	}
	return LookupParams{
		Region:    region,
		YearMonth: normalizeYearMonth(v.Get("ym")),
	}
}

// ParseHistoryParams accepts "building" or its short form "name".
func ParseHistoryParams(v url.Values) HistoryParams {
	building := sanitizeInput(v.Get("building"))
	if building == "" {
		building = sanitizeInput(v.Get("name"))
	}
	return HistoryParams{
		LookupParams: ParseLookupParams(v),
		Building:     building,
		Months:       sanitizeInput(v.Get("months")),
	}
}

// normalizeYearMonth accepts the month-input form "2023-10" as well as "202310".
func normalizeYearMonth(s string) string {
	return core.NormalizeYearMonth(sanitizeInput(s))
}

// parseMonths returns 0 for an empty value so the service default applies.
func parseMonths(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, &core.ValidationError{Field: "months", Value: s, Reason: "must be a positive number"}
	}
	return n, nil
}

// credential picks the key from the form, then the header, then the server default.
func (s *Server) credential(r *http.Request, formValue string) string {
	if k := strings.TrimSpace(formValue); k != "" {
		return k
	}
	if k := strings.TrimSpace(r.Header.Get(ServiceKeyHeader)); k != "" {
		return k
	}
	return s.defaultKey
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
