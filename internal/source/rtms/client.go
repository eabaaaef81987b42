// Package rtms implements the MOLIT apartment trade (RTMS) open API client.
package rtms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aptprice/internal/core"
	applog "aptprice/internal/log"
	"aptprice/internal/source"
)

const (
	DefaultBaseURL   = "http://apis.data.go.kr/1613000/RTMSDataSvcAptTradeDev/getRTMSDataSvcAptTradeDev"
	MaxPageSize      = 1000
	DefaultTimeout   = 30 * time.Second
	maxBodyBytes     = 8 << 20
	defaultUserAgent = "aptprice/1.0"
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL    string
	PageSize   int
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues one GET per query. It holds no per-query state.
type Client struct {
	baseURL   string
	pageSize  int
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

var _ source.TransactionFetcher = (*Client)(nil)

// NewClient builds a client; the page size is clamped to the API maximum.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid RTMS base URL %q", base)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(timeout)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   base,
		pageSize:  pageSize,
		userAgent: ua,
		http:      hc,
		logger:    logger.With(applog.FieldComponent, applog.ComponentRTMS),
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Fetch retrieves the first page (up to the page size) of trades for q.
func (c *Client) Fetch(ctx context.Context, q core.TransactionQuery) (core.FetchResult, error) {
	if err := q.Validate(); err != nil {
		return core.FetchResult{}, err
	}
	if q.Credential == "" {
		return core.FetchResult{}, core.ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(q), nil)
	if err != nil {
		return core.FetchResult{}, &core.FetchError{Kind: core.FetchTransport, Err: c.redact(err)}
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return core.FetchResult{}, &core.FetchError{Kind: core.FetchTransport, Err: c.redact(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return core.FetchResult{}, &core.FetchError{Kind: core.FetchTransport, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.FetchResult{}, &core.FetchError{Kind: core.FetchTransport, StatusCode: resp.StatusCode, Body: body}
	}

	items, total, err := ParseResponse(body)
	if err != nil {
		var fe *core.FetchError
		if errors.As(err, &fe) && fe.Kind == core.FetchRejected {
			c.logger.WarnContext(ctx, "RTMS rejected request",
				applog.FieldRegion, q.RegionCode,
				applog.FieldDealYMD, q.YearMonth.String(),
				applog.FieldResultCode, fe.Code,
				applog.FieldResultMsg, fe.Message)
		} else {
			c.logger.WarnContext(ctx, "RTMS response malformed",
				applog.FieldOperation, applog.OpParse,
				applog.FieldRegion, q.RegionCode,
				applog.FieldDealYMD, q.YearMonth.String(),
				applog.FieldError, err)
		}
		return core.FetchResult{}, err
	}

	res := core.FetchResult{
		Query:      q,
		Items:      items,
		TotalCount: total,
		Truncated:  total > len(items),
		FetchedAt:  time.Now(),
	}
	if res.Truncated {
		c.logger.WarnContext(ctx, "RTMS result truncated to one page",
			applog.FieldRegion, q.RegionCode,
			applog.FieldDealYMD, q.YearMonth.String(),
			applog.FieldItems, len(items),
			applog.FieldTotalCount, total)
	}
	c.logger.DebugContext(ctx, "RTMS fetch complete",
		applog.FieldOperation, applog.OpFetch,
		applog.FieldRegion, q.RegionCode,
		applog.FieldDealYMD, q.YearMonth.String(),
		applog.FieldItems, len(items),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

func (c *Client) requestURL(q core.TransactionQuery) string {
	params := url.Values{}
	params.Set("serviceKey", decodeServiceKey(q.Credential))
	params.Set("LAWD_CD", q.RegionCode)
	params.Set("DEAL_YMD", q.YearMonth.String())
	params.Set("pageNo", "1")
	params.Set("numOfRows", strconv.Itoa(c.pageSize))

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + params.Encode()
}

// decodeServiceKey undoes the portal's pre-encoded key form so the key is encoded exactly once.
func decodeServiceKey(key string) string {
	if !strings.Contains(key, "%") {
		return key
	}
	if decoded, err := url.QueryUnescape(key); err == nil {
		return decoded
	}
	return key
}

// redact drops the request URL, which carries the service key, from transport errors.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: c.baseURL, Err: ue.Err}
	}
	return err
}
