// Package marketdata fetches quotes, company profiles and price history from
// the Yahoo Finance public endpoints.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Yahoo rejects requests carrying the default Go user agent.
const userAgent = "Mozilla/5.0 (compatible; finsight-agent/1.0)"

var validRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Logger:     logger,
	}
}

// Quote returns the current price and key valuation metrics for a symbol.
// Fields the exchange does not report (e.g. P/E for unprofitable companies)
// are nil.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var resp quoteResponse
	query := url.Values{"symbols": {symbol}}
	if err := c.getJSON(ctx, "/v7/finance/quote", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for symbol %q", symbol)
	}
	r := resp.QuoteResponse.Result[0]

	peRatio := r.TrailingPE
	if peRatio == nil {
		peRatio = r.ForwardPE
	}
	return &Quote{
		Symbol:     symbol,
		Price:      r.RegularMarketPrice,
		MarketCap:  r.MarketCap,
		PERatio:    peRatio,
		Week52High: r.FiftyTwoWeekHigh,
		Week52Low:  r.FiftyTwoWeekLow,
	}, nil
}

// Profile returns company fundamentals for a symbol.
func (c *Client) Profile(ctx context.Context, symbol string) (*Profile, error) {
	var quote quoteResponse
	query := url.Values{"symbols": {symbol}}
	if err := c.getJSON(ctx, "/v7/finance/quote", query, &quote); err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	if len(quote.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for symbol %q", symbol)
	}
	name := quote.QuoteResponse.Result[0].LongName
	if name == "" {
		name = quote.QuoteResponse.Result[0].ShortName
	}

	var summary quoteSummaryResponse
	query = url.Values{"modules": {"assetProfile"}}
	if err := c.getJSON(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), query, &summary); err != nil {
		return nil, fmt.Errorf("fetch asset profile: %w", err)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no profile data for symbol %q", symbol)
	}
	p := summary.QuoteSummary.Result[0].AssetProfile

	return &Profile{
		Symbol:    symbol,
		Name:      name,
		Sector:    p.Sector,
		Industry:  p.Industry,
		Country:   p.Country,
		Employees: p.FullTimeEmployees,
		Summary:   p.LongBusinessSummary,
	}, nil
}

// History returns the daily closing prices for a symbol over a range like
// "1y" or "5y". Days the exchange reported no close (halts, partial data)
// are dropped.
func (c *Client) History(ctx context.Context, symbol, rng string) (*History, error) {
	if !validRanges[rng] {
		return nil, fmt.Errorf("invalid range %q (want one of 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max)", rng)
	}

	var resp chartResponse
	query := url.Values{"range": {rng}, "interval": {"1d"}}
	if err := c.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query, &resp); err != nil {
		return nil, fmt.Errorf("fetch chart: %w", err)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for symbol %q", symbol)
	}
	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote indicators for symbol %q", symbol)
	}

	var closes []float64
	for _, v := range r.Indicators.Quote[0].Close {
		if v != nil {
			closes = append(closes, *v)
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no historical data available for %s", symbol)
	}
	return &History{Symbol: symbol, Range: rng, Closes: closes}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	u := c.BaseURL + path + "?" + query.Encode()

	fn := func() ([]byte, error) {
		return c.tryGet(ctx, u)
	}
	opts := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(20*time.Second),
	), ctx)
	notify := func(err error, d time.Duration) {
		c.Logger.Warn("retrying market data request", "url", u, "delay", d, "error", err)
	}
	body, err := backoff.RetryNotifyWithData(fn, opts, notify)
	if err != nil {
		return fmt.Errorf("get with retries: %w", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) tryGet(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	return body, nil
}
