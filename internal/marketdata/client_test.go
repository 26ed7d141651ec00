package marketdata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(serverURL string) *Client {
	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.BaseURL = serverURL
	return c
}

func TestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.NotContains(t, r.Header.Get("User-Agent"), "Go-http-client",
			"default Go user agent gets blocked upstream")
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{
			"regularMarketPrice": 428.5,
			"marketCap": 3180000000000,
			"trailingPE": 37.1,
			"fiftyTwoWeekHigh": 468.35,
			"fiftyTwoWeekLow": 309.45
		}]}}`))
	}))
	defer server.Close()

	quote, err := testClient(server.URL).Quote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", quote.Symbol)
	require.NotNil(t, quote.Price)
	assert.Equal(t, 428.5, *quote.Price)
	require.NotNil(t, quote.MarketCap)
	assert.Equal(t, int64(3180000000000), *quote.MarketCap)
	require.NotNil(t, quote.PERatio)
	assert.Equal(t, 37.1, *quote.PERatio)
}

func TestQuoteFallsBackToForwardPE(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{
			"regularMarketPrice": 12.3,
			"forwardPE": 45.6
		}]}}`))
	}))
	defer server.Close()

	quote, err := testClient(server.URL).Quote(context.Background(), "RIVN")
	require.NoError(t, err)
	require.NotNil(t, quote.PERatio)
	assert.Equal(t, 45.6, *quote.PERatio)
}

func TestQuoteNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[]}}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Quote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no quote data")
}

func TestProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{"longName":"Apple Inc."}]}}`))
		case "/v10/finance/quoteSummary/AAPL":
			assert.Equal(t, "assetProfile", r.URL.Query().Get("modules"))
			_, _ = w.Write([]byte(`{"quoteSummary":{"result":[{"assetProfile":{
				"sector": "Technology",
				"industry": "Consumer Electronics",
				"country": "United States",
				"fullTimeEmployees": 161000,
				"longBusinessSummary": "Apple designs smartphones."
			}}]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	profile, err := testClient(server.URL).Profile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", profile.Name)
	assert.Equal(t, "Technology", profile.Sector)
	assert.Equal(t, "Consumer Electronics", profile.Industry)
	assert.Equal(t, 161000, profile.Employees)
}

func TestHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/NVDA", r.URL.Path)
		assert.Equal(t, "5y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp": [1, 2, 3],
			"indicators": {"quote": [{"close": [10.5, null, 12.25]}]}
		}]}}`))
	}))
	defer server.Close()

	history, err := testClient(server.URL).History(context.Background(), "NVDA", "5y")
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 12.25}, history.Closes)
}

func TestHistoryInvalidRange(t *testing.T) {
	_, err := testClient("http://unused").History(context.Background(), "NVDA", "7w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

func TestRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{"regularMarketPrice": 1.0}]}}`))
	}))
	defer server.Close()

	quote, err := testClient(server.URL).Quote(context.Background(), "X")
	require.NoError(t, err)
	require.NotNil(t, quote.Price)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Quote(context.Background(), "X")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
