package research

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finsight-io/finsight-agent/internal/marketdata"
	"github.com/finsight-io/finsight-agent/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func findTool(t *testing.T, defs []tool.Definition, name string) tool.Definition {
	t.Helper()
	for _, def := range defs {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("tool %q not found", name)
	return tool.Definition{}
}

func TestToolsCoverFinancialAnalysis(t *testing.T) {
	defs := Tools(marketdata.NewClient(testLogger()))

	var names []string
	for _, def := range defs {
		names = append(names, def.Name)
		assert.NotEmpty(t, def.Description, "tool %s needs a description", def.Name)
		assert.NotNil(t, def.Schema, "tool %s needs a schema", def.Name)
	}
	assert.ElementsMatch(t, []string{
		"get_stock_price",
		"get_company_info",
		"get_financial_history",
		"calculate_compound_growth",
		"calculate_financial_ratio",
	}, names)
}

func TestCompoundGrowthTool(t *testing.T) {
	defs := Tools(marketdata.NewClient(testLogger()))
	growth := findTool(t, defs, "calculate_compound_growth")

	out, err := growth.UseFunc(context.Background(),
		json.RawMessage(`{"principal":10000,"annual_rate":0.07,"years":10}`))
	require.NoError(t, err)

	var result CompoundGrowthResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.InDelta(t, 19671.51, result.FutureValue, 0.01)
	assert.InDelta(t, 9671.51, result.TotalGrowth, 0.01)
	assert.InDelta(t, 96.72, result.TotalReturnPercent, 0.01)
	assert.Contains(t, result.FormattedSummary, "7.00%")
}

func TestCompoundGrowthRejectsNonPositiveInputs(t *testing.T) {
	_, err := CompoundGrowth(0, 0.07, 10)
	require.Error(t, err)

	_, err = CompoundGrowth(1000, 0.07, 0)
	require.Error(t, err)
}

func TestFinancialRatio(t *testing.T) {
	tests := []struct {
		name            string
		numerator       float64
		denominator     float64
		ratioType       string
		wantValue       float64
		wantDescription string
		wantContext     string
	}{
		{"high pe", 300, 10, "pe", 30, "Price-to-Earnings Ratio", "High"},
		{"moderate pe", 200, 10, "pe", 20, "Price-to-Earnings Ratio", "Moderate"},
		{"low pe", 82.5, 5.5, "pe", 15, "Price-to-Earnings Ratio", "Low"},
		{"leveraged", 3, 2, "debt_to_equity", 1.5, "Debt-to-Equity Ratio", "High leverage"},
		{"liquid", 2, 1, "current", 2, "Current Ratio", "Good liquidity"},
		{"strong roe", 0.2, 1, "roe", 0.2, "Return on Equity", "Strong"},
		{"weak roe", 0.05, 1, "roe", 0.05, "Return on Equity", "Weak"},
		{"generic fallback", 10, 4, "", 2.5, "Financial Ratio", "Custom calculation"},
		{"unknown type", 10, 4, "sharpe", 2.5, "Financial Ratio", "Custom calculation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FinancialRatio(tt.numerator, tt.denominator, tt.ratioType)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, result.RatioValue, 1e-9)
			assert.Equal(t, tt.wantDescription, result.Description)
			assert.Equal(t, tt.wantContext, result.Context)
		})
	}
}

func TestFinancialRatioZeroDenominator(t *testing.T) {
	_, err := FinancialRatio(10, 0, "pe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denominator cannot be zero")
}

func TestStockPriceTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{
			"regularMarketPrice": 189.5,
			"marketCap": 2950000000000,
			"trailingPE": 31.2,
			"fiftyTwoWeekHigh": 199.62,
			"fiftyTwoWeekLow": 143.9,
			"longName": "Apple Inc."
		}]}}`))
	}))
	defer server.Close()

	md := marketdata.NewClient(testLogger())
	md.BaseURL = server.URL

	priceTool := findTool(t, Tools(md), "get_stock_price")
	out, err := priceTool.UseFunc(context.Background(), json.RawMessage(`{"symbol":" aapl "}`))
	require.NoError(t, err)

	var result StockPriceData
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "AAPL", result.Symbol, "symbol must be upper-cased and trimmed")
	require.NotNil(t, result.CurrentPrice)
	assert.Equal(t, 189.5, *result.CurrentPrice)
	assert.Contains(t, result.FormattedSummary, "Stock: AAPL")
	assert.Contains(t, result.FormattedSummary, "Price: $189.50")
	assert.Contains(t, result.FormattedSummary, "Market Cap: $2,950,000,000,000")
	assert.Contains(t, result.FormattedSummary, "52W Range: $143.90 - $199.62")
}

func TestFinancialHistoryTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TSLA", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp": [1, 2, 3, 4],
			"indicators": {"quote": [{"close": [100.0, null, 110.0, 121.0]}]}
		}]}}`))
	}))
	defer server.Close()

	md := marketdata.NewClient(testLogger())
	md.BaseURL = server.URL

	historyTool := findTool(t, Tools(md), "get_financial_history")
	out, err := historyTool.UseFunc(context.Background(), json.RawMessage(`{"symbol":"TSLA"}`))
	require.NoError(t, err)

	var result FinancialHistoryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "1y", result.Period, "period defaults to 1y")
	assert.Equal(t, 3, result.TradingDays, "null closes are dropped")
	assert.InDelta(t, 100.0, result.StartPrice, 1e-9)
	assert.InDelta(t, 121.0, result.EndPrice, 1e-9)
	assert.InDelta(t, 21.0, result.TotalReturnPercent, 1e-9)
	assert.Contains(t, result.FormattedSummary, "TSLA Performance (1y)")
}

func TestToolsRejectMissingSymbol(t *testing.T) {
	defs := Tools(marketdata.NewClient(testLogger()))
	for _, name := range []string{"get_stock_price", "get_company_info", "get_financial_history"} {
		def := findTool(t, defs, name)
		_, err := def.UseFunc(context.Background(), json.RawMessage(`{"symbol":"  "}`))
		require.Error(t, err, "tool %s must reject a blank symbol", name)
		assert.Contains(t, err.Error(), "symbol is required")
	}
}
