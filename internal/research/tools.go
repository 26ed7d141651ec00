// Package research implements the financial analysis toolset and the
// research agent that uses it.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/finsight-io/finsight-agent/internal/marketdata"
	"github.com/finsight-io/finsight-agent/pkg/llm"
	"github.com/finsight-io/finsight-agent/pkg/tool"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// grouped prints integers with thousands separators ($1,234,567).
var grouped = message.NewPrinter(language.English)

// Tools returns the financial toolset backed by the given market data
// client. Every tool returns a JSON document so the model gets structured
// fields alongside a human-readable summary.
func Tools(md *marketdata.Client) []tool.Definition {
	return []tool.Definition{
		stockPriceTool(md),
		companyInfoTool(md),
		financialHistoryTool(md),
		compoundGrowthTool(),
		financialRatioTool(),
	}
}

type stockPriceInput struct {
	Symbol string `json:"symbol" jsonschema_description:"Stock ticker symbol (e.g. 'AAPL', 'TSLA', 'NVDA')"`
}

// StockPriceData is the structured output of the get_stock_price tool.
type StockPriceData struct {
	Symbol           string   `json:"symbol"`
	CurrentPrice     *float64 `json:"current_price,omitempty"`
	MarketCap        *int64   `json:"market_cap,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	Week52High       *float64 `json:"week_52_high,omitempty"`
	Week52Low        *float64 `json:"week_52_low,omitempty"`
	FormattedSummary string   `json:"formatted_summary"`
}

func stockPriceTool(md *marketdata.Client) tool.Definition {
	return tool.Definition{
		ToolDefinition: llm.ToolDefinition{
			Name: "get_stock_price",
			Description: "Get the current stock price and key metrics for a ticker symbol: " +
				"price, market capitalization, P/E ratio and 52-week range.",
			Schema: tool.GenerateSchema[stockPriceInput](),
		},
		UseFunc: func(ctx context.Context, llmInput json.RawMessage) (string, error) {
			var input stockPriceInput
			if err := json.Unmarshal(llmInput, &input); err != nil {
				return "", fmt.Errorf("unmarshal input: %w", err)
			}
			symbol, err := normalizeSymbol(input.Symbol)
			if err != nil {
				return "", err
			}

			quote, err := md.Quote(ctx, symbol)
			if err != nil {
				return "", fmt.Errorf("get quote for %s: %w", symbol, err)
			}

			summaryParts := []string{"Stock: " + symbol}
			if quote.Price != nil {
				summaryParts = append(summaryParts, fmt.Sprintf("Price: $%.2f", *quote.Price))
			}
			if quote.MarketCap != nil {
				summaryParts = append(summaryParts, grouped.Sprintf("Market Cap: $%d", *quote.MarketCap))
			}
			if quote.PERatio != nil {
				summaryParts = append(summaryParts, fmt.Sprintf("P/E: %.2f", *quote.PERatio))
			}
			if quote.Week52High != nil && quote.Week52Low != nil {
				summaryParts = append(summaryParts, fmt.Sprintf(
					"52W Range: $%.2f - $%.2f", *quote.Week52Low, *quote.Week52High,
				))
			}

			return marshalResult(StockPriceData{
				Symbol:           symbol,
				CurrentPrice:     quote.Price,
				MarketCap:        quote.MarketCap,
				PERatio:          quote.PERatio,
				Week52High:       quote.Week52High,
				Week52Low:        quote.Week52Low,
				FormattedSummary: strings.Join(summaryParts, " | "),
			})
		},
	}
}

type companyInfoInput struct {
	Symbol string `json:"symbol" jsonschema_description:"Stock ticker symbol (e.g. 'AAPL', 'MSFT')"`
}

// CompanyInfo is the structured output of the get_company_info tool.
type CompanyInfo struct {
	Symbol          string `json:"symbol"`
	Name            string `json:"name,omitempty"`
	Sector          string `json:"sector,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Country         string `json:"country,omitempty"`
	Employees       int    `json:"employees,omitempty"`
	BusinessSummary string `json:"business_summary,omitempty"`
}

func companyInfoTool(md *marketdata.Client) tool.Definition {
	return tool.Definition{
		ToolDefinition: llm.ToolDefinition{
			Name: "get_company_info",
			Description: "Get detailed company information for a ticker symbol: " +
				"name, sector, industry, country, employee count and a business summary.",
			Schema: tool.GenerateSchema[companyInfoInput](),
		},
		UseFunc: func(ctx context.Context, llmInput json.RawMessage) (string, error) {
			var input companyInfoInput
			if err := json.Unmarshal(llmInput, &input); err != nil {
				return "", fmt.Errorf("unmarshal input: %w", err)
			}
			symbol, err := normalizeSymbol(input.Symbol)
			if err != nil {
				return "", err
			}

			profile, err := md.Profile(ctx, symbol)
			if err != nil {
				return "", fmt.Errorf("get profile for %s: %w", symbol, err)
			}

			summary := profile.Summary
			if summary == "" {
				summary = "No business summary available"
			}
			return marshalResult(CompanyInfo{
				Symbol:          symbol,
				Name:            profile.Name,
				Sector:          profile.Sector,
				Industry:        profile.Industry,
				Country:         profile.Country,
				Employees:       profile.Employees,
				BusinessSummary: summary,
			})
		},
	}
}

type financialHistoryInput struct {
	Symbol string `json:"symbol" jsonschema_description:"Stock ticker symbol (e.g. 'AAPL', 'TSLA')"`
	Period string `json:"period,omitempty" jsonschema_description:"History range: one of 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max. Defaults to 1y."`
}

// FinancialHistoryResult is the structured output of the
// get_financial_history tool.
type FinancialHistoryResult struct {
	Symbol             string  `json:"symbol"`
	Period             string  `json:"period"`
	StartPrice         float64 `json:"start_price"`
	EndPrice           float64 `json:"end_price"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	CAGRPercent        float64 `json:"cagr_percent"`
	VolatilityPercent  float64 `json:"volatility_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	TradingDays        int     `json:"trading_days"`
	FormattedSummary   string  `json:"formatted_summary"`
}

func financialHistoryTool(md *marketdata.Client) tool.Definition {
	return tool.Definition{
		ToolDefinition: llm.ToolDefinition{
			Name: "get_financial_history",
			Description: "Get historical performance for a ticker symbol over a period: " +
				"total return, CAGR, annualized volatility and maximum drawdown.",
			Schema: tool.GenerateSchema[financialHistoryInput](),
		},
		UseFunc: func(ctx context.Context, llmInput json.RawMessage) (string, error) {
			var input financialHistoryInput
			if err := json.Unmarshal(llmInput, &input); err != nil {
				return "", fmt.Errorf("unmarshal input: %w", err)
			}
			symbol, err := normalizeSymbol(input.Symbol)
			if err != nil {
				return "", err
			}
			period := strings.ToLower(strings.TrimSpace(input.Period))
			if period == "" {
				period = "1y"
			}

			history, err := md.History(ctx, symbol, period)
			if err != nil {
				return "", fmt.Errorf("get history for %s: %w", symbol, err)
			}

			result := FinancialHistoryResult{
				Symbol:             symbol,
				Period:             period,
				StartPrice:         round2(history.Closes[0]),
				EndPrice:           round2(history.Closes[len(history.Closes)-1]),
				TotalReturnPercent: round2(totalReturnPercent(history.Closes)),
				CAGRPercent:        round2(cagrPercent(history.Closes)),
				VolatilityPercent:  round2(annualizedVolatilityPercent(history.Closes)),
				MaxDrawdownPercent: round2(maxDrawdownPercent(history.Closes)),
				TradingDays:        len(history.Closes),
			}
			result.FormattedSummary = fmt.Sprintf(
				"%s Performance (%s): Total Return: %.2f%%, CAGR: %.2f%%, Volatility: %.2f%%, Max Drawdown: %.2f%%",
				symbol, period, result.TotalReturnPercent, result.CAGRPercent,
				result.VolatilityPercent, result.MaxDrawdownPercent,
			)
			return marshalResult(result)
		},
	}
}

type compoundGrowthInput struct {
	Principal  float64 `json:"principal" jsonschema_description:"Initial investment amount, must be positive"`
	AnnualRate float64 `json:"annual_rate" jsonschema_description:"Annual growth rate as a decimal (0.07 for 7%)"`
	Years      float64 `json:"years" jsonschema_description:"Investment horizon in years, must be positive"`
}

// CompoundGrowthResult is the structured output of the
// calculate_compound_growth tool.
type CompoundGrowthResult struct {
	Principal          float64 `json:"principal"`
	AnnualRate         float64 `json:"annual_rate"`
	Years              float64 `json:"years"`
	FutureValue        float64 `json:"future_value"`
	TotalGrowth        float64 `json:"total_growth"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	FormattedSummary   string  `json:"formatted_summary"`
}

func compoundGrowthTool() tool.Definition {
	return tool.Definition{
		ToolDefinition: llm.ToolDefinition{
			Name: "calculate_compound_growth",
			Description: "Calculate compound growth: the future value of a principal " +
				"growing at a fixed annual rate over a number of years.",
			Schema: tool.GenerateSchema[compoundGrowthInput](),
		},
		UseFunc: func(_ context.Context, llmInput json.RawMessage) (string, error) {
			var input compoundGrowthInput
			if err := json.Unmarshal(llmInput, &input); err != nil {
				return "", fmt.Errorf("unmarshal input: %w", err)
			}
			result, err := CompoundGrowth(input.Principal, input.AnnualRate, input.Years)
			if err != nil {
				return "", err
			}
			return marshalResult(result)
		},
	}
}

// CompoundGrowth computes FV = P * (1 + r)^y along with growth and return
// figures.
func CompoundGrowth(principal, annualRate, years float64) (CompoundGrowthResult, error) {
	if principal <= 0 || years <= 0 {
		return CompoundGrowthResult{}, fmt.Errorf("principal and years must be positive")
	}

	futureValue := principal * math.Pow(1+annualRate, years)
	totalGrowth := futureValue - principal
	totalReturnPct := (futureValue/principal - 1) * 100

	return CompoundGrowthResult{
		Principal:          principal,
		AnnualRate:         annualRate,
		Years:              years,
		FutureValue:        round2(futureValue),
		TotalGrowth:        round2(totalGrowth),
		TotalReturnPercent: round2(totalReturnPct),
		FormattedSummary: grouped.Sprintf(
			"Investment: $%.2f at %.2f%% for %v years -> Future Value: $%.2f (Total Return: %.2f%%)",
			principal, annualRate*100, years, round2(futureValue), round2(totalReturnPct),
		),
	}, nil
}

type financialRatioInput struct {
	Numerator   float64 `json:"numerator" jsonschema_description:"The ratio numerator (e.g. price for a P/E ratio)"`
	Denominator float64 `json:"denominator" jsonschema_description:"The ratio denominator (e.g. earnings per share for a P/E ratio)"`
	RatioType   string  `json:"ratio_type,omitempty" jsonschema_description:"One of: pe, debt_to_equity, current, roe. Anything else is treated as a generic ratio."`
}

// FinancialRatioResult is the structured output of the
// calculate_financial_ratio tool.
type FinancialRatioResult struct {
	Numerator        float64 `json:"numerator"`
	Denominator      float64 `json:"denominator"`
	RatioType        string  `json:"ratio_type"`
	RatioValue       float64 `json:"ratio_value"`
	Description      string  `json:"description"`
	Interpretation   string  `json:"interpretation"`
	Context          string  `json:"context"`
	FormattedSummary string  `json:"formatted_summary"`
}

func financialRatioTool() tool.Definition {
	return tool.Definition{
		ToolDefinition: llm.ToolDefinition{
			Name: "calculate_financial_ratio",
			Description: "Calculate and interpret a financial ratio (P/E, debt-to-equity, " +
				"current ratio, return on equity or generic) from a numerator and denominator.",
			Schema: tool.GenerateSchema[financialRatioInput](),
		},
		UseFunc: func(_ context.Context, llmInput json.RawMessage) (string, error) {
			var input financialRatioInput
			if err := json.Unmarshal(llmInput, &input); err != nil {
				return "", fmt.Errorf("unmarshal input: %w", err)
			}
			result, err := FinancialRatio(input.Numerator, input.Denominator, input.RatioType)
			if err != nil {
				return "", err
			}
			return marshalResult(result)
		},
	}
}

// FinancialRatio computes numerator/denominator and attaches the standard
// interpretation for the known ratio types.
func FinancialRatio(numerator, denominator float64, ratioType string) (FinancialRatioResult, error) {
	if denominator == 0 {
		return FinancialRatioResult{}, fmt.Errorf("denominator cannot be zero")
	}
	ratioType = strings.ToLower(strings.TrimSpace(ratioType))
	if ratioType == "" {
		ratioType = "generic"
	}
	value := numerator / denominator

	description, context := interpretRatio(ratioType, value)
	interpretation := fmt.Sprintf("%s: %.2f", description, value)

	return FinancialRatioResult{
		Numerator:        numerator,
		Denominator:      denominator,
		RatioType:        ratioType,
		RatioValue:       round4(value),
		Description:      description,
		Interpretation:   interpretation,
		Context:          context,
		FormattedSummary: fmt.Sprintf("%s: %.2f - %s", description, value, context),
	}, nil
}

func interpretRatio(ratioType string, value float64) (description, context string) {
	switch ratioType {
	case "pe":
		switch {
		case value > 25:
			return "Price-to-Earnings Ratio", "High"
		case value > 15:
			return "Price-to-Earnings Ratio", "Moderate"
		default:
			return "Price-to-Earnings Ratio", "Low"
		}
	case "debt_to_equity":
		if value > 1 {
			return "Debt-to-Equity Ratio", "High leverage"
		}
		return "Debt-to-Equity Ratio", "Conservative"
	case "current":
		if value > 1.5 {
			return "Current Ratio", "Good liquidity"
		}
		return "Current Ratio", "Potential concern"
	case "roe":
		switch {
		case value > 0.15:
			return "Return on Equity", "Strong"
		case value > 0.10:
			return "Return on Equity", "Average"
		default:
			return "Return on Equity", "Weak"
		}
	}
	return "Financial Ratio", "Custom calculation"
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return symbol, nil
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(b), nil
}
