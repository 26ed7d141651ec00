package research

import "math"

// tradingDaysPerYear is the conventional annualization factor for daily
// equity data.
const tradingDaysPerYear = 252

func totalReturnPercent(closes []float64) float64 {
	start, end := closes[0], closes[len(closes)-1]
	return (end - start) / start * 100
}

// cagrPercent computes the compound annual growth rate, treating the series
// length as trading days.
func cagrPercent(closes []float64) float64 {
	years := float64(len(closes)) / tradingDaysPerYear
	if years <= 0 {
		return 0
	}
	start, end := closes[0], closes[len(closes)-1]
	return (math.Pow(end/start, 1/years) - 1) * 100
}

// annualizedVolatilityPercent is the sample standard deviation of daily
// returns, annualized by sqrt(252).
func annualizedVolatilityPercent(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, closes[i]/closes[i-1]-1)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear) * 100
}

// maxDrawdownPercent is the largest peak-to-trough decline over the series,
// as a negative percentage.
func maxDrawdownPercent(closes []float64) float64 {
	var maxDrawdown float64
	peak := closes[0]
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		drawdown := (c - peak) / peak
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
