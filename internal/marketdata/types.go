package marketdata

// Quote is the current price snapshot for a symbol.
type Quote struct {
	Symbol     string
	Price      *float64
	MarketCap  *int64
	PERatio    *float64
	Week52High *float64
	Week52Low  *float64
}

// Profile holds company fundamentals.
type Profile struct {
	Symbol    string
	Name      string
	Sector    string
	Industry  string
	Country   string
	Employees int
	Summary   string
}

// History holds daily closing prices in chronological order.
type History struct {
	Symbol string
	Range  string
	Closes []float64
}

// Wire formats of the Yahoo Finance endpoints. Only the fields we consume
// are mapped.

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	MarketCap          *int64   `json:"marketCap"`
	TrailingPE         *float64 `json:"trailingPE"`
	ForwardPE          *float64 `json:"forwardPE"`
	FiftyTwoWeekHigh   *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    *float64 `json:"fiftyTwoWeekLow"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile assetProfile `json:"assetProfile"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

type assetProfile struct {
	Sector              string `json:"sector"`
	Industry            string `json:"industry"`
	Country             string `json:"country"`
	FullTimeEmployees   int    `json:"fullTimeEmployees"`
	LongBusinessSummary string `json:"longBusinessSummary"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}
