package models

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned whenever an ATH/ATL pair cannot describe a
// valid price range (ATH must be strictly greater than ATL, both positive).
var ErrInvalidRange = errors.New("ath must be greater than atl and both must be positive")

// CoinInfo identifies a coin in the provider's listing.
type CoinInfo struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank *int   `json:"market_cap_rank,omitempty"`
}

// ATHATLData holds the all-time extremes of a coin together with its
// current price. Instances are only built through NewATHATLData, so a
// value of this type always satisfies ATH > ATL > 0.
type ATHATLData struct {
	ATH          float64    `json:"ath"`
	ATHDate      *time.Time `json:"ath_date,omitempty"`
	ATL          float64    `json:"atl"`
	ATLDate      *time.Time `json:"atl_date,omitempty"`
	CurrentPrice float64    `json:"current_price"`
}

// NewATHATLData validates the range invariant before constructing the record.
func NewATHATLData(ath, atl, currentPrice float64, athDate, atlDate *time.Time) (*ATHATLData, error) {
	if ath <= 0 || atl <= 0 || ath <= atl {
		return nil, ErrInvalidRange
	}
	return &ATHATLData{
		ATH:          ath,
		ATHDate:      athDate,
		ATL:          atl,
		ATLDate:      atlDate,
		CurrentPrice: currentPrice,
	}, nil
}

// CoinMarketData is a single-coin market snapshot, optionally augmented
// with Fibonacci analysis by the scanner.
type CoinMarketData struct {
	Symbol            string             `json:"symbol"`
	Name              string             `json:"name"`
	CurrentPrice      float64            `json:"current_price"`
	PriceChange24h    float64            `json:"price_change_24h"`
	Volume24h         *float64           `json:"volume_24h,omitempty"`
	MarketCap         *float64           `json:"market_cap,omitempty"`
	MarketCapRank     *int               `json:"market_cap_rank,omitempty"`
	ATH               *float64           `json:"ath,omitempty"`
	ATL               *float64           `json:"atl,omitempty"`
	FibonacciAnalysis *FibonacciAnalysis `json:"fibonacci_analysis,omitempty"`
}

// Fibonacci level kinds.
const (
	LevelRetracement = "retracement"
	LevelExtension   = "extension"
)

// FibonacciLevel is a single derived price level.
type FibonacciLevel struct {
	Level float64 `json:"level"`
	Price float64 `json:"price"`
	Label string  `json:"label"`
	Type  string  `json:"type"`
}

// FibonacciAnalysis is the full derived-level report for one coin.
type FibonacciAnalysis struct {
	Symbol             string           `json:"symbol"`
	ATH                float64          `json:"ath"`
	ATL                float64          `json:"atl"`
	CurrentPrice       float64          `json:"current_price"`
	PriceRange         float64          `json:"price_range"`
	RetracementLevels  []FibonacciLevel `json:"retracement_levels"`
	ExtensionLevels    []FibonacciLevel `json:"extension_levels"`
	NearestSupport     *FibonacciLevel  `json:"nearest_support,omitempty"`
	NearestResistance  *FibonacciLevel  `json:"nearest_resistance,omitempty"`
	PositionPercentage float64          `json:"position_percentage"`
}

// ScanResult aggregates the snapshots surviving a multi-coin scan.
// Coins are ordered by ascending market-cap rank, unranked coins last.
type ScanResult struct {
	TotalCoins     int               `json:"total_coins"`
	Coins          []*CoinMarketData `json:"coins"`
	Timestamp      time.Time         `json:"timestamp"`
	FiltersApplied map[string]string `json:"filters_applied,omitempty"`
}
