package models

import "context"

// MarketDataClient is the provider boundary consumed by the scanner.
type MarketDataClient interface {
	GetTopCoins(ctx context.Context, limit int, useCache bool) ([]CoinInfo, error)
	GetCoinATHATL(ctx context.Context, coinID string, useCache bool) (*ATHATLData, error)
	GetCoinMarketData(ctx context.Context, coinID string, useCache bool) (*CoinMarketData, error)
}
