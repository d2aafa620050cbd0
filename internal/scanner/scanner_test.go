package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradescan/models"
)

// fakeClient is an in-memory MarketDataClient for scanner tests.
type fakeClient struct {
	topCoins    []models.CoinInfo
	topErr      error
	marketData  map[string]*models.CoinMarketData
	athATL      map[string]*models.ATHATLData
	failMarket  map[string]error
	failATHATL  map[string]error
	marketCalls atomic.Int32
	lastLimit   atomic.Int32
}

func (f *fakeClient) GetTopCoins(ctx context.Context, limit int, useCache bool) ([]models.CoinInfo, error) {
	f.lastLimit.Store(int32(limit))
	if f.topErr != nil {
		return nil, f.topErr
	}
	if limit < len(f.topCoins) {
		return f.topCoins[:limit], nil
	}
	return f.topCoins, nil
}

func (f *fakeClient) GetCoinATHATL(ctx context.Context, coinID string, useCache bool) (*models.ATHATLData, error) {
	if err, ok := f.failATHATL[coinID]; ok {
		return nil, err
	}
	data, ok := f.athATL[coinID]
	if !ok {
		return nil, errors.New("no ath/atl fixture for " + coinID)
	}
	return data, nil
}

func (f *fakeClient) GetCoinMarketData(ctx context.Context, coinID string, useCache bool) (*models.CoinMarketData, error) {
	f.marketCalls.Add(1)
	if err, ok := f.failMarket[coinID]; ok {
		return nil, err
	}
	data, ok := f.marketData[coinID]
	if !ok {
		return nil, errors.New("no market fixture for " + coinID)
	}
	copied := *data
	return &copied, nil
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func newFakeClient() *fakeClient {
	btcATHATL, _ := models.NewATHATLData(69000, 67.81, 43000, nil, nil)
	ethATHATL, _ := models.NewATHATLData(4878.26, 0.432979, 2280, nil, nil)

	return &fakeClient{
		topCoins: []models.CoinInfo{
			{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", MarketCapRank: ptrI(1)},
			{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", MarketCapRank: ptrI(2)},
			{ID: "mystery", Symbol: "MYS", Name: "Mystery"},
		},
		marketData: map[string]*models.CoinMarketData{
			"bitcoin": {
				Symbol: "BTC", Name: "Bitcoin", CurrentPrice: 43000,
				PriceChange24h: 2.5, Volume24h: ptrF(28e9), MarketCap: ptrF(845e9),
				MarketCapRank: ptrI(1), ATH: ptrF(69000), ATL: ptrF(67.81),
			},
			"ethereum": {
				Symbol: "ETH", Name: "Ethereum", CurrentPrice: 2280,
				PriceChange24h: -1.2, Volume24h: ptrF(12e9), MarketCap: ptrF(274e9),
				MarketCapRank: ptrI(2), ATH: ptrF(4878.26), ATL: ptrF(0.432979),
			},
			"mystery": {
				Symbol: "MYS", Name: "Mystery", CurrentPrice: 1.5, PriceChange24h: 7.0,
			},
		},
		athATL: map[string]*models.ATHATLData{
			"bitcoin":  btcATHATL,
			"ethereum": ethATHATL,
		},
		failMarket: map[string]error{},
		failATHATL: map[string]error{},
	}
}

func TestScanCoinWithFibonacci(t *testing.T) {
	svc := New(newFakeClient(), 2)

	coin, err := svc.ScanCoin(context.Background(), "bitcoin", true)
	require.NoError(t, err)

	require.NotNil(t, coin.FibonacciAnalysis)
	assert.Equal(t, "BTC", coin.FibonacciAnalysis.Symbol)
	assert.Len(t, coin.FibonacciAnalysis.RetracementLevels, 7)
}

func TestScanCoinWithoutFibonacci(t *testing.T) {
	svc := New(newFakeClient(), 2)

	coin, err := svc.ScanCoin(context.Background(), "bitcoin", false)
	require.NoError(t, err)

	assert.Nil(t, coin.FibonacciAnalysis)
}

func TestScanCoinSkipsFibonacciWithoutExtremes(t *testing.T) {
	svc := New(newFakeClient(), 2)

	// mystery has no ath/atl on the snapshot, so the secondary fetch
	// must not even be attempted.
	coin, err := svc.ScanCoin(context.Background(), "mystery", true)
	require.NoError(t, err)

	assert.Nil(t, coin.FibonacciAnalysis)
}

func TestFibonacciFailureDoesNotVoidSnapshot(t *testing.T) {
	client := newFakeClient()
	client.failATHATL["bitcoin"] = errors.New("boom")
	svc := New(client, 2)

	coin, err := svc.ScanCoin(context.Background(), "bitcoin", true)
	require.NoError(t, err, "a Fibonacci failure never voids the snapshot")

	assert.Equal(t, "BTC", coin.Symbol)
	assert.Nil(t, coin.FibonacciAnalysis)
}

func TestScanCoinsDropsFailures(t *testing.T) {
	client := newFakeClient()
	client.failMarket["ethereum"] = errors.New("provider exploded")
	svc := New(client, 4)

	results := svc.ScanCoins(context.Background(), []string{"bitcoin", "ethereum", "mystery"}, false)

	require.Len(t, results, 2)
	symbols := []string{results[0].Symbol, results[1].Symbol}
	assert.ElementsMatch(t, []string{"BTC", "MYS"}, symbols)
}

func TestScanAllReportsFailuresOnSeparateChannel(t *testing.T) {
	client := newFakeClient()
	wantErr := errors.New("provider exploded")
	client.failMarket["ethereum"] = wantErr
	svc := New(client, 2)

	results, failures := svc.scanAll(context.Background(), []string{"bitcoin", "ethereum"}, false)

	assert.Len(t, results, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, "ethereum", failures[0].CoinID)
	assert.ErrorIs(t, failures[0].Err, wantErr)
}

func TestScanCoinsRunsEveryCoin(t *testing.T) {
	client := newFakeClient()
	svc := New(client, 2)

	ids := []string{"bitcoin", "ethereum", "mystery", "bitcoin", "ethereum"}
	results := svc.ScanCoins(context.Background(), ids, false)

	assert.Len(t, results, 5)
	assert.Equal(t, int32(5), client.marketCalls.Load())
}

func TestScanTopCoinsSortsByRank(t *testing.T) {
	svc := New(newFakeClient(), 2)

	result := svc.ScanTopCoins(context.Background(), 10, false, nil)

	require.Equal(t, 3, result.TotalCoins)
	assert.Equal(t, "BTC", result.Coins[0].Symbol)
	assert.Equal(t, "ETH", result.Coins[1].Symbol)
	assert.Equal(t, "MYS", result.Coins[2].Symbol, "unranked coins sort last")
	assert.False(t, result.Timestamp.IsZero())
}

func TestScanTopCoinsClampsLimit(t *testing.T) {
	client := newFakeClient()
	svc := New(client, 2)

	svc.ScanTopCoins(context.Background(), 10000, false, nil)
	assert.Equal(t, int32(250), client.lastLimit.Load())

	svc.ScanTopCoins(context.Background(), -5, false, nil)
	assert.Equal(t, int32(1), client.lastLimit.Load())
}

func TestScanTopCoinsEmptyResultWhenListingFails(t *testing.T) {
	client := newFakeClient()
	client.topErr = errors.New("listing unavailable")
	svc := New(client, 2)

	result := svc.ScanTopCoins(context.Background(), 10, false, nil)

	assert.Equal(t, 0, result.TotalCoins)
	assert.Empty(t, result.Coins)
}

func TestScanTopCoinsEchoesFilters(t *testing.T) {
	svc := New(newFakeClient(), 2)
	filters := map[string]string{"min_change_24h": "0", "bogus_key": "whatever"}

	result := svc.ScanTopCoins(context.Background(), 10, false, filters)

	assert.Equal(t, filters, result.FiltersApplied, "filters are echoed verbatim")
}

func TestApplyFiltersConjunction(t *testing.T) {
	svc := New(newFakeClient(), 2)
	filters := map[string]string{
		"min_change_24h": "0",
		"max_change_24h": "5",
	}

	result := svc.ScanTopCoins(context.Background(), 10, false, filters)

	require.Equal(t, 1, result.TotalCoins)
	assert.Equal(t, "BTC", result.Coins[0].Symbol, "only the coin inside [0, 5] survives")
}

func TestApplyFiltersMinVolumeExcludesAbsentField(t *testing.T) {
	svc := New(newFakeClient(), 2)

	result := svc.ScanTopCoins(context.Background(), 10, false, map[string]string{"min_volume": "1"})

	require.Equal(t, 2, result.TotalCoins)
	for _, coin := range result.Coins {
		assert.NotNil(t, coin.Volume24h, "coins without volume are excluded")
	}
}

func TestApplyFiltersFibPositionRequiresAnalysis(t *testing.T) {
	svc := New(newFakeClient(), 2)

	result := svc.ScanTopCoins(context.Background(), 10, true, map[string]string{"min_fib_position": "0"})

	require.Equal(t, 2, result.TotalCoins)
	for _, coin := range result.Coins {
		assert.NotNil(t, coin.FibonacciAnalysis, "coins without analysis are excluded by fib filters")
	}
}

func TestApplyFiltersIgnoresUnknownAndUnparsable(t *testing.T) {
	svc := New(newFakeClient(), 2)
	filters := map[string]string{
		"totally_unknown": "42",
		"min_volume":      "not-a-number",
	}

	result := svc.ScanTopCoins(context.Background(), 10, false, filters)

	assert.Equal(t, 3, result.TotalCoins, "unknown keys and unparsable values filter nothing")
}

func TestCoinBySymbol(t *testing.T) {
	svc := New(newFakeClient(), 2)

	coin, err := svc.CoinBySymbol(context.Background(), "btc", true)
	require.NoError(t, err)

	assert.Equal(t, "BTC", coin.Symbol)
	assert.NotNil(t, coin.FibonacciAnalysis)
}

func TestCoinBySymbolNotFound(t *testing.T) {
	svc := New(newFakeClient(), 2)

	_, err := svc.CoinBySymbol(context.Background(), "NOPE", false)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}
