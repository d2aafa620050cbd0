package scanner

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradescan/internal/fibonacci"
	"tradescan/models"
)

const (
	defaultWorkers = 10
	maxScanLimit   = 250
	// Rank used when sorting coins that carry no market-cap rank, so
	// they end up after every ranked coin.
	unrankedSortKey = 9999
)

// ErrSymbolNotFound is returned when a symbol does not appear in the
// top-coin listing.
var ErrSymbolNotFound = errors.New("symbol not found in top coins")

// Service coordinates concurrent per-coin scans: fetch, optional
// Fibonacci analysis, filtering, sorting and aggregation.
type Service struct {
	client  models.MarketDataClient
	workers int
	logger  zerolog.Logger
}

// ScanFailure records a coin that was dropped from a batch scan.
type ScanFailure struct {
	CoinID string
	Err    error
}

// New creates a scanner service running at most workers concurrent scans.
func New(client models.MarketDataClient, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{
		client:  client,
		workers: workers,
		logger:  log.With().Str("component", "scanner").Logger(),
	}
}

// ScanCoin scans a single coin. A failed Fibonacci step never voids an
// otherwise-successful snapshot; the snapshot is returned without
// analysis instead.
func (s *Service) ScanCoin(ctx context.Context, coinID string, includeFibonacci bool) (*models.CoinMarketData, error) {
	data, err := s.client.GetCoinMarketData(ctx, coinID, true)
	if err != nil {
		return nil, err
	}

	if includeFibonacci && data.ATH != nil && data.ATL != nil {
		athATL, err := s.client.GetCoinATHATL(ctx, coinID, true)
		if err != nil {
			s.logger.Warn().Err(err).Str("coin", coinID).Msg("Failed to fetch ATH/ATL, skipping Fibonacci")
			return data, nil
		}
		analysis, err := fibonacci.Analyze(data.Symbol, athATL)
		if err != nil {
			s.logger.Warn().Err(err).Str("coin", coinID).Msg("Failed to calculate Fibonacci")
			return data, nil
		}
		data.FibonacciAnalysis = analysis
	}

	return data, nil
}

// ScanCoins scans multiple coins concurrently. Failed coins are dropped
// from the result set; the returned slice carries no particular order.
func (s *Service) ScanCoins(ctx context.Context, coinIDs []string, includeFibonacci bool) []*models.CoinMarketData {
	results, failures := s.scanAll(ctx, coinIDs, includeFibonacci)
	s.logger.Info().
		Int("total", len(coinIDs)).
		Int("succeeded", len(results)).
		Int("failed", len(failures)).
		Msg("Scan completed")
	return results
}

// scanAll fans the coin ids out over a fixed worker pool. Successes and
// failures travel over separate channels so dropped coins stay
// observable.
func (s *Service) scanAll(ctx context.Context, coinIDs []string, includeFibonacci bool) ([]*models.CoinMarketData, []ScanFailure) {
	jobs := make(chan string)
	results := make(chan *models.CoinMarketData)
	failures := make(chan ScanFailure)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for coinID := range jobs {
				data, err := s.ScanCoin(ctx, coinID, includeFibonacci)
				if err != nil {
					failures <- ScanFailure{CoinID: coinID, Err: err}
					continue
				}
				results <- data
			}
		}()
	}

	go func() {
		for _, id := range coinIDs {
			jobs <- id
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
		close(failures)
	}()

	var scanned []*models.CoinMarketData
	var failed []ScanFailure
	for results != nil || failures != nil {
		select {
		case data, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			scanned = append(scanned, data)
		case failure, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			s.logger.Warn().Err(failure.Err).Str("coin", failure.CoinID).Msg("Coin scan failed")
			failed = append(failed, failure)
		}
	}
	return scanned, failed
}

// ScanTopCoins scans the top coins by market cap, applies filters and
// sorts the survivors by ascending rank. The limit is clamped to
// [1, 250]. A failed top-list fetch yields an empty result.
func (s *Service) ScanTopCoins(ctx context.Context, limit int, includeFibonacci bool, filters map[string]string) *models.ScanResult {
	if limit < 1 {
		limit = 1
	}
	if limit > maxScanLimit {
		limit = maxScanLimit
	}

	s.logger.Info().
		Int("limit", limit).
		Bool("fibonacci", includeFibonacci).
		Int("filters", len(filters)).
		Msg("Scanning top coins")

	if len(filters) == 0 {
		filters = nil
	}

	topCoins, err := s.client.GetTopCoins(ctx, limit, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch top coins list")
		return &models.ScanResult{
			Coins:          []*models.CoinMarketData{},
			Timestamp:      time.Now().UTC(),
			FiltersApplied: filters,
		}
	}

	coinIDs := make([]string, 0, len(topCoins))
	for _, coin := range topCoins {
		coinIDs = append(coinIDs, coin.ID)
	}

	scanned := s.ScanCoins(ctx, coinIDs, includeFibonacci)
	scanned = applyFilters(scanned, filters, s.logger)
	if scanned == nil {
		scanned = []*models.CoinMarketData{}
	}

	sort.Slice(scanned, func(i, j int) bool {
		return sortRank(scanned[i]) < sortRank(scanned[j])
	})

	return &models.ScanResult{
		TotalCoins:     len(scanned),
		Coins:          scanned,
		Timestamp:      time.Now().UTC(),
		FiltersApplied: filters,
	}
}

// CoinBySymbol resolves a symbol against the top-100 listing and scans
// the matching coin.
func (s *Service) CoinBySymbol(ctx context.Context, symbol string, includeFibonacci bool) (*models.CoinMarketData, error) {
	symbol = strings.ToUpper(symbol)

	topCoins, err := s.client.GetTopCoins(ctx, 100, true)
	if err != nil {
		return nil, err
	}

	for _, coin := range topCoins {
		if coin.Symbol == symbol {
			return s.ScanCoin(ctx, coin.ID, includeFibonacci)
		}
	}

	s.logger.Warn().Str("symbol", symbol).Msg("Symbol not found in top coins")
	return nil, ErrSymbolNotFound
}

func sortRank(data *models.CoinMarketData) int {
	if data.MarketCapRank == nil {
		return unrankedSortKey
	}
	return *data.MarketCapRank
}

// applyFilters keeps only the coins matching every recognized filter.
// Unrecognized keys and unparsable values are ignored.
func applyFilters(coins []*models.CoinMarketData, filters map[string]string, logger zerolog.Logger) []*models.CoinMarketData {
	if len(filters) == 0 {
		return coins
	}

	before := len(coins)
	for key, raw := range filters {
		predicate, recognized := filterPredicate(key)
		if !recognized {
			continue
		}
		bound, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Warn().Str("filter", key).Str("value", raw).Msg("Skipping filter with non-numeric value")
			continue
		}

		kept := coins[:0]
		for _, coin := range coins {
			if predicate(coin, bound) {
				kept = append(kept, coin)
			}
		}
		coins = kept
	}

	logger.Info().Int("before", before).Int("after", len(coins)).Msg("Filters applied")
	return coins
}

// filterPredicate maps a filter key to its inclusive bound check.
func filterPredicate(key string) (func(*models.CoinMarketData, float64) bool, bool) {
	switch key {
	case "min_volume":
		return func(c *models.CoinMarketData, bound float64) bool {
			return c.Volume24h != nil && *c.Volume24h >= bound
		}, true
	case "min_market_cap":
		return func(c *models.CoinMarketData, bound float64) bool {
			return c.MarketCap != nil && *c.MarketCap >= bound
		}, true
	case "min_change_24h":
		return func(c *models.CoinMarketData, bound float64) bool {
			return c.PriceChange24h >= bound
		}, true
	case "max_change_24h":
		return func(c *models.CoinMarketData, bound float64) bool {
			return c.PriceChange24h <= bound
		}, true
	case "min_fib_position":
		return func(c *models.CoinMarketData, bound float64) bool {
			return c.FibonacciAnalysis != nil && c.FibonacciAnalysis.PositionPercentage >= bound
		}, true
	case "max_fib_position":
		return func(c *models.CoinMarketData, bound float64) bool {
			return c.FibonacciAnalysis != nil && c.FibonacciAnalysis.PositionPercentage <= bound
		}, true
	default:
		return nil, false
	}
}
