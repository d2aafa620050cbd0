package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradescan/config"
	"tradescan/internal/api/coingecko"
	"tradescan/internal/cache"
	"tradescan/internal/scanner"
)

// filterFlags collects repeatable -filter key=value arguments.
type filterFlags map[string]string

func (f filterFlags) String() string { return fmt.Sprint(map[string]string(f)) }

func (f filterFlags) Set(value string) error {
	key, val, found := strings.Cut(value, "=")
	if !found {
		return fmt.Errorf("filter must be key=value, got %q", value)
	}
	f[key] = val
	return nil
}

func main() {
	limit := flag.Int("limit", 20, "how many top coins to scan")
	includeFib := flag.Bool("fib", true, "include Fibonacci analysis")
	workers := flag.Int("workers", 10, "concurrent scan workers")
	filters := filterFlags{}
	flag.Var(filters, "filter", "filter as key=value, repeatable (min_volume, min_change_24h, ...)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel) // keep the report readable
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cacheSvc := cache.New(time.Duration(cfg.CacheTTL)*time.Second, cfg.CacheMaxSize)
	client := coingecko.NewClient(coingecko.ClientOptions{
		BaseURL:        cfg.CoinGeckoAPIURL,
		CallsPerMinute: cfg.CoinGeckoRateLimit,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		Cache:          cacheSvc,
	})
	scannerSvc := scanner.New(client, *workers)

	result := scannerSvc.ScanTopCoins(context.Background(), *limit, *includeFib, filters)

	fmt.Printf("Scanned %d coins at %s\n\n", result.TotalCoins, result.Timestamp.Format(time.RFC3339))
	fmt.Printf("%-6s %-10s %-22s %14s %9s %10s\n", "RANK", "SYMBOL", "NAME", "PRICE", "24H %", "FIB POS %")
	for _, coin := range result.Coins {
		rank := "-"
		if coin.MarketCapRank != nil {
			rank = fmt.Sprintf("%d", *coin.MarketCapRank)
		}
		fibPos := "-"
		if coin.FibonacciAnalysis != nil {
			fibPos = fmt.Sprintf("%.2f", coin.FibonacciAnalysis.PositionPercentage)
		}
		name := coin.Name
		if len(name) > 22 {
			name = name[:22]
		}
		fmt.Printf("%-6s %-10s %-22s %14.4f %9.2f %10s\n",
			rank, coin.Symbol, name, coin.CurrentPrice, coin.PriceChange24h, fibPos)
	}

	if stats := cacheSvc.Stats(); stats.TotalRequests > 0 {
		fmt.Printf("\ncache: %d hits / %d misses (%.2f%%)\n", stats.Hits, stats.Misses, stats.HitRate)
	}
}
