package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradescan/config"
	"tradescan/internal/api/coingecko"
	"tradescan/internal/cache"
	"tradescan/internal/jobs"
	"tradescan/internal/scanner"
	"tradescan/internal/web"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting Trade-Scan API server")

	// 3. Build the shared cache and inject it everywhere that fetches
	cacheSvc := cache.New(time.Duration(cfg.CacheTTL)*time.Second, cfg.CacheMaxSize)

	client := coingecko.NewClient(coingecko.ClientOptions{
		BaseURL:        cfg.CoinGeckoAPIURL,
		CallsPerMinute: cfg.CoinGeckoRateLimit,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		Cache:          cacheSvc,
	})

	scannerSvc := scanner.New(client, cfg.ScanWorkers)

	// 4. Optional cache warm-up job
	if cfg.WarmIntervalMin > 0 {
		warmer := jobs.NewWarmer(client, cfg.WarmLimit)
		warmer.Start(time.Duration(cfg.WarmIntervalMin) * time.Minute)
		defer warmer.Stop()
	}

	// 5. Handle interrupt signals
	setupSignalHandling()

	// 6. Serve
	server := web.NewServer(scannerSvc, client, cacheSvc, cfg.CORSOrigins)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := server.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, exiting...")
		os.Exit(0)
	}()
}

// setupLogging configures the zerolog global level
func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
