package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradescan/models"
)

// Warmer periodically refreshes the top-coin listing so interactive
// scans rarely pay for the list fetch. The refresh bypasses the cache
// read and repopulates it through the client's write-through.
type Warmer struct {
	cron   *gocron.Scheduler
	client models.MarketDataClient
	limit  int
	logger zerolog.Logger
}

// NewWarmer creates a warmer refreshing the top limit coins on every tick.
func NewWarmer(client models.MarketDataClient, limit int) *Warmer {
	return &Warmer{
		cron:   gocron.NewScheduler(time.UTC),
		client: client,
		limit:  limit,
		logger: log.With().Str("component", "warmup").Logger(),
	}
}

// Start schedules the warm-up job and runs the scheduler in the
// background.
func (w *Warmer) Start(interval time.Duration) {
	w.cron.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		if _, err := w.client.GetTopCoins(ctx, w.limit, false); err != nil {
			w.logger.Warn().Err(err).Msg("Cache warm-up failed")
			return
		}
		w.logger.Info().Int("limit", w.limit).Msg("Top-coin cache warmed")
	})
	w.cron.StartAsync()
	w.logger.Info().Dur("interval", interval).Msg("Warm-up scheduler started")
}

// Stop halts the scheduler.
func (w *Warmer) Stop() {
	w.cron.Stop()
}
