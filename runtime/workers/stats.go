package workers

import (
	"context"
	"log/slog"
	"time"

	"sparkchat/contract"
	"sparkchat/observability"
)

// StatsWorker periodically logs process health and per-mode waiting
// counts. Runs under the Supervisor alongside the matchmaking loop.
type StatsWorker struct {
	log        *slog.Logger
	monitor    *observability.Monitor
	matchmaker contract.Matchmaker
	interval   time.Duration
}

func NewStatsWorker(log *slog.Logger, monitor *observability.Monitor,
	matchmaker contract.Matchmaker, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, monitor: monitor, matchmaker: matchmaker, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := w.monitor.Sample()
			if err != nil {
				w.log.Warn("Could not sample process stats", "error", err)
				continue
			}
			counts, err := w.matchmaker.WaitingCounts(ctx)
			if err != nil {
				w.log.Warn("Could not read waiting counts", "error", err)
				continue
			}
			w.log.Info("Server stats",
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"goroutines", stats.Goroutines,
				"waiting", counts,
			)
		}
	}
}
