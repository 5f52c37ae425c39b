package engine

import (
	"context"
	"log/slog"
	"time"

	"dailyboard/metrics"
)

// PruneLoop periodically asks a Pruner to drop rows from past days.
type PruneLoop struct {
	store    Pruner
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Registry
}

// NewPruneLoop builds a loop ticking every interval.
func NewPruneLoop(store Pruner, interval time.Duration, logger *slog.Logger, reg *metrics.Registry) *PruneLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneLoop{store: store, interval: interval, log: logger.With("component", "pruner"), metrics: reg}
}

// Start runs until ctx is cancelled. It blocks; run it in its own goroutine.
func (p *PruneLoop) Start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			p.log.Debug("pruner stopped")
			return
		}
	}
}

// RunOnce performs a single cleanup cycle and returns the number of rows removed.
func (p *PruneLoop) RunOnce(ctx context.Context) int {
	removed, err := p.store.RemoveExpired(ctx)
	if err != nil {
		p.log.Warn("prune failed", "error", err)
		return 0
	}
	if removed > 0 {
		p.metrics.Add(metrics.PrunedRecordsTotal, int64(removed))
		p.log.Info("pruned expired scores", "removed", removed)
	}
	return removed
}
