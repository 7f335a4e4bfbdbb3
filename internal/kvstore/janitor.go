package kvstore

import (
	"context"
	"log/slog"
	"time"
)

// SweepFunc removes expired entries and reports how many were removed.
type SweepFunc func(ctx context.Context) (int64, error)

// SweepExpired adapts Memory to a SweepFunc.
func (m *Memory) SweepExpired(context.Context) (int64, error) {
	return int64(m.Sweep()), nil
}

// RunJanitor calls sweep every interval until ctx is done. Stores with native
// expiry (Redis) do not need one.
func RunJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger, name string, sweep SweepFunc) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil {
				logger.Warn("sweep expired entries failed", "store", name, "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept expired entries", "store", name, "removed", n)
			}
		}
	}
}
