package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunRoutineSweeper calls SweepIncomplete every interval until ctx is done.
func RunRoutineSweeper(ctx context.Context, routines RoutineService, interval, grace time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	logger = logger.Named("sweeper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := routines.SweepIncomplete(ctx, grace)
			if err != nil {
				logger.Error("Routine sweep failed", zap.Int("deleted", deleted), zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("Removed incomplete routines", zap.Int("deleted", deleted))
			}
		}
	}
}
