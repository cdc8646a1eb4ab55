package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionStore deletes rows older than a cutoff and reports how many went.
type RetentionStore interface {
	DeletePlanningSessionsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteAuditEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

type CleanupConfig struct {
	Interval         time.Duration
	SessionRetention time.Duration
	AuditRetention   time.Duration
}

// CleanupTask purges planning sessions and audit events past their retention
// window, once at start and then every Interval.
func CleanupTask(store RetentionStore, logger *slog.Logger, cfg CleanupConfig) DaemonFunc {
	return func(ctx context.Context, name string) error {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			if err := runCleanup(ctx, store, logger, cfg, time.Now().UTC()); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				logger.Info("Cleanup daemon shutting down", "daemon", name)
				return nil
			case <-ticker.C:
			}
		}
	}
}

func runCleanup(ctx context.Context, store RetentionStore, logger *slog.Logger, cfg CleanupConfig, now time.Time) error {
	if cfg.SessionRetention > 0 {
		n, err := store.DeletePlanningSessionsBefore(ctx, now.Add(-cfg.SessionRetention))
		if err != nil {
			return fmt.Errorf("cleanup: planning sessions: %w", err)
		}
		if n > 0 {
			logger.InfoContext(ctx, "Deleted expired planning sessions", "count", n)
		}
	}

	if cfg.AuditRetention > 0 {
		n, err := store.DeleteAuditEventsBefore(ctx, now.Add(-cfg.AuditRetention))
		if err != nil {
			return fmt.Errorf("cleanup: audit events: %w", err)
		}
		if n > 0 {
			logger.InfoContext(ctx, "Deleted expired audit events", "count", n)
		}
	}
	return nil
}
