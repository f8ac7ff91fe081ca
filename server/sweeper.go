package server

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper launches the background worker that deactivates chats
// with no activity for longer than maxIdle. It stops when ctx is done.
func StartSweeper(ctx context.Context, store *Store, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, store, maxIdle)
			}
		}
	}()
}

func sweep(ctx context.Context, store *Store, maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	n, err := store.DeactivateIdleChats(ctx, cutoff)
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Deactivated idle chats", "count", n, "cutoff", cutoff)
	}
}
