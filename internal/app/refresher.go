package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/tickbox/internal/coalesce"
)

const maxBackoff = 30 * time.Second

type loader interface {
	Load(ctx context.Context) error
}

// StartRefresher launches a background goroutine that reloads l at a fixed
// cadence, backing off while loads fail. A zero interval disables it. It
// returns immediately.
func StartRefresher(ctx context.Context, l loader, interval, timeout time.Duration, logger *log.Logger) {
	if interval <= 0 {
		return
	}
	go func() {
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			err := refresh(ctx, l, timeout)
			switch {
			case err == nil:
				failures = 0
			case errors.Is(err, coalesce.ErrBusy):
				logger.Debug("refresh skipped, toggles pending")
			case errors.Is(err, coalesce.ErrClosed), ctx.Err() != nil:
				return
			default:
				failures++
				logger.Warn("refresh failed", "err", err, "failures", failures)
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
}

func refresh(ctx context.Context, l loader, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return l.Load(ctx)
}

// calculateBackoff doubles base per consecutive failure, capped at
// maxBackoff. It never returns less than base.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	if failures > 30 {
		return maxBackoff
	}
	d := base << failures
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
