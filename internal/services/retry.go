package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/metrics"
	"github.com/castfund/backend/internal/store"
)

// retrier re-runs a unit that lost a lock race, doubling the delay each time.
type retrier struct {
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

func newRetrier(cfg *config.RetryConfig, logger *slog.Logger) retrier {
	r := retrier{attempts: 5, delay: 20 * time.Millisecond, logger: logger}
	if cfg != nil {
		if cfg.Attempts > 0 {
			r.attempts = cfg.Attempts
		}
		if cfg.BaseDelay > 0 {
			r.delay = cfg.BaseDelay
		}
	}
	return r
}

func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	delay := r.delay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, store.ErrConflict) {
			return err
		}
		if attempt >= r.attempts {
			r.logger.Warn("[LEDGER] giving up after conflicts", "op", op, "attempts", attempt, "error", err)
			return fmt.Errorf("%s: %w", op, storeError(err))
		}
		metrics.LedgerRetries.Inc()
		r.logger.Debug("[LEDGER] retrying after conflict", "op", op, "attempt", attempt, "delay", delay)
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
