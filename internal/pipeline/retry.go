package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// Default retry parameters for a single stage invocation.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
)

// RetryConfig controls how stage failures are retried.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per stage, including the
	// first. Defaults to 3 if zero.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Doubles each
	// attempt up to MaxBackoff. Defaults to 500ms if zero.
	InitialBackoff time.Duration

	// MaxBackoff is the upper limit on backoff duration. Defaults to 8s
	// if zero.
	MaxBackoff time.Duration

	// sleep is replaced in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retry invokes fn until it succeeds, fails permanently, or the attempt
// budget is exhausted. Transient failures back off exponentially between
// attempts; permanent failures return immediately without retrying.
func retry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, label string, fn func(context.Context) error) error {
	cfg = cfg.withDefaults()
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		if llm.KindOf(lastErr) == llm.KindPermanent {
			logger.Warn("permanent failure, not retrying",
				"op", label,
				"attempt", attempt,
				"error", lastErr,
			)
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn("transient failure, backing off",
			"op", label,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"backoff", backoff,
			"error", lastErr,
		)

		if err := cfg.sleep(ctx, backoff); err != nil {
			return lastErr
		}

		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("pipeline: %s failed after %d attempts: %w", label, cfg.MaxAttempts, lastErr)
}
