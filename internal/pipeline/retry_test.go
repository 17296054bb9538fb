package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

func testRetryConfig(sleeps *[]time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
}

func TestRetry_TransientBacksOffExponentially(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	calls := 0
	err := retry(context.Background(), testRetryConfig(&sleeps), slog.Default(), "polish", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &llm.ProviderError{Provider: "openai", Kind: llm.KindTransient, Err: errors.New("overloaded")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestRetry_BackoffCapped(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	cfg := testRetryConfig(&sleeps)
	cfg.MaxAttempts = 5
	cfg.MaxBackoff = 150 * time.Millisecond

	boom := &llm.ProviderError{Provider: "openai", Kind: llm.KindTransient, Err: errors.New("overloaded")}
	err := retry(context.Background(), cfg, slog.Default(), "polish", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	want := []time.Duration{100 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestRetry_PermanentFailsImmediately(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	calls := 0
	boom := &llm.ProviderError{Provider: "openai", Kind: llm.KindPermanent, Err: errors.New("bad request")}
	err := retry(context.Background(), testRetryConfig(&sleeps), slog.Default(), "polish", func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for permanent failures)", calls)
	}
	if len(sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", sleeps)
	}
}

func TestRetry_ContextCancelStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	boom := &llm.ProviderError{Provider: "openai", Kind: llm.KindTransient, Err: errors.New("overloaded")}

	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	calls := 0
	err := retry(ctx, cfg, slog.Default(), "polish", func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want last attempt's error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled during backoff)", calls)
	}
}
