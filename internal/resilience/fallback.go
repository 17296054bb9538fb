package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// ErrAllFailed is returned when every provider in a [FallbackProvider] fails
// or has an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// entry pairs a named provider with its dedicated circuit breaker.
type entry struct {
	name     string
	provider llm.Provider
	breaker  *CircuitBreaker
}

// FallbackProvider is an [llm.Provider] that wraps a primary and zero or
// more fallback providers. When the primary fails, or its circuit breaker is
// open, the next healthy fallback is tried in registration order.
//
// Permanent failures still fail over: an auth or quota problem on one
// backend says nothing about the next one. The last error is returned when
// every entry fails, wrapped in [ErrAllFailed], with its failure
// classification intact for the retry layer.
//
// FallbackProvider is safe for concurrent use after the last AddFallback.
type FallbackProvider struct {
	entries []entry
	cbCfg   BreakerConfig
}

var _ llm.Provider = (*FallbackProvider)(nil)

// NewFallbackProvider creates a group with primary as the first entry.
// Additional fallbacks are registered via [FallbackProvider.AddFallback]
// before first use.
func NewFallbackProvider(primaryName string, primary llm.Provider, cbCfg BreakerConfig) *FallbackProvider {
	named := cbCfg
	named.Name = primaryName
	return &FallbackProvider{
		entries: []entry{{
			name:     primaryName,
			provider: primary,
			breaker:  NewCircuitBreaker(named),
		}},
		cbCfg: cbCfg,
	}
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order
// they are added, after the primary. Not safe to call concurrently with
// Complete.
func (f *FallbackProvider) AddFallback(name string, p llm.Provider) {
	named := f.cbCfg
	named.Name = name
	f.entries = append(f.entries, entry{
		name:     name,
		provider: p,
		breaker:  NewCircuitBreaker(named),
	})
}

// Complete implements [llm.Provider]. It tries each entry in order until one
// succeeds, skipping entries whose breaker is open.
func (f *FallbackProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for i := range f.entries {
		e := &f.entries[i]

		var resp *llm.CompletionResponse
		err := e.breaker.Execute(func() error {
			var callErr error
			resp, callErr = e.provider.Complete(ctx, req)
			return callErr
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", e.name)
			continue
		}
		// Cancellation is the caller's doing, not the provider's.
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("provider failed, trying next",
			"provider", e.name,
			"kind", llm.KindOf(err).String(),
			"error", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// Capabilities implements [llm.Provider] by reporting the primary's
// capabilities; fallbacks are assumed comparable.
func (f *FallbackProvider) Capabilities() llm.ModelCapabilities {
	return f.entries[0].provider.Capabilities()
}
