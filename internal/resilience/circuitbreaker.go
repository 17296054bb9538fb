// Package resilience keeps the refinement pipeline running when an LLM
// backend degrades. [CircuitBreaker] trips after repeated stage-call failures
// so a dead backend stops eating retry budget, and [FallbackProvider] chains
// several [llm.Provider] instances behind per-entry breakers so refinement
// silently moves to the next healthy provider.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// tripped and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after too
	// many consecutive failures, left once the reset timeout elapses.
	StateOpen

	// StateHalfOpen admits a bounded number of trial calls. Enough wins close
	// the breaker again; a single loss trips it back open.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [CircuitBreaker].
type BreakerConfig struct {
	// Name labels the breaker in log output, typically the provider name.
	Name string

	// MaxFailures is the consecutive-failure count that trips the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before
	// admitting trial calls again. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the trial calls admitted while half-open; the same
	// number of wins closes the breaker. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker guards calls to a single backend. A run of MaxFailures
// consecutive losses trips it; after ResetTimeout it admits up to HalfOpenMax
// trial calls and closes once that many succeed.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu        sync.Mutex
	state     State
	streak    int       // consecutive failures while closed
	openedAt  time.Time // when the breaker last tripped
	probes    int       // trial calls admitted this half-open round
	probeWins int       // trial calls that succeeded this round
}

// NewCircuitBreaker builds a closed breaker from cfg, substituting defaults
// for zero-value fields.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn if the breaker admits the call, otherwise it returns
// [ErrCircuitOpen] without running fn. fn's error is returned either way and
// feeds the breaker's accounting.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()
	cb.settle(trial, err)
	return err
}

// admit decides whether a call may proceed, performing the lazy open to
// half-open transition. trial reports whether the call counts against the
// half-open budget.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeWins = 0
		slog.Info("circuit breaker transitioning to half-open",
			"name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(trial bool, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case callErr != nil && trial:
		// One loss during a trial round trips the breaker again.
		cb.state = StateOpen
		cb.openedAt = time.Now()
		slog.Warn("circuit breaker re-opened from half-open",
			"name", cb.name)

	case callErr != nil:
		cb.streak++
		if cb.streak >= cb.maxFailures {
			cb.state = StateOpen
			cb.openedAt = time.Now()
			slog.Warn("circuit breaker opened",
				"name", cb.name,
				"consecutive_failures", cb.streak)
		}

	case trial:
		cb.probeWins++
		if cb.probeWins >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.streak = 0
			slog.Info("circuit breaker closed after successful probes",
				"name", cb.name)
		}

	default:
		cb.streak = 0
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the stored state moves on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.streak = 0
	cb.probes = 0
	cb.probeWins = 0
}
