package llm

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a provider failure for the retry layer.
type FailureKind int

const (
	// KindTransient marks retryable failures: network errors, timeouts,
	// rate limits, and 5xx server errors.
	KindTransient FailureKind = iota

	// KindPermanent marks non-retryable failures: invalid input, auth
	// errors, and content-policy rejections. A permanent failure fails the
	// owning pipeline run immediately for that stage.
	KindPermanent
)

// String returns the human-readable name of the kind.
func (k FailureKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ProviderError wraps a backend failure with its classification.
// Providers construct these from SDK errors; the pipeline only ever
// inspects Kind.
type ProviderError struct {
	// Provider is the provider name ("openai", "anyllm", "gemini").
	Provider string

	// Kind classifies the failure for retry purposes.
	Kind FailureKind

	// Status is the HTTP status code when the backend reported one, else 0.
	Status int

	// Err is the underlying SDK error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s failure (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.Err }

// WrapStatus classifies an HTTP-status-bearing backend error. Only 4xx
// statuses are permanent, except 408 and 429 which are worth retrying.
// Everything else, including an unknown status of 0, is transient: the same
// fail-open posture [KindOf] applies to unclassified errors.
func WrapStatus(provider string, status int, err error) *ProviderError {
	kind := KindTransient
	if status >= 400 && status < 500 && status != 408 && status != 429 {
		kind = KindPermanent
	}
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Err: err}
}

// KindOf extracts the [FailureKind] from err.
//
// Classification rules, in order:
//  1. A wrapped [*ProviderError] reports its own Kind.
//  2. context.DeadlineExceeded is transient (stage timeouts are retried).
//  3. context.Canceled is permanent (the session is going away).
//  4. Anything else — raw network errors, unclassified SDK errors — is
//     treated as transient, matching the fail-open posture of the pipeline:
//     a retry costs little, a dropped note costs the whole slide.
func KindOf(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	return KindTransient
}
