// Package mock provides a test double for the stage.Executor interface.
//
// Use Executor in orchestrator tests to verify stage sequencing and to feed
// controlled outputs or failures without LLM calls.
package mock

import (
	"context"
	"sync"

	"github.com/hyunw00/lectern/internal/pipeline/stage"
)

// TransformCall records a single invocation of Transform.
type TransformCall struct {
	// Ctx is the context passed to Transform.
	Ctx context.Context
	// In is the Input passed to Transform.
	In stage.Input
}

// Executor is a mock implementation of stage.Executor.
// Zero values for response fields cause Transform to echo its input text.
type Executor struct {
	mu sync.Mutex

	// StageName is returned by Name.
	StageName stage.Name

	// TransformFunc, if non-nil, is invoked by Transform instead of the
	// field-based behavior. The call is still recorded.
	TransformFunc func(ctx context.Context, in stage.Input) (stage.Output, error)

	// TransformOutput is returned by Transform when set (non-zero).
	TransformOutput stage.Output

	// TransformErr, if non-nil, is returned as the error from Transform.
	TransformErr error

	// TransformCalls records every invocation of Transform in order.
	TransformCalls []TransformCall
}

// Name returns StageName.
func (e *Executor) Name() stage.Name { return e.StageName }

// Transform records the call and returns the configured output. With no
// configuration it echoes the input text, which keeps chained-stage tests
// readable.
func (e *Executor) Transform(ctx context.Context, in stage.Input) (stage.Output, error) {
	e.mu.Lock()
	e.TransformCalls = append(e.TransformCalls, TransformCall{Ctx: ctx, In: in})
	fn := e.TransformFunc
	out, err := e.TransformOutput, e.TransformErr
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, in)
	}
	if err != nil {
		return stage.Output{}, err
	}
	if out.Text == "" && out.Bullets == nil {
		return stage.Output{Text: in.Text}, nil
	}
	return out, nil
}

// CallCount returns the number of Transform invocations so far. Thread-safe.
func (e *Executor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.TransformCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TransformCalls = nil
}

// Ensure Executor implements stage.Executor at compile time.
var _ stage.Executor = (*Executor)(nil)
