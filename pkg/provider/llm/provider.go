// Package llm defines the Provider interface for the language-model backends
// that power the text-transformation stages of the Lectern refinement pipeline.
//
// A provider wraps a remote model API (OpenAI, Anthropic via any-llm, Gemini)
// and exposes a uniform request/response interface so the pipeline never
// couples to a specific SDK. Providers translate SDK errors into
// [*ProviderError] values carrying a [FailureKind], which is the only error
// classification the retry layer consults.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message represents a single message in a model conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. Stage invocations send a single
	// user message carrying the working text plus slide context.
	Messages []Message

	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers that lack a dedicated system field prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the full (non-streaming) model reply.
type CompletionResponse struct {
	// Content is the text of the reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// ModelCapabilities describes static properties of the backing model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens one completion may generate.
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly. Errors from the backend are wrapped as
// [*ProviderError] so callers can classify them without knowing the SDK.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the backing model. The
	// result is constant for the lifetime of the Provider instance.
	Capabilities() ModelCapabilities
}
