// Package gemini provides an LLM provider backed by the Google Gemini API
// via google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hyunw00/lectern/pkg/provider/llm"
)

// Provider implements llm.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// New constructs a new Gemini Provider. The client is created eagerly so
// credential problems surface at startup rather than mid-lecture.
func New(ctx context.Context, apiKey string, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	// Gemini has no per-message role union matching ours; fold the
	// conversation into a single text part, which is all the pipeline sends.
	var sb strings.Builder
	for i, m := range req.Messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.Content)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(sb.String()), cfg)
	if err != nil {
		return nil, wrapErr(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, &llm.ProviderError{
			Provider: "gemini",
			Kind:     llm.KindTransient,
			Err:      errors.New("empty response"),
		}
	}

	result := &llm.CompletionResponse{Content: text}
	if md := resp.UsageMetadata; md != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return result, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{
		ContextWindow:   1_000_000,
		MaxOutputTokens: 8_192,
	}
}

// wrapErr converts a genai SDK error into an [*llm.ProviderError].
func wrapErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.WrapStatus("gemini", apiErr.Code, err)
	}
	return &llm.ProviderError{Provider: "gemini", Kind: llm.KindTransient, Err: err}
}
