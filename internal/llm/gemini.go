package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiBackend struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func newGeminiBackend(ctx context.Context, opts Options) (*geminiBackend, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiBackend{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(opts.Temperature)),
			MaxOutputTokens: int32(opts.MaxTokens),
		},
	}, nil
}

func (b *geminiBackend) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), b.config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{Provider: ProviderGemini, Status: apiErr.Code, Body: truncateBody([]byte(apiErr.Message)), Err: err}
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
