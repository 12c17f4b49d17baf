package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	defaultChatBaseURL = "https://api.groq.com/openai/v1"
	defaultChatModel   = "llama-3.3-70b-versatile"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatBackend talks to an OpenAI-compatible /chat/completions endpoint
// (Groq by default).
type chatBackend struct {
	client      *resty.Client
	model       string
	maxTokens   int
	temperature float64
}

func newChatBackend(opts Options) *chatBackend {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultChatBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultChatModel
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(opts.Timeout)
	client.SetAuthToken(opts.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &chatBackend{
		client:      client,
		model:       model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (b *chatBackend) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       b.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: b.temperature,
			MaxTokens:   b.maxTokens,
		}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completions: %w", err)
	}
	if resp.IsError() {
		return "", &UpstreamError{Provider: ProviderGroq, Status: resp.StatusCode(), Body: truncateBody(resp.Body())}
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &UpstreamError{
			Provider: ProviderGroq,
			Status:   resp.StatusCode(),
			Body:     truncateBody(resp.Body()),
			Err:      fmt.Errorf("decode chat response: %w", err),
		}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *out.Choices[0].Message.Content, nil
}
