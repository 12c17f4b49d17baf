package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const defaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockBackend struct {
	client      BedrockClient
	model       string
	maxTokens   int
	temperature float64
}

func newBedrockBackend(c BedrockClient, opts Options) *bedrockBackend {
	model := opts.Model
	if model == "" {
		model = defaultBedrockModel
	}
	return &bedrockBackend{client: c, model: model, maxTokens: opts.MaxTokens, temperature: opts.Temperature}
}

// complete uses the Anthropic messages payload Bedrock expects for Claude.
func (b *bedrockBackend) complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        b.maxTokens,
		"temperature":       b.temperature,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
				},
			},
		},
	}
	body, _ := json.Marshal(payload)

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		var hs interface{ HTTPStatusCode() int }
		if errors.As(err, &hs) && !isTimeout(err) {
			return "", &UpstreamError{Provider: ProviderBedrock, Status: hs.HTTPStatusCode(), Body: truncateBody([]byte(err.Error())), Err: err}
		}
		return "", fmt.Errorf("bedrock InvokeModel: %w", err)
	}

	var raw struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &raw); err != nil {
		return "", &UpstreamError{Provider: ProviderBedrock, Body: truncateBody(out.Body), Err: fmt.Errorf("bedrock response unmarshal: %w", err)}
	}

	var sb strings.Builder
	for _, c := range raw.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}
