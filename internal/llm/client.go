package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

const (
	ProviderGroq    = "groq"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
	DefaultTimeout     = 25 * time.Second
)

// Options selects and tunes a provider. Zero values take the defaults above
// and the provider's default model.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	o.Provider = strings.ToLower(strings.TrimSpace(o.Provider))
	if o.Provider == "" {
		o.Provider = ProviderGroq
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// backend performs a single completion call. Implementations return the raw
// text and leave timeout and empty-text classification to Client.
type backend interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// Client sends a prompt to one configured provider. It never retries.
type Client struct {
	provider  string
	model     string
	timeout   time.Duration
	backend   backend
	configErr error
	log       *zap.Logger
}

// New builds the client for opts.Provider. A missing API key does not fail
// here; Generate reports it as a *ConfigurationError on every call.
func New(ctx context.Context, opts Options, awsCfg aws.Config, log *zap.Logger) (*Client, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{provider: opts.Provider, timeout: opts.Timeout, log: log}

	switch opts.Provider {
	case ProviderGroq:
		if opts.APIKey == "" {
			c.configErr = &ConfigurationError{Provider: opts.Provider, Reason: "API key is not set"}
			break
		}
		b := newChatBackend(opts)
		c.model, c.backend = b.model, b
	case ProviderGemini:
		if opts.APIKey == "" {
			c.configErr = &ConfigurationError{Provider: opts.Provider, Reason: "API key is not set"}
			break
		}
		b, err := newGeminiBackend(ctx, opts)
		if err != nil {
			return nil, err
		}
		c.model, c.backend = b.model, b
	case ProviderBedrock:
		b := newBedrockBackend(bedrockruntime.NewFromConfig(awsCfg), opts)
		c.model, c.backend = b.model, b
	default:
		return nil, &ConfigurationError{Provider: opts.Provider, Reason: "unknown provider"}
	}
	return c, nil
}

func newClient(provider string, b backend, timeout time.Duration) *Client {
	return &Client{provider: provider, timeout: timeout, backend: b, log: zap.NewNop()}
}

func (c *Client) Provider() string { return c.provider }
func (c *Client) Model() string    { return c.model }

// Generate returns the provider's raw text for prompt. Errors are one of
// *ConfigurationError, *UpstreamError, *TimeoutError or *EmptyResponseError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.configErr != nil {
		return "", c.configErr
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.backend.complete(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.log.Warn("llm timeout", zap.String("provider", c.provider), zap.Duration("elapsed", elapsed))
			return "", &TimeoutError{Provider: c.provider, After: c.timeout, Err: err}
		}
		var up *UpstreamError
		if errors.As(err, &up) {
			return "", err
		}
		return "", &UpstreamError{Provider: c.provider, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &EmptyResponseError{Provider: c.provider}
	}
	c.log.Debug("llm completion",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", elapsed),
	)
	return text, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("%s(%s)", c.provider, c.model)
}
