package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"fortune/internal/llm"
)

// Config is built once per cold start and handed to every handler.
type Config struct {
	Region string

	LLMProvider    string
	LLMModel       string
	LLMAPIKey      string
	LLMAPIKeyParam string
	LLMBaseURL     string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	FateTable     string
	FateUserIndex string
	PersistSync   bool
	AlertsTopic   string

	UsersTable         string
	ProfileImageBucket string

	AnalyticsBucket string
	FortunesPrefix  string
	ETLDaysBack     int

	AthenaDatabase  string
	AthenaTable     string
	AthenaWorkgroup string
	AthenaOutput    string

	LogLevel  string
	LogFormat string
}

// ParamClient is the SSM call used to resolve the provider key.
type ParamClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// FromEnv reads the process environment after loading an optional .env file.
// Variables already set in the environment win over the file.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Region: env("AWS_REGION", "ap-northeast-2"),

		LLMProvider:    strings.ToLower(env("LLM_PROVIDER", llm.ProviderGroq)),
		LLMModel:       env("LLM_MODEL", ""),
		LLMAPIKey:      env("LLM_API_KEY", ""),
		LLMAPIKeyParam: env("LLM_API_KEY_PARAM", ""),
		LLMBaseURL:     env("LLM_BASE_URL", ""),
		LLMMaxTokens:   envInt("LLM_MAX_TOKENS", llm.DefaultMaxTokens),
		LLMTemperature: envFloat("LLM_TEMPERATURE", llm.DefaultTemperature),
		LLMTimeout:     time.Duration(envInt("LLM_TIMEOUT_SECONDS", int(llm.DefaultTimeout/time.Second))) * time.Second,

		FateTable:     env("FATE_TABLE_NAME", ""),
		FateUserIndex: env("FATE_USER_INDEX", "UserIdIndex"),
		PersistSync:   envBool("FATE_PERSIST_SYNC", false),
		AlertsTopic:   env("FATE_ALERTS_TOPIC_ARN", ""),

		UsersTable:         env("USERS_TABLE", ""),
		ProfileImageBucket: env("PROFILE_IMAGE_BUCKET", ""),

		AnalyticsBucket: env("ANALYTICS_BUCKET", ""),
		FortunesPrefix:  env("FORTUNES_PREFIX", "fortunes/"),
		ETLDaysBack:     envInt("ETL_DAYS_BACK", 1),

		AthenaDatabase:  env("ATHENA_DATABASE", ""),
		AthenaTable:     env("ATHENA_TABLE", ""),
		AthenaWorkgroup: env("ATHENA_WORKGROUP", "primary"),
		AthenaOutput:    env("ATHENA_OUTPUT", ""),

		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "json"),
	}
}

// Load reads the environment and, when LLM_API_KEY is empty but
// LLM_API_KEY_PARAM names a parameter, fetches the key from SSM. A missing key
// is not an error here; the generation client reports it per request.
func Load(ctx context.Context, params ParamClient) (Config, error) {
	cfg := FromEnv()
	if err := cfg.resolveAPIKey(ctx, params); err != nil {
		return cfg, err
	}
	if cfg.LLMTimeout >= 29*time.Second {
		return cfg, fmt.Errorf("LLM_TIMEOUT_SECONDS must stay under the 29s gateway limit, got %s", cfg.LLMTimeout)
	}
	return cfg, nil
}

func (c *Config) resolveAPIKey(ctx context.Context, params ParamClient) error {
	if c.LLMAPIKey != "" || c.LLMAPIKeyParam == "" || params == nil {
		return nil
	}
	out, err := params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.LLMAPIKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("ssm GetParameter %s: %w", c.LLMAPIKeyParam, err)
	}
	if out.Parameter != nil {
		c.LLMAPIKey = strings.TrimSpace(aws.ToString(out.Parameter.Value))
	}
	return nil
}

// LLMOptions maps the config onto the generation client's options.
func (c Config) LLMOptions() llm.Options {
	return llm.Options{
		Provider:    c.LLMProvider,
		Model:       c.LLMModel,
		APIKey:      c.LLMAPIKey,
		BaseURL:     c.LLMBaseURL,
		MaxTokens:   c.LLMMaxTokens,
		Temperature: c.LLMTemperature,
		Timeout:     c.LLMTimeout,
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env(key, "")); err == nil && v > 0 {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(env(key, ""), 64); err == nil && v > 0 {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(env(key, "")); err == nil {
		return v
	}
	return def
}
