package fate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Generator turns a prompt into free-form model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome is a completed reading plus the artifacts that produced it.
type Outcome struct {
	Input    *Input
	Result   Result
	Prompt   string
	Strategy string
}

type Service struct {
	gen Generator
	log *zap.Logger
	now func() time.Time
}

func NewService(gen Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{gen: gen, log: log, now: time.Now}
}

// WithClock replaces the clock used for the prompt's reference date.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Calculate validates the request, asks the generator for a reading and
// shapes the normalized answer. Errors are either a *ValidationError or
// whatever the generator returned; normalization itself never fails.
func (s *Service) Calculate(ctx context.Context, req Request) (*Outcome, error) {
	in, err := Validate(req)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(NewPromptInput(in, s.now().UTC().Format("2006-01-02")))

	start := time.Now()
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate %s reading: %w", in.Category, err)
	}

	norm := Normalize(raw, FallbackPhrase(in.Language))
	s.log.Info("fortune generated",
		zap.String("category", string(in.Category)),
		zap.String("language", string(in.Language)),
		zap.String("strategy", norm.Strategy),
		zap.Int("raw_len", len(raw)),
		zap.Duration("latency", time.Since(start)),
	)
	if norm.Strategy != StrategyDirect {
		s.log.Warn("model output needed repair", zap.String("strategy", norm.Strategy))
	}

	return &Outcome{
		Input:    in,
		Result:   Shape(in, norm.Fields),
		Prompt:   prompt,
		Strategy: norm.Strategy,
	}, nil
}
