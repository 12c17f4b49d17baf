package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"fortune/internal/config"
	"fortune/internal/fate"
	"fortune/internal/llm"
	"fortune/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fatectl",
		Short:         "Run the fortune pipeline locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPromptCmd(), newNormalizeCmd(), newCalcCmd())
	return root
}

// requestFlags binds a fate.Request to command flags.
func requestFlags(cmd *cobra.Command, r *fate.Request) {
	f := cmd.Flags()
	f.StringVar(&r.Category, "category", "", "reading category")
	f.StringVar(&r.Language, "lang", "ko", "ko, en or ja")
	f.StringVar(&r.BirthDate, "birth-date", "", "YYYY-MM-DD")
	f.StringVar(&r.BirthTime, "birth-time", "", "HH:MM")
	f.StringVar(&r.Gender, "gender", "", "male or female")
	f.StringVar(&r.PartnerBirthDate, "partner-birth-date", "", "YYYY-MM-DD")
	f.StringVar(&r.PartnerBirthTime, "partner-birth-time", "", "HH:MM")
	f.StringVar(&r.PartnerGender, "partner-gender", "", "male or female")
	f.StringVar(&r.ZodiacSign, "zodiac", "", "zodiac animal")
	f.StringVar(&r.Constellation, "constellation", "", "star sign")
	_ = cmd.MarkFlagRequired("category")
}

func newPromptCmd() *cobra.Command {
	var (
		req   fate.Request
		today string
	)
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the prompt for a request without calling a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := fate.Validate(req)
			if err != nil {
				return err
			}
			if today == "" {
				today = time.Now().UTC().Format("2006-01-02")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), fate.BuildPrompt(fate.NewPromptInput(in, today)))
			return err
		},
	}
	requestFlags(cmd, &req)
	cmd.Flags().StringVar(&today, "today", "", "reference date, YYYY-MM-DD (default: current UTC date)")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize raw model output read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			n := fate.Normalize(string(raw), fate.FallbackPhrase(fate.ParseLanguage(lang)))
			return printFields(cmd.OutOrStdout(), n.Strategy, n.Fields)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "ko", "language of the fallback phrase")
	return cmd
}

func newCalcCmd() *cobra.Command {
	var req fate.Request
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Generate a reading with the configured provider; nothing is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load(ctx, nil)
			if err != nil {
				return err
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
			if err != nil {
				return fmt.Errorf("load aws config: %w", err)
			}
			logger := logging.New(cfg.LogLevel, "console")
			defer func() { _ = logger.Sync() }()

			gen, err := llm.New(ctx, cfg.LLMOptions(), awsCfg, logger)
			if err != nil {
				return err
			}
			out, err := fate.NewService(gen, logger).Calculate(ctx, req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), gen.String(), out)
		},
	}
	requestFlags(cmd, &req)
	return cmd
}

func printFields(w io.Writer, strategy string, fields map[string]any) error {
	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	s := field("strategy", strategy)
	if strategy != fate.StrategyDirect {
		s = warnStyle.Render(s)
	}
	_, err = fmt.Fprintf(w, "%s\n%s\n", s, boxStyle.Render(string(b)))
	return err
}

func printResult(w io.Writer, provider string, out *fate.Outcome) error {
	b, err := json.MarshalIndent(out.Result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n%s\n%s\n%s\n",
		titleStyle.Render(string(out.Input.Category)),
		field("provider", provider),
		field("strategy", out.Strategy),
		boxStyle.Render(string(b)),
	)
	return err
}
