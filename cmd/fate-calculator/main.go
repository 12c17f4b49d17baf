package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"fortune/internal/alerts"
	"fortune/internal/config"
	"fortune/internal/fate"
	"fortune/internal/handlers"
	"fortune/internal/llm"
	"fortune/internal/logging"
	"fortune/internal/store"
)

func main() {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	cfg, err := config.Load(ctx, ssm.NewFromConfig(awsCfg))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.FateTable == "" {
		log.Fatalf("missing env FATE_TABLE_NAME")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	gen, err := llm.New(ctx, cfg.LLMOptions(), awsCfg, logger)
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}

	records := store.New(dynamodb.NewFromConfig(awsCfg), cfg.FateTable, cfg.FateUserIndex)

	var notifier store.Notifier
	if cfg.AlertsTopic != "" {
		notifier = alerts.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.AlertsTopic)
	}
	writer := store.NewWriter(records, notifier, logger, cfg.PersistSync)

	h := handlers.NewFateHandler(fate.NewService(gen, logger), writer, logger)
	lambda.Start(h.Handle)
}
