package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"fortune/internal/config"
	"fortune/internal/handlers"
	"fortune/internal/logging"
	"fortune/internal/store"
)

func main() {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	cfg := config.FromEnv()
	if cfg.FateTable == "" {
		log.Fatalf("missing env FATE_TABLE_NAME")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	records := store.New(dynamodb.NewFromConfig(awsCfg), cfg.FateTable, cfg.FateUserIndex)
	h := handlers.NewHistoryHandler(records, logger)
	lambda.Start(h.Handle)
}
