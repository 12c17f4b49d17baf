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
	"fortune/internal/profile"
)

func main() {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	cfg := config.FromEnv()
	if cfg.UsersTable == "" {
		log.Fatalf("missing env USERS_TABLE")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	users := profile.NewDirectory(dynamodb.NewFromConfig(awsCfg), cfg.UsersTable)
	h := handlers.NewProfileHandler(nil, users, logger)
	lambda.Start(h.UpdateImage)
}
