package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"fortune/internal/config"
	"fortune/internal/handlers"
	"fortune/internal/logging"
)

func main() {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	h := handlers.NewPasswordHandler(cognitoidentityprovider.NewFromConfig(awsCfg), logger)
	lambda.Start(h.Handle)
}
