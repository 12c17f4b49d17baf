package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"

	"fortune/internal/config"
	"fortune/internal/etl"
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

	r := etl.NewRepairer(athena.NewFromConfig(awsCfg), etl.RepairOptions{
		Database:  cfg.AthenaDatabase,
		Table:     cfg.AthenaTable,
		Workgroup: cfg.AthenaWorkgroup,
		Output:    cfg.AthenaOutput,
	}, logger)

	lambda.Start(func(ctx context.Context) (etl.RepairResult, error) {
		return r.Run(ctx)
	})
}
