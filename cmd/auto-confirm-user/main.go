package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"fortune/internal/config"
	"fortune/internal/handlers"
	"fortune/internal/logging"
)

func main() {
	cfg := config.FromEnv()
	h := handlers.NewAutoConfirm(logging.New(cfg.LogLevel, cfg.LogFormat))
	lambda.Start(h.Handle)
}
