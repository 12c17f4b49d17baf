package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

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
	if cfg.ProfileImageBucket == "" {
		log.Fatalf("missing env PROFILE_IMAGE_BUCKET")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	presigner := s3.NewPresignClient(s3.NewFromConfig(awsCfg))
	images := profile.NewImages(presigner, cfg.ProfileImageBucket, cfg.Region)

	h := handlers.NewProfileHandler(images, nil, logger)
	lambda.Start(h.UploadURL)
}
