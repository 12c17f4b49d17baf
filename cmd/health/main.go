package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"fortune/internal/handlers"
)

func main() {
	lambda.Start(handlers.Health)
}
