// Package main serves the claims HTTP API as a Lambda behind API Gateway.
package main

import (
	"context"
	"log"
	"os"

	"github.com/kylejryan/claims-manager/internal/awsutil"
	"github.com/kylejryan/claims-manager/internal/backend"
	"github.com/kylejryan/claims-manager/internal/config"
	"github.com/kylejryan/claims-manager/internal/handler"
	"github.com/kylejryan/claims-manager/internal/lifecycle"
	"github.com/kylejryan/claims-manager/internal/logging"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env := config.MustLoad()
	logger := logging.New(os.Stdout, env.LogLevel)
	ctx := context.Background()

	clients, err := awsutil.Load(ctx, env.Region, env.Endpoint)
	if err != nil {
		log.Fatal(err)
	}
	store, err := backend.Open(ctx, env, &clients)
	if err != nil {
		log.Fatal(err)
	}

	var images *handler.Images
	if env.Bucket != "" {
		images = &handler.Images{
			Presigner: clients.Presign,
			Bucket:    env.Bucket,
			Region:    env.Region,
			BaseURL:   env.ImageBaseURL,
			TTL:       env.PresignTTL,
		}
	}

	app := handler.New(lifecycle.NewEngine(store, logger), handler.Options{
		Images:  images,
		Log:     logger,
		Timeout: env.RequestTimeout,
		Backend: env.Backend,
	})
	logger.Info("api.started", "backend", env.Backend, "images", images != nil)
	lambda.Start(app.Handle)
}
