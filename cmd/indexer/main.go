// Package main checks damage photos after S3 PUT and removes uploads for claims that can no longer take them.
package main

import (
	"context"
	"log"
	"os"

	"github.com/kylejryan/claims-manager/internal/awsutil"
	"github.com/kylejryan/claims-manager/internal/backend"
	"github.com/kylejryan/claims-manager/internal/config"
	"github.com/kylejryan/claims-manager/internal/indexer"
	"github.com/kylejryan/claims-manager/internal/lifecycle"
	"github.com/kylejryan/claims-manager/internal/logging"

	"github.com/aws/aws-lambda-go/lambda"
)

// main initializes the indexer and starts the Lambda handler.
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

	ix := indexer.New(lifecycle.NewEngine(store, logger), clients.S3, logger)
	lambda.Start(ix.Handle)
}
