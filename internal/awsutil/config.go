// Package awsutil builds AWS SDK clients for the claim services.
package awsutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Clients bundles the SDK clients a process needs.
type Clients struct {
	Config   aws.Config
	Endpoint string // non-empty when pointed at LocalStack, e.g. http://localstack:4566
	DynamoDB *dynamodb.Client
	S3       *s3.Client
	Presign  *s3.PresignClient
}

// Load loads the AWS configuration, using endpoint as the base URL for every
// service when it is set.
func Load(ctx context.Context, region, endpoint string) (Clients, error) {
	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, awsCfg.WithBaseEndpoint(endpoint))
	}
	cfg, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return Clients{}, err
	}

	// S3 client: use path-style when hitting LocalStack
	s3c := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})
	return Clients{
		Config:   cfg,
		Endpoint: endpoint,
		DynamoDB: dynamodb.NewFromConfig(cfg),
		S3:       s3c,
		Presign:  s3.NewPresignClient(s3c),
	}, nil
}
