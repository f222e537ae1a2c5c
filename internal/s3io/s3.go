// Package s3io presigns damage photo uploads and inspects stored images.
package s3io

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Presigner defines the interface for presigning S3 requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectAPI is the subset of *s3.Client used to inspect and remove uploaded images.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// PresignPut generates a presigned URL for uploading an object to S3 with the specified parameters.
func PresignPut(ctx context.Context, p Presigner, bucket, key, contentType string, meta map[string]string, ttl time.Duration) (string, time.Duration, error) {
	input := &s3.PutObjectInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		ContentType:          aws.String(contentType),
		Metadata:             meta,
		ServerSideEncryption: types.ServerSideEncryptionAwsKms,
	}

	req, err := p.PresignPutObject(ctx, input, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", 0, err
	}
	return req.URL, ttl, nil
}

// ObjectMetadata holds S3 object metadata and user-defined metadata.
type ObjectMetadata struct {
	Size        int64
	ETag        string
	ContentType string
	Meta        map[string]string // lowercased user metadata
}

// Head fetches the metadata of an uploaded object.
func Head(ctx context.Context, api ObjectAPI, bucket, key string) (ObjectMetadata, error) {
	ho, err := api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return ObjectMetadata{}, err
	}
	m := ObjectMetadata{
		Size:        aws.ToInt64(ho.ContentLength),
		ETag:        strings.Trim(aws.ToString(ho.ETag), `"`),
		ContentType: strings.ToLower(aws.ToString(ho.ContentType)),
		Meta:        make(map[string]string, len(ho.Metadata)),
	}
	for k, v := range ho.Metadata {
		m.Meta[strings.ToLower(k)] = v
	}
	return m, nil
}

// Delete removes an object.
func Delete(ctx context.Context, api ObjectAPI, bucket, key string) error {
	_, err := api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	return err
}
