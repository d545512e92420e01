package clients

import (
	"context"
	"fmt"
	"io"

	"traininglog/lib/constants"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the SDK client used by S3Client
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ClientInterface defines the interface for S3 operations
type S3ClientInterface interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// S3Client wraps the AWS S3 client for a single bucket
type S3Client struct {
	svc    S3API
	bucket string
}

// NewS3Client creates a new S3 client instance
func NewS3Client(isLocal bool, bucket string) S3ClientInterface {
	cfg := loadAWSConfig(false, "")

	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if isLocal {
			o.BaseEndpoint = aws.String(constants.LOCALSTACK_URL)
		}
		o.UsePathStyle = true
	})

	return NewS3ClientWithAPI(svc, bucket)
}

// NewS3ClientWithAPI wraps an existing SDK client
func NewS3ClientWithAPI(svc S3API, bucket string) *S3Client {
	return &S3Client{
		svc:    svc,
		bucket: bucket,
	}
}

// ListKeys returns every object key under prefix
func (client *S3Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(client.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		output, err := client.svc.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s/%s: %w", client.bucket, prefix, err)
		}

		for _, object := range output.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return keys, nil
}

// GetObject downloads an object from the bucket
func (client *S3Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	output, err := client.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", client.bucket, key, err)
	}
	defer output.Body.Close()

	return io.ReadAll(output.Body)
}
