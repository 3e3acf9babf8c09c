package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveClientConfig holds configuration for ArchiveClient
type ArchiveClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// ArchiveClient stores raw source text in S3-compatible object storage so
// a source can be re-ingested without the original upload.
type ArchiveClient struct {
	client *s3.Client
	bucket string
}

// NewArchiveClient creates a new ArchiveClient with the given configuration
func NewArchiveClient(ctx context.Context, cfg ArchiveClientConfig) (*ArchiveClient, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &ArchiveClient{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func sourceTextKey(sourceID string) string {
	return "sources/" + sourceID + "/raw.txt"
}

// ArchiveSourceText stores the raw text of a source under a key derived from
// its ID, overwriting any previous archive for the same source.
func (c *ArchiveClient) ArchiveSourceText(ctx context.Context, sourceID, text string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(sourceTextKey(sourceID)),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}

	_, err := c.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to archive source text: %w", err)
	}

	return nil
}

// GetSourceText fetches the archived raw text of a source
func (c *ArchiveClient) GetSourceText(ctx context.Context, sourceID string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(sourceTextKey(sourceID)),
	}

	output, err := c.client.GetObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to get archived source text: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read archived source text: %w", err)
	}

	return string(data), nil
}

// DeleteSourceText removes the archived text for a source
func (c *ArchiveClient) DeleteSourceText(ctx context.Context, sourceID string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(sourceTextKey(sourceID)),
	}

	_, err := c.client.DeleteObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to delete archived source text: %w", err)
	}

	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *ArchiveClient) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
