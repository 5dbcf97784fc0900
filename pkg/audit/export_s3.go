package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Exporter uploads trail bundles to S3, keyed by bundle hash so repeated
// exports of the same slice are idempotent.
type S3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3ExporterConfig holds configuration for S3Exporter.
type S3ExporterConfig struct {
	Bucket   string
	Region   string
	Endpoint string // for MinIO, LocalStack, etc.
	Prefix   string
}

// NewS3Exporter creates an S3-backed bundle exporter.
func NewS3Exporter(ctx context.Context, cfg S3ExporterConfig) (*S3Exporter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("audit: load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	return &S3Exporter{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Export uploads a bundle and returns its object key.
func (e *S3Exporter) Export(ctx context.Context, bundle *Bundle) (string, error) {
	if err := VerifyBundle(bundle); err != nil {
		return "", err
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("audit: marshal bundle: %w", err)
	}

	key := e.prefix + bundle.BundleHash + ".json"

	// Idempotent: a bundle with the same hash is the same bundle.
	_, err = e.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return key, nil
	}

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("audit: s3 put failed: %w", err)
	}
	return key, nil
}

// Fetch downloads and verifies a previously exported bundle.
func (e *S3Exporter) Fetch(ctx context.Context, key string) (*Bundle, error) {
	result, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: s3 get failed for %s: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	var bundle Bundle
	if err := json.NewDecoder(result.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("audit: decode bundle: %w", err)
	}
	if err := VerifyBundle(&bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}
