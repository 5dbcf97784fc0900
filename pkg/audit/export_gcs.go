//go:build gcp

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSExporter uploads trail bundles to Google Cloud Storage, keyed by bundle
// hash so repeated exports are idempotent.
type GCSExporter struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSExporterConfig holds configuration for GCSExporter.
type GCSExporterConfig struct {
	Bucket string
	Prefix string
}

// NewGCSExporter creates a GCS-backed bundle exporter using ADC credentials.
func NewGCSExporter(ctx context.Context, cfg GCSExporterConfig) (*GCSExporter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: create GCS client: %w", err)
	}
	return &GCSExporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Export uploads a bundle and returns its object path.
func (e *GCSExporter) Export(ctx context.Context, bundle *Bundle) (string, error) {
	if err := VerifyBundle(bundle); err != nil {
		return "", err
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("audit: marshal bundle: %w", err)
	}

	objectPath := e.prefix + bundle.BundleHash + ".json"
	obj := e.client.Bucket(e.bucket).Object(objectPath)

	if _, err := obj.Attrs(ctx); err == nil {
		return objectPath, nil
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("audit: gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("audit: gcs close failed: %w", err)
	}
	return objectPath, nil
}

// Fetch downloads and verifies a previously exported bundle.
func (e *GCSExporter) Fetch(ctx context.Context, objectPath string) (*Bundle, error) {
	reader, err := e.client.Bucket(e.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: gcs get failed for %s: %w", objectPath, err)
	}
	defer func() { _ = reader.Close() }()

	var bundle Bundle
	if err := json.NewDecoder(reader).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("audit: decode bundle: %w", err)
	}
	if err := VerifyBundle(&bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Close closes the GCS client.
func (e *GCSExporter) Close() error {
	return e.client.Close()
}
