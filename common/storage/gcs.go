package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
)

// GCSStorage implements MediaStorage on a Google Cloud Storage bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSStorage creates a new GCS storage backend
func NewGCSStorage(ctx context.Context, cfg config.MediaConfig) (*GCSStorage, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("gcs bucket is not configured")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentials))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.GCSBucket}, nil
}

func (g *GCSStorage) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(objectName).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking object %s: %w", objectName, err)
}

func (g *GCSStorage) Save(ctx context.Context, objectName string, content []byte, contentType string) (string, error) {
	wc := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, bytes.NewReader(content)); err != nil {
		return "", fmt.Errorf("uploading object %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("closing writer for %s: %w", objectName, err)
	}
	return g.URL(objectName), nil
}

func (g *GCSStorage) URL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, objectName)
}
