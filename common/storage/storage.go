// Package storage persists downloaded media thumbnails. Objects are named
// deterministically per message, so an existing object means the download
// can be skipped on later refreshes.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
)

// MediaStorage stores media blobs under stable object names.
type MediaStorage interface {
	// Exists reports whether the object is already stored.
	Exists(ctx context.Context, objectName string) (bool, error)

	// Save stores the content and returns the public URL of the object.
	Save(ctx context.Context, objectName string, content []byte, contentType string) (string, error)

	// URL returns the public URL an already stored object is served from.
	URL(objectName string) string
}

// New builds the backend selected by configuration.
func New(ctx context.Context, cfg config.MediaConfig) (MediaStorage, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStorage(cfg.LocalDir, cfg.BaseURL)
	case "gcs":
		return NewGCSStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
}

// LocalStorage writes media into a directory served by something else,
// typically nginx or the dev file server.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStorage) Exists(_ context.Context, objectName string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.dir, objectName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *LocalStorage) Save(_ context.Context, objectName string, content []byte, _ string) (string, error) {
	if err := os.WriteFile(filepath.Join(l.dir, objectName), content, 0o644); err != nil {
		return "", fmt.Errorf("writing media file %s: %w", objectName, err)
	}
	return l.URL(objectName), nil
}

func (l *LocalStorage) URL(objectName string) string {
	if l.baseURL == "" {
		return objectName
	}
	return l.baseURL + "/" + objectName
}
