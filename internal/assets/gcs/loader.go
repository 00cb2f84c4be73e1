// Package gcs serves assets from a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/coreapi/internal/assets"
)

// Config captures the bucket and optional object prefix assets live under.
type Config struct {
	Bucket string
	Prefix string
}

// Loader reads assets from a GCS bucket.
type Loader struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed loader. Authentication is handled by the client.
func New(client *storage.Client, cfg Config) (*Loader, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Loader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Object returns the object key an asset name maps to.
func (l *Loader) Object(name string) string {
	if l.prefix == "" {
		return name
	}
	return path.Join(l.prefix, name)
}

// Open implements assets.Loader.
func (l *Loader) Open(ctx context.Context, name string) (*assets.Asset, error) {
	cleaned, err := assets.CleanName(name)
	if err != nil {
		return nil, err
	}
	object := l.Object(cleaned)
	r, err := l.client.Bucket(l.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, assets.ErrNotFound
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", l.bucket, object, err)
	}
	contentType := r.Attrs.ContentType
	if contentType == "" {
		contentType = assets.ContentType(cleaned)
	}
	return &assets.Asset{
		Name:        cleaned,
		Body:        r,
		ContentType: contentType,
		Size:        r.Attrs.Size,
		ModTime:     r.Attrs.LastModified,
	}, nil
}
