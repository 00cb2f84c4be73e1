// Package assets loads the static files served by the core handlers. Loaders
// are read-only and keyed by slash-separated names relative to a root.
package assets

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the named asset does not exist.
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidName is returned for names that are empty, absolute or escape the root.
	ErrInvalidName = errors.New("invalid asset name")
)

// Asset is an open static file. Callers must close Body.
type Asset struct {
	Name        string
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Loader opens assets by name.
type Loader interface {
	Open(ctx context.Context, name string) (*Asset, error)
}

// CleanName validates a requested asset name and returns its canonical form.
// Names must be relative and may not contain "..", backslashes or NUL bytes.
func CleanName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "\\\x00") || strings.HasPrefix(name, "/") {
		return "", ErrInvalidName
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", ErrInvalidName
		}
	}
	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", ErrInvalidName
	}
	return cleaned, nil
}

// ContentType guesses a MIME type from the name's extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
