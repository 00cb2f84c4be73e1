// Package local serves assets from a directory on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/coreapi/internal/assets"
)

// Config captures the parameters for the local filesystem loader.
type Config struct {
	// BaseDir is the directory assets are read from.
	BaseDir string `mapstructure:"dir" yaml:"dir"`
}

// Loader reads assets below a base directory.
type Loader struct {
	baseDir string
	missing bool
}

// New creates a loader rooted at cfg.BaseDir. A directory that does not exist
// yet is accepted and every asset reads as not found until it is created; an
// existing path that is not a directory is an error.
func New(cfg Config) (*Loader, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return &Loader{baseDir: abs, missing: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &Loader{baseDir: abs}, nil
}

// BaseDir returns the absolute directory assets are read from.
func (l *Loader) BaseDir() string { return l.baseDir }

// Missing reports whether the base directory did not exist when the loader was created.
func (l *Loader) Missing() bool { return l.missing }

// Open implements assets.Loader.
func (l *Loader) Open(_ context.Context, name string) (*assets.Asset, error) {
	cleaned, err := assets.CleanName(name)
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(fullPath, l.baseDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("path traversal detected: %w", assets.ErrInvalidName)
	}

	f, err := os.Open(fullPath) // #nosec G304 -- path is confined to baseDir above.
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, assets.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open asset %s: %w", cleaned, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat asset %s: %w", cleaned, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, assets.ErrNotFound
	}
	return &assets.Asset{
		Name:        cleaned,
		Body:        f,
		ContentType: assets.ContentType(cleaned),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}
