package standdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cache stores processed OSM stand CSV per airport
type Cache interface {
	// Get returns the cached CSV if it was stored less than maxAge ago
	Get(ctx context.Context, icao string, maxAge time.Duration) ([]byte, bool, error)
	Put(ctx context.Context, icao string, csv []byte) error
	// Delete removes the entry and reports whether one existed
	Delete(ctx context.Context, icao string) (bool, error)
}

// FileCache keeps one CSV file per airport in a directory
type FileCache struct {
	dir string
}

// NewFileCache creates a file cache rooted at dir, creating it if needed
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Path returns the cache file path for an airport
func (c *FileCache) Path(icao string) string {
	return filepath.Join(c.dir, fmt.Sprintf("OSM-%s-stand-data.csv", icao))
}

// Get reads the cached file when its modification time is within maxAge
func (c *FileCache) Get(_ context.Context, icao string, maxAge time.Duration) ([]byte, bool, error) {
	path := c.Path(icao)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat cache file: %w", err)
	}
	if time.Since(info.ModTime()) >= maxAge {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, true, nil
}

// Put writes the file atomically through a temporary file
func (c *FileCache) Put(_ context.Context, icao string, csv []byte) error {
	path := c.Path(icao)

	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(csv); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}

// Delete removes the cache file
func (c *FileCache) Delete(_ context.Context, icao string) (bool, error) {
	err := os.Remove(c.Path(icao))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete cache file: %w", err)
	}
	return true, nil
}
