package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/finplan/internal/models"
)

// File is the catalog YAML file on local disk.
type File struct {
	path string // absolute
}

// NewFile returns a File for path. The file itself may not exist yet.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve path: %w", err)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute file path.
func (f *File) Path() string {
	return f.path
}

// Load reads and parses the catalog. A missing file is an empty catalog.
func (f *File) Load() ([]models.Rate, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Rate{}, nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", f.path, err)
	}
	return Parse(data)
}

// Save atomically replaces the catalog: tmp file, fsync, rename.
func (f *File) Save(rates []models.Rate) error {
	content, err := Encode(rates)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".finplan-catalog-*")
	if err != nil {
		return fmt.Errorf("catalog: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("catalog: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("catalog: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("catalog: rename: %w", err)
	}
	success = true
	return nil
}
