// Package store keeps the raw per-region provider files on disk.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/vhireport/internal/vhi"
)

const timestampLayout = "20060102_150405"

// Store is a directory of VHI_<region>_<timestamp>.csv files.
type Store struct {
	dir string
}

// New opens the store at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the stored file name for a region fetched at t.
func FileName(regionName string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", vhi.FilePrefix, regionName, t.Format(timestampLayout))
}

// List returns the paths of all stored .csv files, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing store: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Has reports whether a file for regionName is already stored. The region
// token must match exactly, so "Kyiv" is not satisfied by a "Kyiv City" file.
func (s *Store) Has(regionName string) (bool, error) {
	paths, err := s.List()
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		name, err := vhi.ParseSourceName(p)
		if err != nil {
			continue
		}
		if name == regionName {
			return true, nil
		}
	}
	return false, nil
}

// Write stores data for regionName and returns the new path. The file is
// written to a temporary name first so a partial write is never listed.
func (s *Store) Write(regionName string, data []byte, t time.Time) (string, error) {
	path := filepath.Join(s.dir, FileName(regionName, t))
	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("renaming into %s: %w", path, err)
	}
	return path, nil
}

// Sources opens every stored file for loading. The returned close function
// releases all of them.
func (s *Store) Sources() ([]vhi.Source, func() error, error) {
	paths, err := s.List()
	if err != nil {
		return nil, nil, err
	}

	var (
		sources []vhi.Source
		files   []*os.File
	)
	closeAll := func() error {
		var first error
		for _, f := range files {
			if err := f.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening %s: %w", p, err)
		}
		files = append(files, f)
		sources = append(sources, vhi.Source{Name: p, Body: f})
	}
	return sources, closeAll, nil
}
