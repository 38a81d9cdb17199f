package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"example.com/segyview/internal/report"
	"example.com/segyview/internal/spec"
)

// Options configures server creation.
type Options struct {
	StorageDir  string
	Concurrency int
	// SpecDir overrides the embedded header layouts with rev*.json files
	// from a directory.
	SpecDir string
	// MaxDecompressedBytes caps compressed inputs held in memory.
	MaxDecompressedBytes int64
	RenderCacheEntries   int
	// ActivityLog defaults to activity.jsonl in the work directory.
	ActivityLog string
	Lang        report.Language
}

// buildRegistry loads and validates every revision up front so a broken
// layout directory fails startup rather than the first request.
func buildRegistry(opts Options) (*spec.Registry, error) {
	dir := strings.TrimSpace(opts.SpecDir)
	if dir == "" {
		reg := spec.NewRegistry()
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("embedded header layouts: %w", err)
		}
		return reg, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("spec dir abs: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("spec dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spec dir %s is not a directory", abs)
	}
	reg, err := spec.NewRegistryFromDir(abs)
	if err != nil {
		return nil, fmt.Errorf("load spec dir: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("spec dir %s: %w", abs, err)
	}
	return reg, nil
}
