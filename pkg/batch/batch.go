// Package batch resolves input paths to files and runs a report over them
// one file at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/gofhir/profiledoc/pkg/logger"
)

// Patterns used by the commands.
const (
	PatternJSON                = "*.json"
	PatternFSH                 = "*.fsh"
	PatternStructureDefinition = "StructureDefinition-*.json"
)

// ErrNotFound is returned when an input path does not exist.
var ErrNotFound = errors.New("path not found")

// Resolve returns path itself when it is a file, or the files directly in
// the directory path whose names match one of patterns, in directory
// listing order. Subdirectories are not searched.
func Resolve(path string, patterns ...string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && matches(e.Name(), patterns) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

func matches(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Discover walks root recursively and returns every
// StructureDefinition-*.json file whose resourceType is StructureDefinition.
func Discover(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matches(d.Name(), []string{PatternStructureDefinition}) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			return nil
		}
		rt, err := ResourceType(data)
		if err != nil || rt != "StructureDefinition" {
			logger.Debug("skipping %s: resourceType %q", path, rt)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// ResourceType reads the top-level resourceType of a JSON document without
// decoding the rest of it.
func ResourceType(data []byte) (string, error) {
	rt, err := jsonparser.GetString(data, "resourceType")
	if err != nil {
		return "", fmt.Errorf("failed to read resourceType: %w", err)
	}
	return rt, nil
}

// IsFSH reports whether path names a FHIR Shorthand source.
func IsFSH(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".fsh")
}

// Func processes one file.
type Func func(ctx context.Context, file string) error

// Result is the outcome of one file.
type Result struct {
	File     string
	Err      error
	Duration time.Duration
}

// Summary aggregates the results of a run.
type Summary struct {
	Results  []Result
	Total    int
	Failed   int
	Duration time.Duration
}

// HasFailures reports whether any file failed or was not processed.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0 || len(s.Results) < s.Total
}

// Failures returns the failed results.
func (s *Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Run calls fn for each file in order. A failing file is logged and
// counted and the run goes on with the next one. Cancelling ctx stops the
// run before the next file.
func Run(ctx context.Context, files []string, fn Func) *Summary {
	s := &Summary{Results: make([]Result, 0, len(files)), Total: len(files)}
	start := time.Now()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			logger.Warn("stopping after %d of %d files: %v", len(s.Results), s.Total, err)
			break
		}

		t := time.Now()
		err := fn(ctx, file)
		s.Results = append(s.Results, Result{File: file, Err: err, Duration: time.Since(t)})
		if err != nil {
			s.Failed++
			logger.Error("%s: %v", file, err)
		}
	}

	s.Duration = time.Since(start)
	logger.Debug("processed %d files, %d failed in %s", len(s.Results), s.Failed, s.Duration)
	return s
}
