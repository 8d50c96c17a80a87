// Package scanner finds the Go source files of a project. It respects
// .pcovignore files with gitignore-style patterns.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	IncludeTests    bool     // Include _test.go files
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file at the root (default: .pcovignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".pcovignore",
		DefaultExcludes: []string{
			"vendor",
			"testdata",
			"node_modules",
			".git",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan walks root and returns its Go source files in lexical order.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	var patterns []IgnorePattern
	if s.opts.IgnoreFileName != "" {
		patterns, err = LoadIgnoreFile(filepath.Join(absRoot, s.opts.IgnoreFileName))
		if err != nil {
			return nil, fmt.Errorf("loading ignore patterns: %w", err)
		}
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, the walk goes on.
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.skipDir(d.Name()) || ignored(relPath, true, patterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.wantFile(d.Name()) || ignored(relPath, false, patterns) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Path: relPath, FullPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return files, nil
}

func (s *Scanner) skipDir(name string) bool {
	if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

func (s *Scanner) wantFile(name string) bool {
	if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return false
	}
	if !strings.HasSuffix(name, ".go") {
		return false
	}
	return s.opts.IncludeTests || !strings.HasSuffix(name, "_test.go")
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
