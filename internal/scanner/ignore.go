package scanner

import (
	"bufio"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	pattern  string // Original pattern
	glob     string
	negation bool // Pattern starts with !
	dirOnly  bool // Pattern ends with /
	anchored bool // Pattern contains a slash and matches from the root
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}
	glob := pattern

	if strings.HasPrefix(glob, "!") {
		p.negation = true
		glob = glob[1:]
	}
	if strings.HasSuffix(glob, "/") {
		p.dirOnly = true
		glob = strings.TrimSuffix(glob, "/")
	}
	if strings.Contains(glob, "/") {
		p.anchored = true
		glob = strings.TrimPrefix(glob, "/")
	}

	p.glob = glob
	return p
}

// Match reports whether relPath, a slash-separated path relative to the
// scan root, matches the pattern.
func (p IgnorePattern) Match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}

	name := relPath
	if !p.anchored {
		name = path.Base(relPath)
	}
	ok, err := doublestar.Match(p.glob, name)
	return err == nil && ok
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

func (p IgnorePattern) String() string {
	return p.pattern
}

// LoadIgnoreFile reads patterns from path. A missing file has no patterns.
func LoadIgnoreFile(path string) ([]IgnorePattern, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, scanner.Err()
}

// ignored applies patterns in order so later negations can re-include.
func ignored(relPath string, isDir bool, patterns []IgnorePattern) bool {
	result := false
	for _, p := range patterns {
		if p.Match(relPath, isDir) {
			result = !p.negation
		}
	}
	return result
}
