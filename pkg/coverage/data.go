// Package coverage tracks path coverage across the source files of a test
// run and persists it between runs.
package coverage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/l3aro/go-pathcov/pkg/paths"
)

// FileData is the coverage of one source file.
type FileData struct {
	Path string
	// Index is stable for the lifetime of a Data and is what probes use to
	// address the file.
	Index int
	// SourceHash fingerprints the source text the graphs were built from.
	// Counts are only merged between runs with equal fingerprints.
	SourceHash string
	Paths      *paths.FileCoverage
}

// Data holds the coverage of every file seen in a run.
type Data struct {
	mu      sync.RWMutex
	runID   string
	files   map[string]*FileData
	byIndex []*FileData
}

// New creates an empty table with a fresh run id.
func New() *Data {
	return &Data{
		runID: uuid.NewString(),
		files: make(map[string]*FileData),
	}
}

// RunID identifies the run that produced the data.
func (d *Data) RunID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runID
}

// HashSource returns the fingerprint stored in FileData.SourceHash.
func HashSource(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetOrAddFile returns the entry for path, creating it with sourceHash when
// it does not exist yet.
func (d *Data) GetOrAddFile(path, sourceHash string) *FileData {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fd, ok := d.files[path]; ok {
		return fd
	}
	return d.addFileLocked(path, sourceHash, paths.NewFileCoverage())
}

func (d *Data) addFileLocked(path, sourceHash string, fc *paths.FileCoverage) *FileData {
	fd := &FileData{
		Path:       path,
		Index:      len(d.byIndex),
		SourceHash: sourceHash,
		Paths:      fc,
	}
	d.files[path] = fd
	d.byIndex = append(d.byIndex, fd)
	return fd
}

// File looks up a file by path.
func (d *Data) File(path string) (*FileData, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fd, ok := d.files[path]
	return fd, ok
}

// FileByIndex looks up a file by its index.
func (d *Data) FileByIndex(index int) (*FileData, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.byIndex) {
		return nil, false
	}
	return d.byIndex[index], true
}

// Files returns every file ordered by path.
func (d *Data) Files() []*FileData {
	d.mu.RLock()
	files := make([]*FileData, len(d.byIndex))
	copy(files, d.byIndex)
	d.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// Len returns the number of files.
func (d *Data) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byIndex)
}

// RegisterExecution delivers a probe notification. Unknown files and
// methods yield paths.NotCompleted.
func (d *Data) RegisterExecution(fileIndex, methodKey int, tid paths.ThreadID, nodeIndex int) int64 {
	fd, ok := d.FileByIndex(fileIndex)
	if !ok {
		return paths.NotCompleted
	}
	return fd.Paths.RegisterExecution(methodKey, tid, nodeIndex)
}

// TotalItems returns the number of reported paths over all files.
func (d *Data) TotalItems() int {
	total := 0
	for _, fd := range d.Files() {
		total += fd.Paths.TotalItems()
	}
	return total
}

// CoveredItems returns the number of covered paths over all files.
func (d *Data) CoveredItems() int {
	covered := 0
	for _, fd := range d.Files() {
		covered += fd.Paths.CoveredItems()
	}
	return covered
}

// Percentage returns the path coverage of the files whose path starts with
// prefix, or -1 when they have no paths. An empty prefix selects every file.
func (d *Data) Percentage(prefix string) int {
	covered, total := 0, 0
	for _, fd := range d.Files() {
		if !strings.HasPrefix(fd.Path, prefix) {
			continue
		}
		covered += fd.Paths.CoveredItems()
		total += fd.Paths.TotalItems()
	}
	return paths.CoveragePercentage(covered, total)
}

// SmallestPerFilePercentage returns the lowest percentage among files that
// have paths, or math.MaxInt when no file does.
func (d *Data) SmallestPerFilePercentage() int {
	smallest := math.MaxInt
	for _, fd := range d.Files() {
		if p := fd.Paths.CoveragePercentage(); p >= 0 && p < smallest {
			smallest = p
		}
	}
	return smallest
}

// Merge folds a previous run into d. Files only the previous run knows are
// adopted. Files known to both are merged when their source fingerprints
// match; otherwise the source changed and the current data wins.
// Per-method shape conflicts are collected and returned together.
func (d *Data) Merge(previous *Data) error {
	if previous == nil || previous == d {
		return nil
	}

	var errs []error
	for _, prev := range previous.Files() {
		d.mu.Lock()
		cur, ok := d.files[prev.Path]
		if !ok {
			d.addFileLocked(prev.Path, prev.SourceHash, prev.Paths)
			d.mu.Unlock()
			continue
		}
		d.mu.Unlock()

		if cur.SourceHash == "" || cur.SourceHash != prev.SourceHash {
			continue
		}
		if err := cur.Paths.Merge(prev.Paths); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prev.Path, err))
		}
	}
	return errors.Join(errs...)
}

// Reset zeroes every counter.
func (d *Data) Reset() {
	for _, fd := range d.Files() {
		fd.Paths.Reset()
	}
}
