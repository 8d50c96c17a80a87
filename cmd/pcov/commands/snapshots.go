package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/l3aro/go-pathcov/pkg/coverage"
	"github.com/l3aro/go-pathcov/pkg/paths"
)

// loadSnapshot reads a snapshot that must exist.
func loadSnapshot(path string) (*coverage.Data, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	return coverage.ReadFile(path)
}

// loadMerged reads the snapshots in order, each later one merged on top of
// the ones before it. Methods whose graphs changed keep the later counts.
func loadMerged(files []string) (*coverage.Data, error) {
	var merged *coverage.Data
	for _, path := range files {
		data, err := loadSnapshot(path)
		if err != nil {
			return nil, err
		}
		if merged != nil {
			if err := data.Merge(merged); err != nil {
				logMergeConflicts(path, err)
			}
		}
		merged = data
	}
	return merged, nil
}

func logMergeConflicts(path string, err error) {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		logger.Warn("counts not merged", "snapshot", path, "err", err)
		return
	}
	for _, e := range joined.Unwrap() {
		var mismatch *paths.ShapeMismatchError
		if errors.As(e, &mismatch) {
			logger.Warn("method changed, previous counts dropped", "snapshot", path, "line", mismatch.FirstLine, "err", e)
			continue
		}
		logger.Warn("counts not merged", "snapshot", path, "err", e)
	}
}
