package coverage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-pathcov/pkg/paths"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the persisted form of a Data.
type Snapshot struct {
	Version   int            `msgpack:"version" json:"version"`
	RunID     string         `msgpack:"run_id" json:"run_id"`
	CreatedAt time.Time      `msgpack:"created_at" json:"created_at"`
	Files     []FileSnapshot `msgpack:"files" json:"files"`
}

// FileSnapshot is the persisted form of a FileData. Files are stored in
// index order so indices survive a round trip.
type FileSnapshot struct {
	Path       string                 `msgpack:"path" json:"path"`
	SourceHash string                 `msgpack:"source_hash" json:"source_hash"`
	Methods    []paths.MethodSnapshot `msgpack:"methods" json:"methods"`
}

// Snapshot copies the table and its counters.
func (d *Data) Snapshot() *Snapshot {
	d.mu.RLock()
	files := make([]*FileData, len(d.byIndex))
	copy(files, d.byIndex)
	runID := d.runID
	d.mu.RUnlock()

	s := &Snapshot{
		Version:   SnapshotVersion,
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Files:     make([]FileSnapshot, len(files)),
	}
	for i, fd := range files {
		s.Files[i] = FileSnapshot{
			Path:       fd.Path,
			SourceHash: fd.SourceHash,
			Methods:    fd.Paths.Snapshot(),
		}
	}
	return s
}

// Restore rebuilds a Data from a snapshot.
func Restore(s *Snapshot) (*Data, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", s.Version, SnapshotVersion)
	}

	d := New()
	if s.RunID != "" {
		d.runID = s.RunID
	}
	for _, fs := range s.Files {
		if _, dup := d.files[fs.Path]; dup {
			return nil, fmt.Errorf("snapshot lists %s twice", fs.Path)
		}
		fc, err := paths.RestoreFileCoverage(fs.Methods)
		if err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", fs.Path, err)
		}
		d.addFileLocked(fs.Path, fs.SourceHash, fc)
	}
	return d, nil
}

// Save writes the data to w using msgpack.
func (d *Data) Save(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(d.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode coverage data: %w", err)
	}
	return nil
}

// Load reads data written by Save.
func Load(r io.Reader) (*Data, error) {
	var s Snapshot
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode coverage data: %w", err)
	}
	return Restore(&s)
}

// WriteFile saves the data to path, creating parent directories.
func (d *Data) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := d.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads data saved by WriteFile. A missing file yields empty data.
func ReadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	return Load(f)
}
