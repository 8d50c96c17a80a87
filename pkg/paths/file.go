package paths

import (
	"errors"
	"sort"
	"sync"
)

// FileCoverage aggregates the path coverage of every method in one source
// file, keyed by the first line of each method body.
type FileCoverage struct {
	mu                    sync.RWMutex
	firstLineToMethodData map[int]*MethodData

	// Computed on demand; cleared when counts or methods change.
	cacheMu      sync.Mutex
	cacheValid   bool
	totalPaths   int
	coveredPaths int
}

// NewFileCoverage creates an empty table.
func NewFileCoverage() *FileCoverage {
	return &FileCoverage{firstLineToMethodData: make(map[int]*MethodData)}
}

// AddMethod registers a method under its first line, replacing any method
// previously registered there.
func (f *FileCoverage) AddMethod(m *MethodData) {
	f.mu.Lock()
	f.firstLineToMethodData[m.FirstLine()] = m
	f.mu.Unlock()
	f.invalidate()
}

// Method returns the method whose body starts at firstLine.
func (f *FileCoverage) Method(firstLine int) (*MethodData, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.firstLineToMethodData[firstLine]
	return m, ok
}

// Methods returns all methods ordered by first line.
func (f *FileCoverage) Methods() []*MethodData {
	f.mu.RLock()
	methods := make([]*MethodData, 0, len(f.firstLineToMethodData))
	for _, m := range f.firstLineToMethodData {
		methods = append(methods, m)
	}
	f.mu.RUnlock()

	sort.Slice(methods, func(i, j int) bool {
		return methods[i].FirstLine() < methods[j].FirstLine()
	})
	return methods
}

// Len returns the number of methods.
func (f *FileCoverage) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.firstLineToMethodData)
}

// RegisterExecution forwards a node-reached notification to the method
// starting at firstLine. Unknown methods yield NotCompleted.
func (f *FileCoverage) RegisterExecution(firstLine int, tid ThreadID, nodeIndex int) int64 {
	m, ok := f.Method(firstLine)
	if !ok {
		return NotCompleted
	}

	previous := m.MarkNodeAsReached(tid, nodeIndex)
	if previous == 0 {
		f.invalidate()
	}
	return previous
}

// TotalItems returns the number of reported paths in the file.
func (f *FileCoverage) TotalItems() int {
	total, _ := f.counts()
	return total
}

// CoveredItems returns the number of reported paths executed at least once.
func (f *FileCoverage) CoveredItems() int {
	_, covered := f.counts()
	return covered
}

// CoveragePercentage returns the rounded share of covered paths, or -1
// when the file has no paths.
func (f *FileCoverage) CoveragePercentage() int {
	total, covered := f.counts()
	return CoveragePercentage(covered, total)
}

func (f *FileCoverage) counts() (total, covered int) {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()

	if !f.cacheValid {
		f.totalPaths, f.coveredPaths = 0, 0
		for _, m := range f.Methods() {
			f.totalPaths += m.TotalPaths()
			f.coveredPaths += m.CoveredPaths()
		}
		f.cacheValid = true
	}
	return f.totalPaths, f.coveredPaths
}

func (f *FileCoverage) invalidate() {
	f.cacheMu.Lock()
	f.cacheValid = false
	f.cacheMu.Unlock()
}

// Merge folds the data of a previous run into f. Counts of methods present
// in both are added path by path; methods only the previous run knows are
// adopted as they are. A method whose paths no longer line up keeps its
// current data and is reported in the returned error, which joins one
// ShapeMismatchError per such method.
func (f *FileCoverage) Merge(previous *FileCoverage) error {
	if previous == nil || previous == f {
		return nil
	}

	var errs []error
	for _, prev := range previous.Methods() {
		cur, ok := f.Method(prev.FirstLine())
		if !ok {
			f.mu.Lock()
			f.firstLineToMethodData[prev.FirstLine()] = prev
			f.mu.Unlock()
			continue
		}
		if err := cur.addCountsFromPreviousTestRun(prev); err != nil {
			errs = append(errs, err)
		}
	}

	f.invalidate()
	return errors.Join(errs...)
}

// Reset zeroes the counters of every method.
func (f *FileCoverage) Reset() {
	for _, m := range f.Methods() {
		m.Reset()
	}
	f.invalidate()
}

// Snapshot copies every method, ordered by first line.
func (f *FileCoverage) Snapshot() []MethodSnapshot {
	methods := f.Methods()
	snapshots := make([]MethodSnapshot, len(methods))
	for i, m := range methods {
		snapshots[i] = m.Snapshot()
	}
	return snapshots
}

// RestoreFileCoverage rebuilds a table from method snapshots.
func RestoreFileCoverage(methods []MethodSnapshot) (*FileCoverage, error) {
	f := NewFileCoverage()
	for _, s := range methods {
		m, err := RestoreMethod(s)
		if err != nil {
			return nil, err
		}
		f.firstLineToMethodData[m.FirstLine()] = m
	}
	return f, nil
}
