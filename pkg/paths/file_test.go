package paths

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFile(t *testing.T, firstLines ...int) *FileCoverage {
	t.Helper()
	f := NewFileCoverage()
	for _, line := range firstLines {
		f.AddMethod(twoBranchMethod(t, line))
	}
	return f
}

func TestFileCoverage_Empty(t *testing.T) {
	f := NewFileCoverage()

	assert.Equal(t, 0, f.TotalItems())
	assert.Equal(t, 0, f.CoveredItems())
	assert.Equal(t, -1, f.CoveragePercentage())
	assert.Equal(t, int64(NotCompleted), f.RegisterExecution(1, 1, 0))
}

func TestFileCoverage_RegisterExecution(t *testing.T) {
	f := newFile(t, 10, 20)

	assert.Equal(t, 4, f.TotalItems())
	assert.Equal(t, 0, f.CoveragePercentage())

	for _, idx := range []int{0, 1, 2} {
		assert.Equal(t, int64(NotCompleted), f.RegisterExecution(10, 1, idx))
	}
	assert.Equal(t, int64(0), f.RegisterExecution(10, 1, 4))

	assert.Equal(t, 1, f.CoveredItems(), "cache refreshed after first execution")
	assert.Equal(t, 25, f.CoveragePercentage())

	for _, idx := range []int{0, 1, 2, 4} {
		f.RegisterExecution(10, 1, idx)
	}
	assert.Equal(t, 1, f.CoveredItems())

	for _, idx := range []int{0, 1, 3, 4} {
		f.RegisterExecution(20, 1, idx)
	}
	assert.Equal(t, 2, f.CoveredItems())
	assert.Equal(t, 50, f.CoveragePercentage())
}

func TestFileCoverage_MethodsOrdered(t *testing.T) {
	f := newFile(t, 30, 10, 20)

	var lines []int
	for _, m := range f.Methods() {
		lines = append(lines, m.FirstLine())
	}
	assert.Equal(t, []int{10, 20, 30}, lines)
	assert.Equal(t, 3, f.Len())

	_, ok := f.Method(20)
	assert.True(t, ok)
	_, ok = f.Method(21)
	assert.False(t, ok)
}

func TestFileCoverage_AddMethodInvalidatesCache(t *testing.T) {
	f := newFile(t, 10)
	assert.Equal(t, 2, f.TotalItems())

	f.AddMethod(twoBranchMethod(t, 20))
	assert.Equal(t, 4, f.TotalItems())
}

func TestFileCoverage_MergeAddsCounts(t *testing.T) {
	current := newFile(t, 10)
	previous := newFile(t, 10)

	m, _ := current.Method(10)
	drive(m, 1, 0, 1, 2, 4)
	p, _ := previous.Method(10)
	drive(p, 1, 0, 1, 2, 4)
	drive(p, 1, 0, 1, 3, 4)

	require.Equal(t, 1, current.CoveredItems())
	require.NoError(t, current.Merge(previous))

	assert.Equal(t, 2, current.CoveredItems())
	assert.Equal(t, int64(3), m.ExecutionCount())
	assert.Equal(t, 100, current.CoveragePercentage())
}

func TestFileCoverage_MergeAdoptsPreviousOnlyMethods(t *testing.T) {
	current := newFile(t, 10)
	previous := newFile(t, 20)

	p, _ := previous.Method(20)
	drive(p, 1, 0, 1, 2, 4)

	require.NoError(t, current.Merge(previous))

	assert.Equal(t, 2, current.Len())
	adopted, ok := current.Method(20)
	require.True(t, ok)
	assert.Equal(t, int64(1), adopted.ExecutionCount())
	assert.Equal(t, 1, current.CoveredItems())
}

func TestFileCoverage_MergeDisjointIsOrderIndependent(t *testing.T) {
	a := newFile(t, 10)
	am, _ := a.Method(10)
	drive(am, 1, 0, 1, 2, 4)

	b := newFile(t, 20)
	bm, _ := b.Method(20)
	drive(bm, 1, 0, 1, 3, 4)
	drive(bm, 1, 0, 1, 2, 4)

	ab := NewFileCoverage()
	require.NoError(t, ab.Merge(a))
	require.NoError(t, ab.Merge(b))

	ba := NewFileCoverage()
	require.NoError(t, ba.Merge(b))
	require.NoError(t, ba.Merge(a))

	assert.Equal(t, ab.TotalItems(), ba.TotalItems())
	assert.Equal(t, ab.CoveredItems(), ba.CoveredItems())
	assert.Equal(t, 3, ab.CoveredItems())
}

func TestFileCoverage_MergeShapeMismatchKeepsCurrent(t *testing.T) {
	current := newFile(t, 10, 20)
	previous := NewFileCoverage()

	// Same key, different body: a straight-line method.
	b := NewBuilder[string]()
	mustNode(t)(b.HandleEntry(10))
	mustNode(t)(b.HandleExit(11))
	straight, err := b.Build(11)
	require.NoError(t, err)
	drive(straight, 1, 0, 1)
	previous.AddMethod(straight)

	p20 := twoBranchMethod(t, 20)
	drive(p20, 1, 0, 1, 2, 4)
	previous.AddMethod(p20)

	err = current.Merge(previous)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	var sme *ShapeMismatchError
	require.True(t, errors.As(err, &sme))
	assert.Equal(t, 10, sme.FirstLine)

	m10, _ := current.Method(10)
	assert.Equal(t, int64(0), m10.ExecutionCount(), "mismatched method left untouched")
	m20, _ := current.Method(20)
	assert.Equal(t, int64(1), m20.ExecutionCount(), "other methods still merged")
}

func TestFileCoverage_MergeSelfIsNoop(t *testing.T) {
	f := newFile(t, 10)
	m, _ := f.Method(10)
	drive(m, 1, 0, 1, 2, 4)

	require.NoError(t, f.Merge(f))
	require.NoError(t, f.Merge(nil))
	assert.Equal(t, int64(1), m.ExecutionCount())
}

func TestFileCoverage_Reset(t *testing.T) {
	f := newFile(t, 10)
	for _, idx := range []int{0, 1, 2, 4} {
		f.RegisterExecution(10, 1, idx)
	}
	require.Equal(t, 1, f.CoveredItems())

	f.Reset()
	assert.Equal(t, 0, f.CoveredItems())
	assert.Equal(t, 2, f.TotalItems())
}

func TestFileCoverage_SnapshotRestore(t *testing.T) {
	f := newFile(t, 20, 10)
	for _, idx := range []int{0, 1, 3, 4} {
		f.RegisterExecution(20, 1, idx)
	}

	snapshot := f.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, 10, snapshot[0].FirstLine)

	restored, err := RestoreFileCoverage(snapshot)
	require.NoError(t, err)
	assert.Equal(t, f.TotalItems(), restored.TotalItems())
	assert.Equal(t, f.CoveredItems(), restored.CoveredItems())
}
