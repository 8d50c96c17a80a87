package paths

import (
	"slices"
	"sync/atomic"
)

// Path is one Entry-to-Exit route through a method's graph. Its node
// sequence never changes after enumeration; only the counter does.
type Path struct {
	nodes    []int
	shadowed bool

	// shadows are the shadowed paths forked off this path or off one of
	// those shadows. Their executions are reported as executions of this
	// path, the nearest reported ancestor.
	shadows []*Path

	executionCount atomic.Int64
}

func newPath(entry int) *Path {
	p := &Path{nodes: make([]int, 0, 4)}
	p.nodes = append(p.nodes, entry)
	return p
}

// newAlternatePath clones the prefix of parent into a sibling path. A
// shadowed sibling is attached to owner, the nearest path of its lineage that
// is reported.
func newAlternatePath(parent, owner *Path, shadowed bool) *Path {
	p := &Path{
		nodes:    slices.Clone(parent.nodes),
		shadowed: shadowed,
	}
	if shadowed {
		owner.shadows = append(owner.shadows, p)
	}
	return p
}

func (p *Path) addNode(n int) {
	p.nodes = append(p.nodes, n)
}

// Nodes returns the node indices of the path, Entry first.
func (p *Path) Nodes() []int { return slices.Clone(p.nodes) }

// Len returns the number of nodes on the path.
func (p *Path) Len() int { return len(p.nodes) }

// IsShadowed reports whether the path is folded into a sibling's count.
func (p *Path) IsShadowed() bool { return p.shadowed }

// ExecutionCount returns the executions attributed to the path, including
// those of every shadowed path folded into it.
func (p *Path) ExecutionCount() int64 {
	count := p.executionCount.Load()
	for _, s := range p.shadows {
		count += s.executionCount.Load()
	}
	return count
}

// ownCount excludes folded shadow executions.
func (p *Path) ownCount() int64 {
	return p.executionCount.Load()
}

// countExecutionIfAllNodesWereReached increments the counter when reached
// is exactly the path's node sequence, returning the previous count, or
// NotCompleted when the sequences differ.
func (p *Path) countExecutionIfAllNodesWereReached(reached []int) int64 {
	if !slices.Equal(p.nodes, reached) {
		return NotCompleted
	}
	return p.executionCount.Add(1) - 1
}

func (p *Path) addCountFromPreviousTestRun(previous *Path) {
	p.executionCount.Add(previous.executionCount.Load())
}

func (p *Path) reset() {
	p.executionCount.Store(0)
}
