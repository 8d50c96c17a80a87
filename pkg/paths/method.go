package paths

import (
	"fmt"
	"slices"
	"sync"
)

// NotCompleted is returned by MarkNodeAsReached when the notification did
// not complete a pass matching a known path.
const NotCompleted = -1

// ThreadID identifies the thread of execution delivering notifications.
// Each id must be used by one thread at a time.
type ThreadID uint64

// passState is the traversal of the current pass on one thread.
type passState struct {
	reached           []bool
	nodesReached      []int
	previousNodeIndex int
}

func (s *passState) clear(nodeCount int) {
	if cap(s.reached) >= nodeCount {
		s.reached = s.reached[:nodeCount]
		clear(s.reached)
	} else {
		s.reached = make([]bool, nodeCount)
	}
	s.nodesReached = s.nodesReached[:0]
	s.previousNodeIndex = 0
}

// MethodData holds the graph, the paths and the runtime traversal state of
// one method body. The graph is fixed once built; counters are updated
// concurrently by MarkNodeAsReached.
type MethodData struct {
	firstLine int
	lastLine  int

	nodes            []*Node
	paths            []*Path
	nonShadowedPaths []*Path

	passes sync.Map // ThreadID -> *passState
}

func newMethodData(firstLine, lastLine int, nodes []*Node, paths []*Path) *MethodData {
	m := &MethodData{
		firstLine: firstLine,
		lastLine:  lastLine,
		nodes:     nodes,
		paths:     paths,
	}
	m.nonShadowedPaths = make([]*Path, 0, len(paths))
	for _, p := range paths {
		if !p.IsShadowed() {
			m.nonShadowedPaths = append(m.nonShadowedPaths, p)
		}
	}
	return m
}

// FirstLine returns the first line of the body, the method's key in its file.
func (m *MethodData) FirstLine() int { return m.firstLine }

// LastLine returns the last executable line of the body.
func (m *MethodData) LastLine() int { return m.lastLine }

// Nodes returns the graph nodes in build order. Callers must not modify them.
func (m *MethodData) Nodes() []*Node { return slices.Clone(m.nodes) }

// Paths returns the paths reported as independently coverable.
func (m *MethodData) Paths() []*Path { return slices.Clone(m.nonShadowedPaths) }

// AllPaths returns every enumerated path, shadowed ones included.
func (m *MethodData) AllPaths() []*Path { return slices.Clone(m.paths) }

// ExecutionCount returns the total executions over all reported paths.
func (m *MethodData) ExecutionCount() int64 {
	var total int64
	for _, p := range m.nonShadowedPaths {
		total += p.ExecutionCount()
	}
	return total
}

// TotalPaths returns the number of reported paths.
func (m *MethodData) TotalPaths() int { return len(m.nonShadowedPaths) }

// CoveredPaths returns the number of reported paths executed at least once.
func (m *MethodData) CoveredPaths() int {
	covered := 0
	for _, p := range m.nonShadowedPaths {
		if p.ExecutionCount() > 0 {
			covered++
		}
	}
	return covered
}

func (m *MethodData) pass(tid ThreadID) *passState {
	if s, ok := m.passes.Load(tid); ok {
		return s.(*passState)
	}
	s := &passState{}
	s.clear(len(m.nodes))
	actual, _ := m.passes.LoadOrStore(tid, s)
	return actual.(*passState)
}

// MarkNodeAsReached records that thread tid reached the node at nodeIndex.
// Index 0 starts a new pass. Nodes are appended to the pass only once and
// only in increasing index order. When the node is an Exit and the pass so
// far equals one of the Exit's paths, that path's counter is incremented and
// its previous value returned; otherwise the result is NotCompleted.
//
// Anomalous notifications, such as an index outside the graph, degrade to
// NotCompleted so the program under test is never affected.
func (m *MethodData) MarkNodeAsReached(tid ThreadID, nodeIndex int) int64 {
	if nodeIndex < 0 || nodeIndex >= len(m.nodes) {
		return NotCompleted
	}

	s := m.pass(tid)
	if nodeIndex == 0 {
		s.clear(len(m.nodes))
	}

	if !s.reached[nodeIndex] && (nodeIndex == 0 || nodeIndex > s.previousNodeIndex) {
		s.reached[nodeIndex] = true
		s.nodesReached = append(s.nodesReached, nodeIndex)
		s.previousNodeIndex = nodeIndex
	}

	node := m.nodes[nodeIndex]
	if node.Kind != KindExit {
		return NotCompleted
	}

	for _, pi := range node.exitPaths {
		if previous := m.paths[pi].countExecutionIfAllNodesWereReached(s.nodesReached); previous >= 0 {
			return previous
		}
	}
	return NotCompleted
}

// Reset zeroes every counter and forgets in-flight passes.
func (m *MethodData) Reset() {
	for _, p := range m.paths {
		p.reset()
	}
	m.passes.Clear()
}

// sameShape reports whether previous has the same path layout, which is
// what positional count merging relies on.
func (m *MethodData) sameShape(previous *MethodData) bool {
	if len(m.paths) != len(previous.paths) {
		return false
	}
	for i, p := range m.paths {
		q := previous.paths[i]
		if p.shadowed != q.shadowed || !slices.Equal(p.nodes, q.nodes) {
			return false
		}
	}
	return true
}

func (m *MethodData) addCountsFromPreviousTestRun(previous *MethodData) error {
	if !m.sameShape(previous) {
		return &ShapeMismatchError{
			FirstLine:     m.firstLine,
			CurrentPaths:  len(m.paths),
			PreviousPaths: len(previous.paths),
		}
	}
	for i, p := range m.paths {
		p.addCountFromPreviousTestRun(previous.paths[i])
	}
	return nil
}

// MethodSnapshot is a structural copy of a MethodData suitable for
// persistence.
type MethodSnapshot struct {
	FirstLine int            `json:"first_line" msgpack:"first_line"`
	LastLine  int            `json:"last_line" msgpack:"last_line"`
	Nodes     []Node         `json:"nodes" msgpack:"nodes"`
	Paths     []PathSnapshot `json:"paths" msgpack:"paths"`
}

// PathSnapshot records one path and its own execution count.
type PathSnapshot struct {
	Nodes    []int `json:"nodes" msgpack:"nodes"`
	Shadowed bool  `json:"shadowed,omitempty" msgpack:"shadowed,omitempty"`
	Count    int64 `json:"count" msgpack:"count"`
}

// Snapshot copies the method's graph and counters.
func (m *MethodData) Snapshot() MethodSnapshot {
	s := MethodSnapshot{
		FirstLine: m.firstLine,
		LastLine:  m.lastLine,
		Nodes:     make([]Node, len(m.nodes)),
		Paths:     make([]PathSnapshot, len(m.paths)),
	}
	for i, n := range m.nodes {
		s.Nodes[i] = *n
		s.Nodes[i].Cases = slices.Clone(n.Cases)
		s.Nodes[i].exitPaths = nil
	}
	for i, p := range m.paths {
		s.Paths[i] = PathSnapshot{
			Nodes:    slices.Clone(p.nodes),
			Shadowed: p.shadowed,
			Count:    p.ownCount(),
		}
	}
	return s
}

// RestoreMethod rebuilds a MethodData from a snapshot. Paths are enumerated
// again from the restored graph and must match the recorded ones.
func RestoreMethod(s MethodSnapshot) (*MethodData, error) {
	nodes := make([]*Node, len(s.Nodes))
	for i := range s.Nodes {
		n := s.Nodes[i]
		n.Cases = slices.Clone(n.Cases)
		nodes[i] = &n
	}

	paths, err := BuildPaths(nodes)
	if err != nil {
		return nil, fmt.Errorf("restoring method at line %d: %w", s.FirstLine, err)
	}
	if len(paths) != len(s.Paths) {
		return nil, &ShapeMismatchError{FirstLine: s.FirstLine, CurrentPaths: len(paths), PreviousPaths: len(s.Paths)}
	}
	for i, p := range paths {
		recorded := s.Paths[i]
		if p.shadowed != recorded.Shadowed || !slices.Equal(p.nodes, recorded.Nodes) {
			return nil, &ShapeMismatchError{FirstLine: s.FirstLine, CurrentPaths: len(paths), PreviousPaths: len(s.Paths)}
		}
		p.executionCount.Store(recorded.Count)
	}

	return newMethodData(s.FirstLine, s.LastLine, nodes, paths), nil
}
