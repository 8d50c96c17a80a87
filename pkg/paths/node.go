// Package paths computes path coverage for function bodies.
//
// A Builder consumes the structural events of one body in program order and
// assembles a small control flow graph of Nodes. BuildPaths enumerates every
// Entry-to-Exit route through that graph, and MethodData attributes each
// completed runtime pass to exactly one of those paths.
package paths

import "fmt"

// NoNode is returned by builder operations that do not create a node, and
// marks an unresolved successor link.
const NoNode = -1

// Kind identifies the variant of a CFG node.
type Kind uint8

const (
	KindEntry      Kind = iota // Function entry point
	KindExit                   // Return or throw
	KindBlock                  // Straight-line region after a fork or join
	KindSimpleFork             // Two-way conditional branch
	KindMultiFork              // N-way dispatch
	KindJoin                   // Jump target where branches reconverge
	KindGoto                   // Unconditional jump
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "Entry"
	case KindExit:
		return "Exit"
	case KindBlock:
		return "Block"
	case KindSimpleFork:
		return "SimpleFork"
	case KindMultiFork:
		return "MultiFork"
	case KindJoin:
		return "Join"
	case KindGoto:
		return "Goto"
	default:
		return "Unknown"
	}
}

// IsFork reports whether nodes of this kind have more than one successor.
func (k Kind) IsFork() bool {
	return k == KindSimpleFork || k == KindMultiFork
}

// Node is one vertex of a method's control flow graph. Nodes live in an
// arena owned by MethodData and refer to each other by index.
type Node struct {
	Kind    Kind `json:"kind" msgpack:"kind"`
	Line    int  `json:"line" msgpack:"line"`
	Segment int  `json:"segment" msgpack:"segment"` // 0-based index among nodes on the same line

	// Next is the consecutive successor: Entry, Block, SimpleFork
	// fall-through and Join.
	Next int `json:"next" msgpack:"next"`

	// Jump is the successor reached through a jump: the SimpleFork jump
	// edge, a Goto target, or a Block ended by an unconditional jump.
	// When set on a Block it overrides Next.
	Jump int `json:"jump" msgpack:"jump"`

	// Cases holds the joins a MultiFork dispatches to, in build order.
	Cases []int `json:"cases,omitempty" msgpack:"cases,omitempty"`

	// FromTrivialFork marks a Join reached only through a structurally
	// trivial fork; paths entering it through the jump edge are shadowed.
	FromTrivialFork bool `json:"from_trivial_fork,omitempty" msgpack:"from_trivial_fork,omitempty"`

	// exitPaths indexes the paths that end at this Exit.
	exitPaths []int
}

func newNode(kind Kind, line int) *Node {
	return &Node{Kind: kind, Line: line, Next: NoNode, Jump: NoNode}
}

// setSegmentAccordingToPrecedingNode derives the segment from the node built
// immediately before this one on the same line.
func (n *Node) setSegmentAccordingToPrecedingNode(preceding *Node) {
	switch {
	case n.Kind == KindJoin:
		n.Segment = preceding.Segment + 1
	case preceding.Kind.IsFork():
		n.Segment = preceding.Segment + 1
	default:
		n.Segment = preceding.Segment
	}
}

// Successors returns the resolved successor indices in enumeration order.
func (n *Node) Successors() []int {
	switch n.Kind {
	case KindExit:
		return nil
	case KindMultiFork:
		return append([]int(nil), n.Cases...)
	case KindBlock:
		if n.Jump != NoNode {
			return []int{n.Jump}
		}
	case KindGoto:
		if n.Jump != NoNode {
			return []int{n.Jump}
		}
		return nil
	case KindSimpleFork:
		var succ []int
		if n.Jump != NoNode {
			succ = append(succ, n.Jump)
		}
		if n.Next != NoNode {
			succ = append(succ, n.Next)
		}
		return succ
	}
	if n.Next != NoNode {
		return []int{n.Next}
	}
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("%s:%d-%d", n.Kind, n.Line, n.Segment)
}
