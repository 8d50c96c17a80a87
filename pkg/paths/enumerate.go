package paths

import "fmt"

type enumerator struct {
	nodes  []*Node
	byExit map[int][]*Path

	// owners maps each path to the reported path its executions count
	// towards: itself unless shadowed.
	owners map[*Path]*Path
}

// BuildPaths enumerates every route from the Entry node (nodes[0]) to an
// Exit. Paths are returned grouped by Exit in node order, and within an Exit
// in depth-first discovery order, so repeated runs over the same graph yield
// the same list. A graph holding only its Entry has no paths.
func BuildPaths(nodes []*Node) ([]*Path, error) {
	if len(nodes) <= 1 {
		return nil, nil
	}

	entry := nodes[0]
	if entry.Kind != KindEntry {
		return nil, fmt.Errorf("%w: node 0 is %s, not Entry", ErrMalformedGraph, entry.Kind)
	}
	if entry.Next == NoNode {
		return nil, &IncompleteGraphError{Node: 0, Kind: entry.Kind, Line: entry.Line}
	}

	e := &enumerator{
		nodes:  nodes,
		byExit: make(map[int][]*Path),
		owners: make(map[*Path]*Path),
	}
	root := newPath(0)
	e.owners[root] = root
	if err := e.follow(root, 0, entry.Next); err != nil {
		return nil, err
	}

	var paths []*Path
	for idx, n := range nodes {
		n.exitPaths = nil
		if n.Kind != KindExit {
			continue
		}
		for _, p := range e.byExit[idx] {
			n.exitPaths = append(n.exitPaths, len(paths))
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// follow continues path from node from into its successor next.
func (e *enumerator) follow(path *Path, from, next int) error {
	if next == NoNode {
		n := e.nodes[from]
		return &IncompleteGraphError{Node: from, Kind: n.Kind, Line: n.Line}
	}
	if next <= from || next >= len(e.nodes) {
		return fmt.Errorf("%w: edge %d -> %d is not a forward edge", ErrMalformedGraph, from, next)
	}
	return e.addToPath(path, next)
}

func (e *enumerator) addToPath(path *Path, idx int) error {
	n := e.nodes[idx]
	path.addNode(idx)

	switch n.Kind {
	case KindExit:
		e.byExit[idx] = append(e.byExit[idx], path)
		return nil

	case KindBlock:
		if n.Jump != NoNode {
			return e.follow(path, idx, n.Jump)
		}
		return e.follow(path, idx, n.Next)

	case KindJoin:
		return e.follow(path, idx, n.Next)

	case KindGoto:
		return e.follow(path, idx, n.Jump)

	case KindSimpleFork:
		// A jump to the very next node is not a distinct route.
		if n.Jump != NoNode && n.Jump != n.Next {
			alternate := e.alternate(path, e.isTrivialJoin(n.Jump))
			if err := e.follow(alternate, idx, n.Jump); err != nil {
				return err
			}
		}
		return e.follow(path, idx, n.Next)

	case KindMultiFork:
		if len(n.Cases) == 0 {
			return &IncompleteGraphError{Node: idx, Kind: n.Kind, Line: n.Line}
		}
		alternates := make([]*Path, len(n.Cases)-1)
		for i, c := range n.Cases[1:] {
			alternates[i] = e.alternate(path, e.isTrivialJoin(c))
		}
		if err := e.follow(path, idx, n.Cases[0]); err != nil {
			return err
		}
		for i, c := range n.Cases[1:] {
			if err := e.follow(alternates[i], idx, c); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %s node %d inside the graph", ErrMalformedGraph, n.Kind, idx)
}

func (e *enumerator) alternate(parent *Path, shadowed bool) *Path {
	owner := e.owners[parent]
	p := newAlternatePath(parent, owner, shadowed)
	if shadowed {
		e.owners[p] = owner
	} else {
		e.owners[p] = p
	}
	return p
}

func (e *enumerator) isTrivialJoin(idx int) bool {
	if idx < 0 || idx >= len(e.nodes) {
		return false
	}
	n := e.nodes[idx]
	return n.Kind == KindJoin && n.FromTrivialFork
}
