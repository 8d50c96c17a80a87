package paths

// ForkContext describes the jump target a new Join was created for. It is
// handed to a TrivialForkDetector, which knows the host instruction stream
// and decides whether the fork feeding the Join is a compiler idiom (such as
// materialising a boolean constant) rather than a real decision.
type ForkContext[T comparable] struct {
	Target   T
	JoinLine int
	Join     int   // index of the new Join
	Forks    []int // forks whose jump edge targets the Join
	Gotos    []int // Goto, Block or Join nodes resolved to the Join
}

// TrivialForkDetector recognises structurally trivial forks.
type TrivialForkDetector[T comparable] interface {
	IsStructurallyTrivial(ctx ForkContext[T]) bool
}

// TrivialForkFunc adapts a function to TrivialForkDetector.
type TrivialForkFunc[T comparable] func(ctx ForkContext[T]) bool

// IsStructurallyTrivial calls f(ctx).
func (f TrivialForkFunc[T]) IsStructurallyTrivial(ctx ForkContext[T]) bool {
	return f(ctx)
}

// BuilderOption configures a Builder.
type BuilderOption[T comparable] func(*Builder[T])

// WithTrivialForkDetector installs the predicate consulted for every new Join.
func WithTrivialForkDetector[T comparable](d TrivialForkDetector[T]) BuilderOption[T] {
	return func(b *Builder[T]) {
		b.trivial = d
	}
}

// Builder assembles the node graph of one method body from build events
// delivered in program order. T is the producer's jump-target handle.
//
// A Builder is single-use and not safe for concurrent use. Once an operation
// reports a ContractViolation every later call returns the same error.
type Builder[T comparable] struct {
	nodes     []*Node
	firstLine int

	entryPending      bool
	currentSimpleFork int
	currentBlock      int
	currentJoin       int

	jumpTargetToForks      map[T][]int
	gotoTargetToSuccessors map[T][]int
	visited                map[T]struct{}

	trivial TrivialForkDetector[T]
	err     error
	built   bool
}

// NewBuilder creates a Builder for one method body.
func NewBuilder[T comparable](opts ...BuilderOption[T]) *Builder[T] {
	b := &Builder[T]{
		currentSimpleFork:      NoNode,
		currentBlock:           NoNode,
		currentJoin:            NoNode,
		jumpTargetToForks:      make(map[T][]int),
		gotoTargetToSuccessors: make(map[T][]int),
		visited:                make(map[T]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FirstLine returns the line passed to HandleEntry.
func (b *Builder[T]) FirstLine() int { return b.firstLine }

// Nodes returns the nodes built so far, in build order.
func (b *Builder[T]) Nodes() []*Node { return b.nodes }

// Err returns the sticky contract violation, if any.
func (b *Builder[T]) Err() error { return b.err }

func (b *Builder[T]) violate(op string, line int, reason string) error {
	b.err = &ContractViolation{Op: op, Line: line, Reason: reason}
	return b.err
}

// check rejects calls after a failure, after Build, or before HandleEntry.
func (b *Builder[T]) check(op string, line int) error {
	if b.err != nil {
		return b.err
	}
	if b.built {
		return b.violate(op, line, "builder already built")
	}
	if len(b.nodes) == 0 {
		return b.violate(op, line, "called before HandleEntry")
	}
	return nil
}

// addNewNode appends n to the arena and derives its segment.
func (b *Builder[T]) addNewNode(n *Node) int {
	idx := len(b.nodes)
	if idx > 0 {
		preceding := b.nodes[idx-1]
		if preceding.Line == n.Line {
			n.setSegmentAccordingToPrecedingNode(preceding)
		}
	}
	b.nodes = append(b.nodes, n)
	return idx
}

// connectPending links whatever is waiting for a consecutive successor to
// the node about to be created at index next. It reports whether anything
// was waiting.
func (b *Builder[T]) connectPending(op string, line, next int) (bool, error) {
	connected := false

	if b.entryPending {
		b.nodes[0].Next = next
		b.entryPending = false
		connected = true
	}

	if b.currentSimpleFork != NoNode {
		if b.currentJoin != NoNode || b.currentBlock != NoNode {
			return false, b.violate(op, line, "fork pending together with another node")
		}
		b.nodes[b.currentSimpleFork].Next = next
		b.currentSimpleFork = NoNode
		connected = true
	}

	if b.currentJoin != NoNode {
		if b.currentBlock != NoNode {
			return false, b.violate(op, line, "join pending together with a block")
		}
		b.nodes[b.currentJoin].Next = next
		b.currentJoin = NoNode
		connected = true
	}

	if b.currentBlock != NoNode {
		b.nodes[b.currentBlock].Next = next
		b.currentBlock = NoNode
		connected = true
	}

	return connected, nil
}

// connectRequired is connectPending for nodes that would be unreachable
// without a pending predecessor.
func (b *Builder[T]) connectRequired(op string, line, next int) error {
	connected, err := b.connectPending(op, line, next)
	if err != nil {
		return err
	}
	if !connected {
		return b.violate(op, line, "no pending predecessor")
	}
	return nil
}

// HandleEntry creates the Entry node. It must be the first call.
func (b *Builder[T]) HandleEntry(line int) (int, error) {
	if b.err != nil {
		return NoNode, b.err
	}
	if len(b.nodes) > 0 {
		return NoNode, b.violate("HandleEntry", line, "entry already handled")
	}
	b.firstLine = line
	b.entryPending = true
	return b.addNewNode(newNode(KindEntry, line)), nil
}

// HandleRegularInstruction creates a Block after the pending SimpleFork or
// Join. It returns NoNode when neither is pending.
func (b *Builder[T]) HandleRegularInstruction(line int) (int, error) {
	const op = "HandleRegularInstruction"
	if err := b.check(op, line); err != nil {
		return NoNode, err
	}
	if b.currentSimpleFork == NoNode && b.currentJoin == NoNode {
		return NoNode, nil
	}
	if b.currentBlock != NoNode {
		return NoNode, b.violate(op, line, "block already pending")
	}

	idx := len(b.nodes)
	if b.currentSimpleFork != NoNode {
		b.nodes[b.currentSimpleFork].Next = idx
		b.currentSimpleFork = NoNode
	} else {
		b.nodes[b.currentJoin].Next = idx
		b.currentJoin = NoNode
	}
	b.currentBlock = idx

	return b.addNewNode(newNode(KindBlock, line)), nil
}

// HandleJump records a jump to target. A conditional jump creates a
// SimpleFork whose jump edge is resolved when target is visited. An
// unconditional jump defers the pending Block or Join, or creates a Goto
// when neither is pending.
func (b *Builder[T]) HandleJump(target T, line int, conditional bool) (int, error) {
	const op = "HandleJump"
	if err := b.check(op, line); err != nil {
		return NoNode, err
	}

	if conditional {
		if b.currentSimpleFork != NoNode {
			return NoNode, b.violate(op, line, "conditional jump while a fork is still pending")
		}
		idx := len(b.nodes)
		if err := b.connectRequired(op, line, idx); err != nil {
			return NoNode, err
		}
		b.jumpTargetToForks[target] = append(b.jumpTargetToForks[target], idx)
		b.currentSimpleFork = idx
		return b.addNewNode(newNode(KindSimpleFork, line)), nil
	}

	if b.currentBlock == NoNode && b.currentJoin == NoNode {
		idx := len(b.nodes)
		if err := b.connectRequired(op, line, idx); err != nil {
			return NoNode, err
		}
		b.gotoTargetToSuccessors[target] = append(b.gotoTargetToSuccessors[target], idx)
		return b.addNewNode(newNode(KindGoto, line)), nil
	}

	if b.currentBlock != NoNode && b.currentJoin != NoNode {
		return NoNode, b.violate(op, line, "ambiguous goto: block and join both pending")
	}

	pending := b.currentBlock
	if pending == NoNode {
		pending = b.currentJoin
	}
	b.gotoTargetToSuccessors[target] = append(b.gotoTargetToSuccessors[target], pending)
	b.currentBlock = NoNode
	b.currentJoin = NoNode
	return NoNode, nil
}

// HandleJumpTarget visits target. A Join is created only if some fork or
// deferred jump referenced target; every such reference is resolved to it.
// Each target may be visited once.
func (b *Builder[T]) HandleJumpTarget(target T, line int) (int, error) {
	const op = "HandleJumpTarget"
	if err := b.check(op, line); err != nil {
		return NoNode, err
	}
	if _, ok := b.visited[target]; ok {
		return NoNode, b.violate(op, line, "jump target visited twice")
	}
	b.visited[target] = struct{}{}

	forks, forked := b.jumpTargetToForks[target]
	gotos, jumped := b.gotoTargetToSuccessors[target]
	if !forked && !jumped {
		return NoNode, nil
	}

	idx := len(b.nodes)
	if _, err := b.connectPending(op, line, idx); err != nil {
		return NoNode, err
	}

	for _, f := range forks {
		fork := b.nodes[f]
		if fork.Kind == KindMultiFork {
			fork.Cases = append(fork.Cases, idx)
		} else {
			fork.Jump = idx
		}
	}
	delete(b.jumpTargetToForks, target)

	for _, g := range gotos {
		successor := b.nodes[g]
		if successor.Kind == KindJoin {
			successor.Next = idx
		} else {
			successor.Jump = idx
		}
	}
	delete(b.gotoTargetToSuccessors, target)

	join := newNode(KindJoin, line)
	if b.trivial != nil && len(forks) > 0 {
		join.FromTrivialFork = b.trivial.IsStructurallyTrivial(ForkContext[T]{
			Target:   target,
			JoinLine: line,
			Join:     idx,
			Forks:    forks,
			Gotos:    gotos,
		})
	}
	b.currentJoin = idx

	return b.addNewNode(join), nil
}

// HandleForwardJumpsToNewTargets creates a MultiFork dispatching to one
// Join per distinct target; case targets equal to defaultTarget share its
// Join.
func (b *Builder[T]) HandleForwardJumpsToNewTargets(defaultTarget T, caseTargets []T, line int) (int, error) {
	const op = "HandleForwardJumpsToNewTargets"
	if err := b.check(op, line); err != nil {
		return NoNode, err
	}

	idx := len(b.nodes)
	if err := b.connectRequired(op, line, idx); err != nil {
		return NoNode, err
	}

	seen := make(map[T]bool, len(caseTargets)+1)
	seen[defaultTarget] = true
	for _, target := range caseTargets {
		if seen[target] {
			continue
		}
		seen[target] = true
		b.jumpTargetToForks[target] = append(b.jumpTargetToForks[target], idx)
	}
	b.jumpTargetToForks[defaultTarget] = append(b.jumpTargetToForks[defaultTarget], idx)

	return b.addNewNode(newNode(KindMultiFork, line)), nil
}

// HandleExit creates an Exit and resolves the pending predecessor to it.
func (b *Builder[T]) HandleExit(line int) (int, error) {
	const op = "HandleExit"
	if err := b.check(op, line); err != nil {
		return NoNode, err
	}

	idx := len(b.nodes)
	if err := b.connectRequired(op, line, idx); err != nil {
		return NoNode, err
	}
	return b.addNewNode(newNode(KindExit, line)), nil
}

// Build finishes the event stream, enumerates the paths and returns the
// method's coverage data. lastLine is the last executable line of the body.
func (b *Builder[T]) Build(lastLine int) (*MethodData, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built {
		return nil, b.violate("Build", lastLine, "builder already built")
	}
	if len(b.nodes) == 0 {
		return nil, b.violate("Build", lastLine, "called before HandleEntry")
	}

	// A fork whose target was never visited has a dangling jump edge.
	unresolved := NoNode
	for _, forks := range b.jumpTargetToForks {
		for _, f := range forks {
			if unresolved == NoNode || f < unresolved {
				unresolved = f
			}
		}
	}
	if unresolved != NoNode {
		n := b.nodes[unresolved]
		return nil, &IncompleteGraphError{Node: unresolved, Kind: n.Kind, Line: n.Line}
	}

	paths, err := BuildPaths(b.nodes)
	if err != nil {
		return nil, err
	}
	b.built = true

	return newMethodData(b.firstLine, lastLine, b.nodes, paths), nil
}
