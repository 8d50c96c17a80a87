package source

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-pathcov/pkg/paths"
)

const noLabel = 0

// frame is an enclosing statement that break or continue can leave.
type frame struct {
	breakLabel    int
	continueLabel int // noLabel for switch and select
}

// lowerer turns one function body into builder events. Jump targets are
// small integers allocated per function.
type lowerer struct {
	content []byte
	b       *paths.Builder[int]

	labels    int
	reachable bool
	fell      bool // last case statement was fallthrough
	frames    []frame

	// else labels of if statements matching the boolean materialisation
	// idiom; their forks are trivial.
	trivial map[int]bool
}

func lowerFunction(content []byte, fn, body *sitter.Node) (*paths.MethodData, error) {
	l := &lowerer{content: content, trivial: make(map[int]bool)}
	l.b = paths.NewBuilder(paths.WithTrivialForkDetector[int](paths.TrivialForkFunc[int](
		func(ctx paths.ForkContext[int]) bool { return l.trivial[ctx.Target] },
	)))

	if _, err := l.b.HandleEntry(lineOf(fn)); err != nil {
		return nil, err
	}
	l.reachable = true

	if err := l.block(body); err != nil {
		return nil, err
	}

	last := endLineOf(body)
	if l.reachable {
		if err := l.exit(last); err != nil {
			return nil, err
		}
	}
	return l.b.Build(last)
}

func (l *lowerer) newLabel() int {
	l.labels++
	return l.labels
}

func (l *lowerer) regular(line int) error {
	_, err := l.b.HandleRegularInstruction(line)
	return err
}

func (l *lowerer) jump(label, line int, conditional bool) error {
	if !conditional {
		l.reachable = false
	}
	_, err := l.b.HandleJump(label, line, conditional)
	return err
}

// target visits label. Code after it is reachable if anything jumped there
// or the preceding code falls through.
func (l *lowerer) target(label, line int) error {
	idx, err := l.b.HandleJumpTarget(label, line)
	if err != nil {
		return err
	}
	if idx != paths.NoNode {
		l.reachable = true
	}
	return nil
}

func (l *lowerer) exit(line int) error {
	l.reachable = false
	_, err := l.b.HandleExit(line)
	return err
}

func (l *lowerer) block(n *sitter.Node) error {
	if n == nil {
		return nil
	}
	return l.statements(blockStatements(n))
}

func (l *lowerer) statements(stmts []*sitter.Node) error {
	for _, s := range stmts {
		if err := l.statement(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) statement(n *sitter.Node) error {
	if !l.reachable {
		return nil
	}

	line := lineOf(n)
	switch n.Type() {
	case "block":
		return l.block(n)
	case "if_statement":
		return l.ifStatement(n)
	case "for_statement":
		return l.forStatement(n)
	case "expression_switch_statement", "type_switch_statement", "select_statement":
		return l.switchStatement(n)
	case "return_statement":
		return l.exit(line)
	case "break_statement":
		return l.branch(n, line, false)
	case "continue_statement":
		return l.branch(n, line, true)
	case "fallthrough_statement":
		l.fell = true
		return nil
	case "goto_statement", "labeled_statement":
		return fmt.Errorf("%w: %s at line %d", ErrUnsupported, n.Type(), line)
	case "empty_statement":
		return nil
	case "expression_statement":
		if isPanic(n, l.content) {
			return l.exit(line)
		}
	}
	return l.regular(line)
}

func (l *lowerer) branch(n *sitter.Node, line int, isContinue bool) error {
	if n.NamedChildCount() > 0 {
		return fmt.Errorf("%w: labeled %s at line %d", ErrUnsupported, n.Type(), line)
	}
	for i := len(l.frames) - 1; i >= 0; i-- {
		f := l.frames[i]
		if !isContinue {
			return l.jump(f.breakLabel, line, false)
		}
		if f.continueLabel != noLabel {
			return l.jump(f.continueLabel, line, false)
		}
	}
	return fmt.Errorf("%w: %s outside a loop at line %d", ErrUnsupported, n.Type(), line)
}

func (l *lowerer) ifStatement(n *sitter.Node) error {
	if init := n.ChildByFieldName("initializer"); init != nil {
		if err := l.regular(lineOf(init)); err != nil {
			return err
		}
	}

	condLine := lineOf(n)
	if cond := n.ChildByFieldName("condition"); cond != nil {
		condLine = lineOf(cond)
	}
	if err := l.regular(condLine); err != nil {
		return err
	}

	elseLabel := l.newLabel()
	if err := l.jump(elseLabel, condLine, true); err != nil {
		return err
	}

	cons := n.ChildByFieldName("consequence")
	alt := n.ChildByFieldName("alternative")
	if isBooleanMaterialisation(cons, alt, l.content) {
		l.trivial[elseLabel] = true
	}

	if err := l.block(cons); err != nil {
		return err
	}
	if alt == nil {
		return l.target(elseLabel, endLineOf(n))
	}

	endLabel := l.newLabel()
	if l.reachable {
		if err := l.jump(endLabel, endLineOf(cons), false); err != nil {
			return err
		}
	}
	if err := l.target(elseLabel, lineOf(alt)); err != nil {
		return err
	}
	if err := l.statement(alt); err != nil {
		return err
	}
	return l.target(endLabel, endLineOf(n))
}

func (l *lowerer) forStatement(n *sitter.Node) error {
	line := lineOf(n)
	body := n.ChildByFieldName("body")

	var clause *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "comment" && !sameNode(c, body) {
			clause = c
			break
		}
	}

	// A bare condition or a range clause may run the body zero times.
	hasCondition := clause != nil
	var update *sitter.Node
	if clause != nil && clause.Type() == "for_clause" {
		if init := clause.ChildByFieldName("initializer"); init != nil {
			if err := l.regular(lineOf(init)); err != nil {
				return err
			}
		}
		hasCondition = clause.ChildByFieldName("condition") != nil
		update = clause.ChildByFieldName("update")
	}

	if err := l.regular(line); err != nil {
		return err
	}

	endLabel, nextLabel := l.newLabel(), l.newLabel()
	if hasCondition {
		if err := l.jump(endLabel, line, true); err != nil {
			return err
		}
	}

	l.frames = append(l.frames, frame{breakLabel: endLabel, continueLabel: nextLabel})
	err := l.block(body)
	l.frames = l.frames[:len(l.frames)-1]
	if err != nil {
		return err
	}

	if err := l.target(nextLabel, endLineOf(body)); err != nil {
		return err
	}
	if update != nil && l.reachable {
		if err := l.regular(lineOf(update)); err != nil {
			return err
		}
	}
	return l.target(endLabel, endLineOf(n))
}

// switchStatement lowers expression switches, type switches and selects
// into one multi-way fork.
func (l *lowerer) switchStatement(n *sitter.Node) error {
	line := lineOf(n)
	if init := n.ChildByFieldName("initializer"); init != nil {
		if err := l.regular(lineOf(init)); err != nil {
			return err
		}
	}
	if err := l.regular(line); err != nil {
		return err
	}

	var clauses []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "expression_case", "type_case", "communication_case", "default_case":
			clauses = append(clauses, c)
		}
	}
	if len(clauses) == 0 {
		return nil
	}

	endLabel := l.newLabel()
	labels := make([]int, len(clauses))
	defaultLabel := noLabel
	var caseLabels []int
	for i, c := range clauses {
		labels[i] = l.newLabel()
		if c.Type() == "default_case" {
			defaultLabel = labels[i]
		} else {
			caseLabels = append(caseLabels, labels[i])
		}
	}
	if defaultLabel == noLabel {
		// Without a default a switch may match nothing; a select blocks
		// until one of its cases is ready.
		defaultLabel = endLabel
		if n.Type() == "select_statement" {
			defaultLabel = caseLabels[0]
		}
	}

	if _, err := l.b.HandleForwardJumpsToNewTargets(defaultLabel, caseLabels, line); err != nil {
		return err
	}
	l.reachable = false

	l.frames = append(l.frames, frame{breakLabel: endLabel, continueLabel: noLabel})
	defer func() { l.frames = l.frames[:len(l.frames)-1] }()

	for i, c := range clauses {
		if err := l.target(labels[i], lineOf(c)); err != nil {
			return err
		}
		l.fell = false
		if err := l.statements(caseStatements(c)); err != nil {
			return err
		}
		if l.reachable && !l.fell {
			if err := l.jump(endLabel, endLineOf(c), false); err != nil {
				return err
			}
		}
		l.fell = false
	}
	return l.target(endLabel, endLineOf(n))
}

// blockStatements returns the statements of a block.
func blockStatements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = appendStatement(out, n.NamedChild(i))
	}
	return out
}

// caseStatements returns the statements after the colon of a case clause.
func caseStatements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	afterColon := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !afterColon {
			afterColon = c.Type() == ":"
			continue
		}
		if c.IsNamed() {
			out = appendStatement(out, c)
		}
	}
	return out
}

// appendStatement flattens statement_list wrappers and drops comments.
func appendStatement(out []*sitter.Node, n *sitter.Node) []*sitter.Node {
	switch n.Type() {
	case "comment":
		return out
	case "statement_list":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = appendStatement(out, n.NamedChild(i))
		}
		return out
	}
	return append(out, n)
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func isPanic(n *sitter.Node, content []byte) bool {
	if n.NamedChildCount() != 1 {
		return false
	}
	call := n.NamedChild(0)
	if call.Type() != "call_expression" {
		return false
	}
	fn := call.ChildByFieldName("function")
	return fn != nil && fn.Type() == "identifier" && fn.Content(content) == "panic"
}

// isBooleanMaterialisation matches `if c { v = true } else { v = false }`
// and its mirror image.
func isBooleanMaterialisation(cons, alt *sitter.Node, content []byte) bool {
	if cons == nil || alt == nil || alt.Type() != "block" {
		return false
	}
	left, value, ok := boolAssignment(cons, content)
	if !ok {
		return false
	}
	altLeft, altValue, ok := boolAssignment(alt, content)
	return ok && left == altLeft && value != altValue
}

func boolAssignment(block *sitter.Node, content []byte) (left, value string, ok bool) {
	stmts := blockStatements(block)
	if len(stmts) != 1 || stmts[0].Type() != "assignment_statement" {
		return "", "", false
	}
	a := stmts[0]
	op := a.ChildByFieldName("operator")
	lhs := a.ChildByFieldName("left")
	rhs := a.ChildByFieldName("right")
	if op == nil || lhs == nil || rhs == nil || op.Content(content) != "=" || rhs.NamedChildCount() != 1 {
		return "", "", false
	}
	v := rhs.NamedChild(0).Type()
	if v != "true" && v != "false" {
		return "", "", false
	}
	return lhs.Content(content), v, true
}
