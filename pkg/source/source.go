// Package source builds path coverage graphs for Go functions by walking
// their syntax trees with tree-sitter.
//
// Loops are modelled as a single forward pass: the loop condition forks to
// the statement after the loop, continue jumps to the end of the body and
// there are no back edges. Functions using goto or labeled statements are
// skipped.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/l3aro/go-pathcov/pkg/coverage"
	"github.com/l3aro/go-pathcov/pkg/paths"
)

// ErrUnsupported marks control flow the lowering does not model.
var ErrUnsupported = errors.New("unsupported control flow")

// ErrSyntax is returned for files tree-sitter could not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// Method is the path coverage graph of one function or method.
type Method struct {
	Name string // "F" or "T.M"
	Line int    // first line, the method's key in its file
	Data *paths.MethodData
}

// Skipped is a function whose graph could not be built.
type Skipped struct {
	Name string
	Line int
	Err  error
}

// Result is the outcome of parsing one file.
type Result struct {
	Path    string
	Hash    string
	Methods []Method
	Skipped []Skipped
}

// Method returns the first method with the given name.
func (r *Result) Method(name string) (Method, bool) {
	for _, m := range r.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// FileCoverage collects the methods into a fresh table.
func (r *Result) FileCoverage() *paths.FileCoverage {
	fc := paths.NewFileCoverage()
	for _, m := range r.Methods {
		fc.AddMethod(m.Data)
	}
	return fc
}

// ParseFile reads and parses a Go source file.
func ParseFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Parse(ctx, path, content)
}

// Parse builds a graph for every top-level function and method in content.
// Functions whose graph cannot be built are listed in Result.Skipped.
func Parse(ctx context.Context, path string, content []byte) (*Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w in %s", ErrSyntax, path)
	}

	res := &Result{Path: path, Hash: coverage.HashSource(content)}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		fn := root.NamedChild(i)
		if fn.Type() != "function_declaration" && fn.Type() != "method_declaration" {
			continue
		}
		body := fn.ChildByFieldName("body")
		if body == nil {
			continue
		}

		name := functionName(fn, content)
		m, err := lowerFunction(content, fn, body)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Name: name, Line: lineOf(fn), Err: err})
			continue
		}
		res.Methods = append(res.Methods, Method{Name: name, Line: m.FirstLine(), Data: m})
	}
	return res, nil
}

func functionName(fn *sitter.Node, content []byte) string {
	name := fn.ChildByFieldName("name").Content(content)
	if fn.Type() != "method_declaration" {
		return name
	}

	recv := fn.ChildByFieldName("receiver")
	if recv == nil {
		return name
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			break
		}
		t := strings.TrimPrefix(typ.Content(content), "*")
		if idx := strings.IndexByte(t, '['); idx >= 0 {
			t = t[:idx]
		}
		return t + "." + name
	}
	return name
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLineOf(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}
