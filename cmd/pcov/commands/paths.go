package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-pathcov/pkg/source"
)

// methodPaths is the JSON shape of one function's paths.
type methodPaths struct {
	Name      string     `json:"name"`
	FirstLine int        `json:"first_line"`
	LastLine  int        `json:"last_line"`
	Paths     []pathInfo `json:"paths"`
}

type pathInfo struct {
	Nodes    []int    `json:"nodes"`
	Labels   []string `json:"labels"`
	Shadowed bool     `json:"shadowed,omitempty"`
}

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths <file> [function]",
	Short: "Show the execution paths of the functions in a file",
	Long: `Builds the path coverage graph of every function in a Go file, or of the
named function only, and lists its paths. Methods are named Type.Method.
Shadowed paths are counted together with the path they shadow.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		info, err := os.Stat(filePath)
		if err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("path is a directory, expected a file: %s", filePath)
		}
		if !strings.HasSuffix(filePath, ".go") {
			return fmt.Errorf("unsupported file type: %s (only .go files supported)", filePath)
		}

		res, err := source.ParseFile(cmd.Context(), filePath)
		if err != nil {
			return fmt.Errorf("building graphs: %w", err)
		}

		methods := res.Methods
		if len(args) == 2 {
			m, err := findMethod(res, args[1])
			if err != nil {
				return err
			}
			methods = []source.Method{m}
		} else {
			for _, s := range res.Skipped {
				logger.Warn("function skipped", "file", filePath, "function", s.Name, "line", s.Line, "err", s.Err)
			}
		}

		report := make([]methodPaths, 0, len(methods))
		for _, m := range methods {
			report = append(report, describeMethod(m))
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		printMethodPaths(cmd.OutOrStdout(), report)
		return nil
	},
}

func findMethod(res *source.Result, name string) (source.Method, error) {
	if m, ok := res.Method(name); ok {
		return m, nil
	}
	for _, s := range res.Skipped {
		if s.Name == name {
			return source.Method{}, fmt.Errorf("function %q at line %d was skipped: %w", name, s.Line, s.Err)
		}
	}
	return source.Method{}, fmt.Errorf("function %q not found in %s", name, res.Path)
}

func describeMethod(m source.Method) methodPaths {
	nodes := m.Data.Nodes()
	mp := methodPaths{
		Name:      m.Name,
		FirstLine: m.Data.FirstLine(),
		LastLine:  m.Data.LastLine(),
	}
	for _, p := range m.Data.AllPaths() {
		pi := pathInfo{Nodes: p.Nodes(), Shadowed: p.IsShadowed()}
		for _, idx := range pi.Nodes {
			pi.Labels = append(pi.Labels, nodes[idx].String())
		}
		mp.Paths = append(mp.Paths, pi)
	}
	return mp
}

// printMethodPaths prints paths in human-readable format.
func printMethodPaths(w io.Writer, methods []methodPaths) {
	for i, m := range methods {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s (lines %d-%d) ===\n", m.Name, m.FirstLine, m.LastLine)
		for j, p := range m.Paths {
			suffix := ""
			if p.Shadowed {
				suffix = " (shadowed)"
			}
			fmt.Fprintf(w, "  #%d%s: %s\n", j+1, suffix, strings.Join(p.Labels, " -> "))
		}
	}
}

func init() {
	pathsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
