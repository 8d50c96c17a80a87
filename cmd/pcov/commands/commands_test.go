package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-pathcov/pkg/coverage"
	"github.com/l3aro/go-pathcov/pkg/source"
)

const signSource = `package sample

func Sign(x int) int {
	if x < 0 {
		return -1
	}
	return 1
}
`

// resetFlags restores every flag to its default; cobra keeps values
// between executions of the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs pcov with args in an isolated home and working directory.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)
	resetFlags(RootCmd)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// firstPathTrace returns trace lines that drive the first path of Sign.
func firstPathTrace(t *testing.T, file string) string {
	t.Helper()
	res, err := source.Parse(context.Background(), file, []byte(signSource))
	require.NoError(t, err)
	m, ok := res.Method("Sign")
	require.True(t, ok)

	var b strings.Builder
	b.WriteString("# Sign, first path\n")
	for _, n := range m.Data.Paths()[0].Nodes() {
		fmt.Fprintf(&b, "%s %d 1 %d\n", file, m.Line, n)
	}
	return b.String()
}

func TestPathsCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sign.go"), signSource)

	out, err := execute(t, dir, "paths", "sign.go")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Sign (lines 3-")
	assert.Contains(t, out, "#1: Entry:3-0")
	assert.Contains(t, out, "#2: ")

	out, err = execute(t, dir, "paths", "sign.go", "Sign", "--json")
	require.NoError(t, err)
	var report []methodPaths
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report, 1)
	assert.Equal(t, "Sign", report[0].Name)
	assert.Equal(t, 3, report[0].FirstLine)
	assert.Len(t, report[0].Paths, 2)
	for _, p := range report[0].Paths {
		assert.Len(t, p.Labels, len(p.Nodes))
	}
}

func TestPathsCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sign.go"), signSource)
	writeFile(t, filepath.Join(dir, "jumps.go"), "package sample\n\nfunc J() {\nloop:\n\tgoto loop\n}\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	_, err := execute(t, dir, "paths", "sign.go", "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = execute(t, dir, "paths", "jumps.go", "J")
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUnsupported)

	_, err = execute(t, dir, "paths", "notes.txt")
	assert.Error(t, err)

	_, err = execute(t, dir, "paths", dir)
	assert.Error(t, err)
}

func TestScanRecordReport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sign.go"), signSource)
	writeFile(t, filepath.Join(dir, "sign_test.go"), "package sample\n\nfunc helper() {}\n")
	writeFile(t, filepath.Join(dir, "vendor", "dep", "dep.go"), "package dep\n\nfunc D() {}\n")
	writeFile(t, filepath.Join(dir, "gen", "gen.go"), "package gen\n\nfunc G() {}\n")
	writeFile(t, filepath.Join(dir, ".pcovignore"), "gen/\n")

	out, err := execute(t, dir, "scan", ".", "--out", "cov.snapshot", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 1 files: 1 functions, 2 paths")

	snapshot := filepath.Join(dir, "cov.snapshot")
	data, err := coverage.ReadFile(snapshot)
	require.NoError(t, err)
	_, ok := data.File("sign.go")
	assert.True(t, ok)

	writeFile(t, filepath.Join(dir, "run.trace"), firstPathTrace(t, "sign.go"))
	out, err = execute(t, dir, "record", "run.trace", "--snapshot", "cov.snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "1 completed paths")

	out, err = execute(t, dir, "report", "cov.snapshot", "--json")
	require.NoError(t, err)
	var report coverageReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Covered)
	assert.Equal(t, 50, report.Percentage)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "sign.go", report.Files[0].Path)

	out, err = execute(t, dir, "report", "cov.snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "sign.go")
	assert.Contains(t, out, "50%")

	out, err = execute(t, dir, "report", "cov.snapshot", "--prefix", "other/", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Files)
	assert.Equal(t, -1, report.Percentage)

	out, err = execute(t, dir, "report", "cov.snapshot", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, `pcov_file_paths_covered{file="sign.go"} 1`)

	_, err = execute(t, dir, "report", "cov.snapshot", "--min", "60")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the minimum")

	_, err = execute(t, dir, "report", "cov.snapshot", "--min", "50")
	assert.NoError(t, err)
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sign.go"), signSource)
	writeFile(t, filepath.Join(dir, "run.trace"), firstPathTrace(t, "sign.go"))

	_, err := execute(t, dir, "scan", "--out", "a.snapshot")
	require.NoError(t, err)
	_, err = execute(t, dir, "record", "run.trace", "--snapshot", "a.snapshot")
	require.NoError(t, err)

	out, err := execute(t, dir, "merge", "all.snapshot", "a.snapshot", "a.snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 2 snapshots into all.snapshot (1 files, 2 paths)")

	data, err := coverage.ReadFile(filepath.Join(dir, "all.snapshot"))
	require.NoError(t, err)
	fd, ok := data.File("sign.go")
	require.True(t, ok)
	m, ok := fd.Paths.Method(3)
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Paths()[0].ExecutionCount())
	assert.Equal(t, 1, data.CoveredItems())

	_, err = execute(t, dir, "merge", "out.snapshot", "missing.snapshot")
	assert.Error(t, err)
}

func TestRecordCommand_BadTrace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sign.go"), signSource)
	_, err := execute(t, dir, "scan", "--out", "cov.snapshot")
	require.NoError(t, err)

	tests := []struct {
		name  string
		trace string
		want  string
	}{
		{"short line", "sign.go 3 1\n", "expected 4 fields"},
		{"unknown file", "other.go 3 1 0\n", "not in the snapshot"},
		{"bad thread", "sign.go 3 x 0\n", "invalid thread id"},
		{"bad node", "\n# comment\nsign.go 3 1 n\n", "line 3: invalid node index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, filepath.Join(dir, "bad.trace"), tt.trace)
			_, err := execute(t, dir, "record", "bad.trace", "--snapshot", "cov.snapshot")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigSnapshotDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sign.go"), signSource)
	writeFile(t, filepath.Join(dir, "pcov.yaml"), "snapshot_file: build/paths.snapshot\nmin_percentage: 10\n")

	_, err := execute(t, dir, "--config", "pcov.yaml", "scan")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "build", "paths.snapshot"))

	_, err = execute(t, dir, "--config", "pcov.yaml", "report")
	require.Error(t, err, "nothing is covered, so the configured minimum fails")
}
