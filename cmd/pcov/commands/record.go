package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-pathcov/pkg/coverage"
	"github.com/l3aro/go-pathcov/pkg/paths"
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record <trace>",
	Short: "Apply a probe trace to a snapshot",
	Long: `Replays node notifications from a trace file against a snapshot and writes
the updated counts back. Each line of the trace holds one notification:

  <file> <function first line> <thread id> <node index>

where <file> is the path as stored by scan. Blank lines and lines starting
with # are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, _ := cmd.Flags().GetString("snapshot")
		if snapshot == "" {
			snapshot = cfg.SnapshotFile
		}

		data, err := loadSnapshot(snapshot)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening trace: %w", err)
		}
		defer f.Close()

		notifications, completed, err := replayTrace(f, data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		if err := data.WriteFile(snapshot); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d notifications, %d completed paths\n", notifications, completed)
		return nil
	},
}

// replayTrace delivers every notification in r to data.
func replayTrace(r io.Reader, data *coverage.Data) (notifications, completed int, err error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 4 {
			return notifications, completed, fmt.Errorf("line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		fd, ok := data.File(fields[0])
		if !ok {
			return notifications, completed, fmt.Errorf("line %d: file %s is not in the snapshot", lineNo, fields[0])
		}
		method, err := strconv.Atoi(fields[1])
		if err != nil {
			return notifications, completed, fmt.Errorf("line %d: invalid function line: %w", lineNo, err)
		}
		tid, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return notifications, completed, fmt.Errorf("line %d: invalid thread id: %w", lineNo, err)
		}
		node, err := strconv.Atoi(fields[3])
		if err != nil {
			return notifications, completed, fmt.Errorf("line %d: invalid node index: %w", lineNo, err)
		}

		notifications++
		if data.RegisterExecution(fd.Index, method, paths.ThreadID(tid), node) != paths.NotCompleted {
			completed++
		}
	}
	if err := sc.Err(); err != nil {
		return notifications, completed, fmt.Errorf("reading trace: %w", err)
	}
	return notifications, completed, nil
}

func init() {
	recordCmd.Flags().StringP("snapshot", "s", "", "Snapshot to update (default: snapshot_file from config)")
}
