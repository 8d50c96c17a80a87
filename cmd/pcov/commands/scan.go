package commands

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-pathcov/internal/log"
	"github.com/l3aro/go-pathcov/internal/scanner"
	"github.com/l3aro/go-pathcov/pkg/coverage"
	"github.com/l3aro/go-pathcov/pkg/source"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Build a zero-count snapshot for a project",
	Long: `Walks a project, builds the path coverage graph of every function in its
Go files and writes them to a snapshot with all counters at zero. Files
matching the patterns in .pcovignore are left out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.SnapshotFile
		}
		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Workers
		}

		data, err := scanProject(cmd, root, workers)
		if err != nil {
			return err
		}

		if err := data.WriteFile(out); err != nil {
			return err
		}

		methods := 0
		for _, fd := range data.Files() {
			methods += fd.Paths.Len()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d files: %d functions, %d paths\n", data.Len(), methods, data.TotalItems())
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s\n", out)
		return nil
	},
}

func scanProject(cmd *cobra.Command, root string, workers int) (*coverage.Data, error) {
	opts := scanner.DefaultOptions()
	opts.IncludeTests = cfg.IncludeTests
	opts.IgnoreFileName = cfg.IgnoreFile

	files, err := scanner.New(opts).Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	logger.Debug("scan finished", "root", root, "files", len(files))

	spinner := log.NewProgressSpinner(cmd.ErrOrStderr(), "Building path graphs...")
	spinner.Start()
	defer spinner.Stop()

	results := make([]*source.Result, len(files))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			res, err := source.ParseFile(ctx, f.FullPath)
			if errors.Is(err, source.ErrSyntax) {
				logger.Warn("file skipped", "file", f.Path, "err", err)
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = res
			spinner.Message(fmt.Sprintf("Building path graphs... %d/%d", done.Add(1), len(files)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Files are added in scan order so indices do not depend on scheduling.
	data := coverage.New()
	for i, res := range results {
		if res == nil {
			continue
		}
		fd := data.GetOrAddFile(files[i].Path, res.Hash)
		for _, m := range res.Methods {
			fd.Paths.AddMethod(m.Data)
		}
		for _, s := range res.Skipped {
			logger.Warn("function skipped", "file", files[i].Path, "function", s.Name, "line", s.Line, "err", s.Err)
		}
	}
	return data, nil
}

func init() {
	scanCmd.Flags().StringP("out", "o", "", "Snapshot file to write (default: snapshot_file from config)")
	scanCmd.Flags().IntP("workers", "w", 0, "Files parsed concurrently (default: workers from config)")
}
