// Package commands provides the CLI commands for pcov.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-pathcov/internal/config"
	"github.com/l3aro/go-pathcov/internal/log"
)

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger log.Logger
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pcov",
	Short: "pcov - Path coverage for Go",
	Long: `pcov measures path coverage: which of the distinct entry-to-exit routes
through each function were executed.

Commands:
  paths       Show the execution paths of the functions in a file
  scan        Build a zero-count snapshot for a project
  record      Apply a probe trace to a snapshot
  report      Print coverage totals for one or more snapshots
  merge       Merge snapshots into one

Use "pcov [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

// ExecuteContext is Execute with a context that commands pass to blocking work.
func ExecuteContext(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// setup loads the configuration and builds the logger shared by commands.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Level()
	if logLevel != "" {
		if level, err = log.ParseLevel(logLevel); err != nil {
			return err
		}
	}

	logger = log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: cfg.JSONLogs,
		Output:     cmd.ErrOrStderr(),
	})
	return nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.pcov/config.yaml and ./.pcov/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	// Add subcommands
	RootCmd.AddCommand(pathsCmd)
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(recordCmd)
	RootCmd.AddCommand(reportCmd)
	RootCmd.AddCommand(mergeCmd)
}
