package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge <out> <snapshot>...",
	Short: "Merge snapshots into one",
	Long: `Merges the snapshots in order, later ones on top of earlier ones, and
writes the result to <out>. Counts of a file are only added when its source
is unchanged between the snapshots.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[0]

		data, err := loadMerged(args[1:])
		if err != nil {
			return err
		}
		if err := data.WriteFile(out); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Merged %d snapshots into %s (%d files, %d paths)\n", len(args)-1, out, data.Len(), data.TotalItems())
		return nil
	},
}
