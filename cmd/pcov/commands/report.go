package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-pathcov/pkg/coverage"
)

// coverageReport is the JSON shape of the report command.
type coverageReport struct {
	RunID      string       `json:"run_id"`
	Files      []fileReport `json:"files"`
	Total      int          `json:"total_paths"`
	Covered    int          `json:"covered_paths"`
	Percentage int          `json:"percentage"`
}

type fileReport struct {
	Path       string `json:"path"`
	Functions  int    `json:"functions"`
	Total      int    `json:"total_paths"`
	Covered    int    `json:"covered_paths"`
	Percentage int    `json:"percentage"`
}

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [snapshot...]",
	Short: "Print coverage totals for one or more snapshots",
	Long: `Merges the given snapshots in order and prints per-file and overall path
coverage. With no arguments the configured snapshot file is used.
Files without paths show a dash, or -1 in JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{cfg.SnapshotFile}
		}

		data, err := loadMerged(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
			if err := coverage.WriteMetrics(out, data); err != nil {
				return err
			}
		} else {
			prefix, _ := cmd.Flags().GetString("prefix")
			report := buildReport(data, prefix)

			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				b, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(out, string(b))
			} else {
				printReport(out, report)
			}
		}

		minPct, _ := cmd.Flags().GetInt("min")
		if !cmd.Flags().Changed("min") {
			minPct = cfg.MinPercentage
		}
		if minPct > 0 {
			smallest := data.SmallestPerFilePercentage()
			if smallest != math.MaxInt && smallest < minPct {
				return fmt.Errorf("path coverage of %d%% is below the minimum of %d%%", smallest, minPct)
			}
		}
		return nil
	},
}

func buildReport(data *coverage.Data, prefix string) coverageReport {
	report := coverageReport{
		RunID:      data.RunID(),
		Files:      []fileReport{},
		Percentage: data.Percentage(prefix),
	}
	for _, fd := range data.Files() {
		if !strings.HasPrefix(fd.Path, prefix) {
			continue
		}
		fr := fileReport{
			Path:       fd.Path,
			Functions:  fd.Paths.Len(),
			Total:      fd.Paths.TotalItems(),
			Covered:    fd.Paths.CoveredItems(),
			Percentage: fd.Paths.CoveragePercentage(),
		}
		report.Total += fr.Total
		report.Covered += fr.Covered
		report.Files = append(report.Files, fr)
	}
	return report
}

// printReport prints the report in human-readable format.
func printReport(w io.Writer, report coverageReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tFUNCTIONS\tPATHS\tCOVERED\tPERCENT")
	for _, f := range report.Files {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", f.Path, f.Functions, f.Total, f.Covered, formatPercentage(f.Percentage))
	}
	fmt.Fprintf(tw, "total\t\t%d\t%d\t%s\n", report.Total, report.Covered, formatPercentage(report.Percentage))
	tw.Flush()
}

func formatPercentage(p int) string {
	if p < 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", p)
}

func init() {
	reportCmd.Flags().StringP("prefix", "p", "", "Only report files whose path starts with prefix")
	reportCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	reportCmd.Flags().Bool("metrics", false, "Output in Prometheus text exposition format")
	reportCmd.Flags().Int("min", 0, "Fail when any file is below this percentage (default: min_percentage from config)")
}
