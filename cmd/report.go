package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/report"
	"github.com/spf13/cobra"
)

var (
	reportOut  string
	reportText bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the PDF report of a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDatasetID(datasetID)
		if err != nil {
			return err
		}

		return withEquipment(cmd.Context(), func(ctx context.Context, mod *equipment.Module) error {
			if reportText {
				dataset, err := mod.Usecase.Dataset(ctx, owner, id)
				if err != nil {
					return err
				}
				for _, line := range report.Lines(dataset) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			}

			res, err := mod.Usecase.Report(ctx, owner, id)
			if err != nil {
				return err
			}

			out := reportOut
			if out == "" {
				out = res.Filename
			}
			if err := os.WriteFile(out, res.Content, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s (%d bytes)\n", out, len(res.Content))
			return nil
		})
	},
}

func init() {
	addOwnerFlag(reportCmd)
	addIDFlag(reportCmd)
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output file (default report_<id>.pdf)")
	reportCmd.Flags().BoolVar(&reportText, "text", false, "print the report lines instead of writing a PDF")
	rootCmd.AddCommand(reportCmd)
}
