package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the owner's retained datasets, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEquipment(cmd.Context(), func(ctx context.Context, mod *equipment.Module) error {
			datasets, err := mod.Usecase.History(ctx, owner)
			if err != nil {
				return err
			}
			if len(datasets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no datasets)")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tCREATED\tROWS\tAVG FLOWRATE")
			for _, d := range datasets {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\n",
					d.ID, d.Filename, d.CreatedAt.Format(time.RFC3339), d.Summary.RowCount, d.Summary.MeanFlowrate)
			}
			return tw.Flush()
		})
	},
}

func init() {
	addOwnerFlag(historyCmd)
	rootCmd.AddCommand(historyCmd)
}
