package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
	"github.com/spf13/cobra"
)

var rowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Print the equipment rows of a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDatasetID(datasetID)
		if err != nil {
			return err
		}

		return withEquipment(cmd.Context(), func(ctx context.Context, mod *equipment.Module) error {
			rows, err := mod.Usecase.Rows(ctx, owner, id)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EQUIPMENT NAME\tTYPE\tFLOWRATE\tPRESSURE\tTEMPERATURE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\n", r.Name, r.Category, r.Flowrate, r.Pressure, r.Temperature)
			}
			return tw.Flush()
		})
	},
}

func init() {
	addOwnerFlag(rowsCmd)
	addIDFlag(rowsCmd)
	rootCmd.AddCommand(rowsCmd)
}
