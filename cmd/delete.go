package cmd

import (
	"context"
	"fmt"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Permanently delete a dataset and its rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDatasetID(datasetID)
		if err != nil {
			return err
		}

		return withEquipment(cmd.Context(), func(ctx context.Context, mod *equipment.Module) error {
			if err := mod.Usecase.Delete(ctx, owner, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted dataset %d\n", id)
			return nil
		})
	},
}

func init() {
	addOwnerFlag(deleteCmd)
	addIDFlag(deleteCmd)
	rootCmd.AddCommand(deleteCmd)
}
