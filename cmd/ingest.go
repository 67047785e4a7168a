package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
	"github.com/spf13/cobra"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a CSV file as a new dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(ingestFile)
		if err != nil {
			return err
		}
		defer f.Close()

		return withEquipment(cmd.Context(), func(ctx context.Context, mod *equipment.Module) error {
			res, err := mod.Usecase.Ingest(ctx, owner, filepath.Base(ingestFile), f)
			if err != nil {
				return err
			}

			for _, id := range res.Evicted {
				fmt.Fprintf(cmd.ErrOrStderr(), "evicted dataset %d (retention limit)\n", id)
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":        fmt.Sprint(res.DatasetID),
				"filename":  res.Filename,
				"timestamp": res.CreatedAt,
				"summary":   res.Summary,
			})
		})
	},
}

func init() {
	addOwnerFlag(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file to ingest")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
