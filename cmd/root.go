package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	owner     string
	datasetID string
)

var rootCmd = &cobra.Command{
	Use:   "chemvis",
	Short: "Chemical equipment dataset service",
	Long: `chemvis ingests chemical equipment CSV uploads, keeps the latest datasets per
owner with summary statistics, and renders PDF reports. Run "chemvis serve" for
the HTTP API; the other commands work on the configured store directly.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /config/config.yaml, or ./config/config.yaml when LOCAL=true)")
}

// addOwnerFlag registers the --owner flag shared by the dataset commands.
func addOwnerFlag(c *cobra.Command) {
	c.Flags().StringVar(&owner, "owner", "", "owner whose datasets are used")
	_ = c.MarkFlagRequired("owner")
}

// addIDFlag registers the --id flag of commands acting on one dataset.
func addIDFlag(c *cobra.Command) {
	c.Flags().StringVar(&datasetID, "id", "", "dataset id")
	_ = c.MarkFlagRequired("id")
}
