package cmd

import (
	"context"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/app"
	"github.com/spf13/cobra"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(cfgFile)
		if err != nil {
			return err
		}

		wait := application.Start() // Start the application and wait for the termination signal
		<-wait

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		application.Stop(ctx) // Stop the application gracefully
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}
