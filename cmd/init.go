package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// initCmd creates a new init command. init materializes a fresh installation:
// directories, the default model, the configuration documents, the rendered
// service definition, and a running service set. It is safe to re-run.
func initCmd() *cobra.Command {
	var (
		path     string
		logLevel int
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up the installation and start the services",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(path, logLevel)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer cancel()
			return a.ctrl.Initialize(ctx)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Path to the config file")
	cmd.Flags().IntVar(&logLevel, "v", 0, "Log level")
	return cmd
}
