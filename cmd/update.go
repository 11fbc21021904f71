package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// updateCmd creates a new update command. update refreshes an existing
// installation after a deployment-definition change: it re-renders the
// service definition and restarts the services, preserving the operator's
// model choice, context size, and whitelist.
func updateCmd() *cobra.Command {
	var (
		path     string
		logLevel int
		check    bool
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fetch the latest deployment definition and redeploy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(path, logLevel)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer cancel()

			if check {
				_, err := a.upd.CheckAndApply(ctx, a.cfg.UpdateURL)
				return err
			}
			return a.ctrl.Reinitialize(ctx)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Path to the config file")
	cmd.Flags().IntVar(&logLevel, "v", 0, "Log level")
	cmd.Flags().BoolVar(&check, "check-remote", false, "Fetch the remote definition before redeploying")
	return cmd
}
