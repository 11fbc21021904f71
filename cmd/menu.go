package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localserve/localserve/internal/menu"
)

// menuCmd creates a new menu command. menu runs the interactive
// configuration loop against an initialized installation.
func menuCmd() *cobra.Command {
	var (
		path     string
		logLevel int
	)
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Interactively manage models, context size, and the whitelist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(path, logLevel)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer cancel()

			m := menu.New(a.mut, a.upd, a.orch, a.cfg.InstallDir, a.cfg.UpdateURL, os.Stdin, os.Stdout, a.logger)
			return m.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Path to the config file")
	cmd.Flags().IntVar(&logLevel, "v", 0, "Log level")
	return cmd
}
