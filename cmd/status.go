package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// statusCmd creates a new status command. status prints the active model,
// the context-window setting, the whitelist state, and the orchestrator's
// view of the services.
func statusCmd() *cobra.Command {
	var (
		path     string
		logLevel int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current configuration and service state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(path, logLevel)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer cancel()

			model, err := a.mut.CurrentModel()
			if err != nil {
				return err
			}
			size, err := a.mut.CurrentContextSize()
			if err != nil {
				return err
			}
			entries, state, err := a.mut.WhitelistEntries()
			if err != nil {
				return err
			}

			cmd.Printf("Active model:  %s\n", model)
			if size > 0 {
				cmd.Printf("Context size:  %d\n", size)
			} else {
				cmd.Println("Context size:  engine default")
			}
			cmd.Printf("Whitelist:     %s (%s)\n", state, strings.Join(entries, ", "))
			if a.upd.HasPendingUpdate() {
				cmd.Println("Warning: a staged update never finished; run 'localserve update'.")
			}

			ps, err := a.orch.PS(ctx, a.cfg.InstallDir)
			if err != nil {
				return fmt.Errorf("query orchestrator: %w", err)
			}
			cmd.Println(ps)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Path to the config file")
	cmd.Flags().IntVar(&logLevel, "v", 0, "Log level")
	return cmd
}
