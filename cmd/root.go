package main

import "github.com/spf13/cobra"

// rootCmd is the root of the command-line application.
var rootCmd = &cobra.Command{
	Use:   "localserve",
	Short: "Manage a local LLM hosting stack",
}

func init() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(menuCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.SilenceUsage = true
}
