package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "agentd",
	Short:         "Desktop control daemon with session recording",
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if present (ignored if missing)
		_ = godotenv.Load()
	},
}
