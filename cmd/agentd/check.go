package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentsea/agentd/internal/config"
	"github.com/agentsea/agentd/internal/health"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the recordings dir and desktop tools are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFlags(cmd.Flags())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		st := health.CheckAll(ctx, cfg)
		cmd.Print(st.String())
		if !st.OK {
			return errors.New("health check failed")
		}
		return nil
	},
}

func init() {
	config.RegisterFlags(checkCmd.Flags())
	rootCmd.AddCommand(checkCmd)
}
