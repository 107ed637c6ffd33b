// Command recctl drives the agentd recording service over gRPC.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentsea/agentd/internal/rpc"
)

var (
	addr    string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "recctl",
	Short:        "Control agentd recording sessions over gRPC",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", envOr("AGENTD_GRPC_ADDR", "localhost:9090"), "agentd gRPC address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-call timeout")

	startCmd.Flags().StringP("description", "d", "", "session description")
	recordCmd.Flags().String("session", "", "record into this session only")
	recordCmd.Flags().String("payload", "", "event payload as a JSON object")

	rootCmd.AddCommand(startCmd, stopCmd, getCmd, listCmd, activeCmd, actionsCmd, eventCmd, recordCmd, deleteEventCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a recording session",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		id, start, err := c.StartSession(ctx, desc)
		if err != nil {
			return err
		}
		cmd.Printf("%s\t%s\n", id, start.Format(time.RFC3339))
		return nil
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop SESSION",
	Short: "Stop a recording session",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		rec, err := c.StopSession(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	}),
}

var getCmd = &cobra.Command{
	Use:   "get SESSION",
	Short: "Show a session and its event summary",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		rec, err := c.GetSession(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every session the daemon holds",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		recs, err := c.ListSessions(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, recs)
	}),
}

var actionsCmd = &cobra.Command{
	Use:   "actions SESSION",
	Short: "List the action events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		actions, err := c.ListSessionActions(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, actions)
	}),
}

var eventCmd = &cobra.Command{
	Use:   "event SESSION EVENT",
	Short: "Show one event of a session",
	Args:  cobra.ExactArgs(2),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		eid, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		ev, err := c.GetEvent(ctx, args[0], eid)
		if err != nil {
			return err
		}
		return printJSON(cmd, ev)
	}),
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List active session ids",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		ids, err := c.ListActiveSessions(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			cmd.Println(id)
		}
		return nil
	}),
}

var recordCmd = &cobra.Command{
	Use:   "record KIND",
	Short: "Record an event in the active sessions",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		raw, _ := cmd.Flags().GetString("payload")
		var payload map[string]any
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				return fmt.Errorf("payload: %w", err)
			}
		}
		d, err := c.RecordEvent(ctx, session, args[0], payload)
		if err != nil {
			return err
		}
		cmd.Printf("delivered=%d skipped=%d timestamp=%s\n", d.Delivered, d.Skipped, d.Timestamp.Format(time.RFC3339Nano))
		return nil
	}),
}

var deleteEventCmd = &cobra.Command{
	Use:   "delete-event SESSION EVENT",
	Short: "Delete one event from a session",
	Args:  cobra.ExactArgs(2),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		eid, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		if err := c.DeleteEvent(ctx, args[0], eid); err != nil {
			return err
		}
		cmd.Printf("deleted %s/%d\n", args[0], eid)
		return nil
	}),
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error

// withClient dials addr for the duration of one command.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		conn, err := rpc.Dial(addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return fn(ctx, cmd, rpc.NewClient(conn), args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
