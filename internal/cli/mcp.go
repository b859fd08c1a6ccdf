package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	sentinelmcp "github.com/ppiankov/sentinel/internal/mcp"
)

var (
	mcpActor string
	mcpStore bool
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpActor, "actor", "mcp", "Agent identity recorded in the audit log")
	mcpCmd.Flags().BoolVar(&mcpStore, "store", true, "Open the assessment store so agents can save and review assessments")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs sentinel as an MCP (Model Context Protocol) server over stdio.\nExposes tools: check, report, constraints, assess, score, transition, list.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: mcpStore})
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := sentinelmcp.New(rt.svc, sentinelmcp.Config{Actor: mcpActor, Version: version})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(os.Stderr, "sentinel MCP server running on stdio")
	fmt.Fprintln(os.Stderr)
	return srv.Run(ctx)
}
