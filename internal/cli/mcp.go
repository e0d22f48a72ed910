package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	rsmcp "github.com/valter-silva-au/reposyncd/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the reposyncd MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reposyncd MCP server on stdio",
	Long: `Start the reposyncd MCP server on stdio transport.

The server exposes sync functionality as MCP tools that AI coding assistants
can call: sync_repository, set_project_path, get_sync_status,
get_sync_history, get_prior_conflicts, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("lifecycle controller not initialized")
		}

		srv := rsmcp.NewServer(Controller, AuditLog, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		// Tools that trigger cycles need a running engine holding a
		// session open for the lifetime of the server.
		if err := Controller.Start(ctx); err != nil {
			return fmt.Errorf("starting sync engine: %w", err)
		}
		defer func() { _ = Controller.Stop() }()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
