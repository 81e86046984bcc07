package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [page]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Opens the document and exposes it as an MCP server, so agents can render
pages, navigate, patch the context and fire signals as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport %q: supported are stdio and sse", transport)
		}

		fragment := ""
		if len(args) == 1 {
			fragment = domain.PageFragment(args[0])
		}
		app, err := openApp(cmd.Context(), cfg, logger, nil,
			arbor.WithLifecycleHooks(observability.LogHooks(logger)),
		)
		if err != nil {
			return err
		}
		defer closeQuietly(app)
		if _, err := app.Navigate(cmd.Context(), fragment); err != nil {
			return err
		}

		srv := mcp.NewServer(app, mcp.WithVersion(arbor.Version), mcp.WithLogger(logger))

		if transport == "stdio" {
			// Stdout carries JSON-RPC.
			log.SetOutput(os.Stderr)
			logger.Info("Starting arbor MCP server (stdio)")
			return srv.ServeStdio()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("Starting arbor MCP server (SSE)", "port", port)
		if err := srv.ServeSSE(ctx, port); err != nil {
			return err
		}
		logger.Info("MCP server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
