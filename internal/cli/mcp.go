package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	corridormcp "github.com/ppiankov/corridorwatch/internal/mcp"
	"github.com/ppiankov/corridorwatch/internal/server"
)

var mcpAuditLog string

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpAuditLog, "audit-log", "", "Path to audit log JSONL file (overrides config)")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs corridorwatch as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes advisory tools: corridor_envelope, corridor_check_action,\n" +
		"corridor_access, corridor_list.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := openLocal(mcpAuditLog)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	mcpBanner(os.Stderr, srv)
	return corridormcp.New(srv, version).Run(ctx)
}

func mcpBanner(w io.Writer, srv *server.Server) {
	fmt.Fprintln(w, "corridorwatch MCP server running on stdio")
	fmt.Fprintf(w, "Config: %s\n", srv.ConfigID())
	fmt.Fprintf(w, "Corridors: %d\n", len(srv.Corridors().Corridors))
	fmt.Fprintln(w)
}
