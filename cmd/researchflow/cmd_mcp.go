package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/researchflow/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the research tool over MCP stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the "research" tool.
Logs are written to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := slog.Default()
	a, err := buildApp(s, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcpserver.NewServer(a.workflow, version, logger).Run(cmd.Context())
}
