package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/document-intelligence/internal/adapters/mcp"
	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.NewJSONLoggerTo(os.Stderr, "docintel-mcp", cfg.LogLevel)
			app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{Service: "mcp", Logger: logger})
			if err != nil {
				return err
			}
			defer app.Close()

			s := mcpadapter.NewServer("docintel", version, mcpadapter.NewTools(app.Documents))
			return server.ServeStdio(s)
		},
	}
}
