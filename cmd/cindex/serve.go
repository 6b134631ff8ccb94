package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cindex/internal/mcp"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the MCP server on stdio",
		Example: "cindex serve -d ./facts.db",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the MCP protocol; everything else goes to
			// stderr.
			logger := newLogger()
			logger.Info("starting MCP server", "version", version, "db", dbPath())

			srv, err := mcp.NewServer(dbPath(), cfg.Database.PoolSize, logger)
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				logger.Info("MCP server ready, listening on stdio")
				errChan <- srv.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				logger.Info("shutting down", "signal", sig)
				cancel()
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}
