package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the model response cache",
	}

	open := func(cmd *cobra.Command) (*cache.Manager, error) {
		cfg := config.Load()
		logger := logging.NewJSONLoggerTo(os.Stderr, "docintel", cfg.LogLevel)
		// Opening prunes expired entries already.
		return bootstrap.NewCache(cmd.Context(), cfg, cache.Options{Enabled: true, TTL: cfg.CacheTTL, Logger: logger})
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			stats, err := m.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nTTL:     %s\n", stats.Entries, m.TTL())
			return nil
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired and malformed cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			removed, err := m.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired entries.\n", removed)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := m.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			return nil
		},
	}

	cmd.AddCommand(statsCmd, pruneCmd, clearCmd)
	return cmd
}
