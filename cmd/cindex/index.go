package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cindex/internal/extract"
	"cindex/internal/grammar"
	"cindex/internal/pipeline"
	"cindex/internal/store"
	"cindex/internal/track"
)

func newIndexCommand() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:     "index <path>",
		Short:   "Index a C source tree into the fact base",
		Args:    cobra.ExactArgs(1),
		Example: "cindex index -d ./facts.db --commit abc123 ./project",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			path := dbPath()
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("creating database directory: %w", err)
			}
			st, err := store.NewSQLiteStore(path, cfg.Database.PoolSize)
			if err != nil {
				return fmt.Errorf("opening fact base: %w", err)
			}
			defer func() { _ = st.Close() }()

			cache := grammar.NewCache()
			lang, err := cache.Load("c")
			if err != nil {
				return fmt.Errorf("loading grammar: %w", err)
			}
			provider, err := cache.Provider(lang)
			if err != nil {
				return fmt.Errorf("creating parser provider: %w", err)
			}

			tracker := track.New(st, logger)
			pipe := pipeline.New(st, tracker, extract.NewFileExtractor(provider), logger)

			if workers <= 0 {
				workers = cfg.Index.Workers
			}
			stats, err := pipe.Run(cmd.Context(), args[0], &pipeline.Options{
				Workers:  workers,
				Commit:   commitScope(),
				Suffixes: cfg.Index.Suffixes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Discovered: %d files\n", stats.Discovered)
			fmt.Fprintf(out, "Indexed:    %d\n", stats.Indexed)
			fmt.Fprintf(out, "Skipped:    %d\n", stats.Skipped)
			fmt.Fprintf(out, "Failed:     %d\n", stats.Failed)
			fmt.Fprintf(out, "Functions:  %d, Symbols: %d, Call edges: %d\n",
				stats.Functions, stats.Symbols, stats.Edges)
			fmt.Fprintf(out, "Duration:   %s\n", stats.Duration)
			if stats.Cancelled {
				fmt.Fprintln(out, "Run was cancelled; rerun to resume.")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker pool size (0 = number of CPUs)")
	return cmd
}
