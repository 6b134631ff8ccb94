package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cindex/internal/codemap"
	"cindex/internal/store"
)

func newMapCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "map",
		Short:   "Assemble and print the code map as JSON",
		Example: "cindex map -d ./facts.db --commit abc123",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			st, err := store.NewSQLiteStore(dbPath(), cfg.Database.PoolSize)
			if err != nil {
				return fmt.Errorf("opening fact base: %w", err)
			}
			defer func() { _ = st.Close() }()

			m, err := codemap.New(st, logger).Assemble(cmd.Context(), commitScope())
			if err != nil {
				return err
			}

			// Render in sorted path order so output is stable.
			ordered := make([]*codemap.FileEntry, 0, len(m))
			for _, p := range m.Paths() {
				if file != "" && p != file {
					continue
				}
				ordered = append(ordered, m[p])
			}
			if file != "" && len(ordered) == 0 {
				return fmt.Errorf("file %q is not in the index", file)
			}

			data, err := json.MarshalIndent(ordered, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Restrict output to one indexed file path")
	return cmd
}
