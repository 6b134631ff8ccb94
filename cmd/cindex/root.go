package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"cindex/internal/config"
	"cindex/internal/store"
)

var (
	cfg        *config.Config
	flagDB     string
	flagCfg    string
	flagCommit string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cindex",
	Short: "Structural indexer for C codebases",
	Long: `cindex parses C source trees with tree-sitter, stores the extracted
functions, structs, typedefs, globals and call edges in a SQLite fact base,
and assembles per-file code maps with caller/callee references.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Flags are parsed by now, so --config is honored.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	rootCmd.AddCommand(
		newIndexCommand(),
		newMapCommand(),
		newServeCommand(),
		newVersionCommand(),
	)
	return rootCmd.Execute()
}

func loadConfig() {
	var err error
	cfg, err = config.Load(flagCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDB, "db", "d", "", "Database path (default: ~/.cindex/index.db or $CINDEX_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagCfg, "config", "", "Config file (default: ./cindex.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagCommit, "commit", "", "Commit scope for processing status (default: HEAD)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger builds the process logger. Output goes to stderr so stdout
// stays clean for command output and the MCP protocol.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func dbPath() string {
	if flagDB != "" {
		return flagDB
	}
	return cfg.Database.Path
}

func commitScope() string {
	if flagCommit != "" {
		return flagCommit
	}
	return cfg.Index.Commit
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cindex\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Time: %s\n", buildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Mode: %s\n", store.BuildMode)
			fmt.Fprintf(cmd.OutOrStdout(), "SQLite Driver: %s\n", store.DriverName)
		},
	}
}
