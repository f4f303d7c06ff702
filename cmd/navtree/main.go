package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/log"
)

var (
	// Global flags
	verbosity string
	logDir    string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "navtree",
		Short: "Build and inspect the navigation tree of a coverage report",
		Long: `navtree builds the file/directory navigation tree of a static coverage
report, normalizes it into a canonical tree and resolves breadcrumb paths
through it.

Typical flow:

  1. build       Parse a gcovr HTML report and embed the tree into its pages.
  2. show        Print the canonical tree.
  3. breadcrumb  Resolve the ancestor path of a page.
  4. compile     Store the canonical tree in SQLite.
  5. bigquery    Export a stored tree to BigQuery.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "Log verbosity (error, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for log files (no log file when empty)")
}

// createLogger creates a logger from the global flags
func createLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(verbosity)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(level, logDir)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
