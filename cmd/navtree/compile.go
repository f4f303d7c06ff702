package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/store"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

var (
	compileDB string

	compileCmd = &cobra.Command{
		Use:   "compile",
		Short: "Store the canonical tree in an SQLite database",
		Long: `Load and normalize the tree data of a report and store it in SQLite,
one row per node keyed by its tree path. The previous tree in the database is
replaced in a single transaction. The stored tree feeds 'show --db' and
'bigquery ingest'.`,
		Example: `  navtree compile --page build/coverage-html/index.html --db coverage.db`,
		RunE:    runCompile,
	}
)

func init() {
	addSourceFlags(compileCmd)
	compileCmd.Flags().StringVar(&compileDB, "db", "coverage.db", "SQLite database path")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	if err := requireSource(); err != nil {
		return err
	}

	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	nodes, err := loadCanonical(logger)
	if noData(logger, err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := tree.Check(nodes); err != nil {
		logger.Warning("Canonical tree has structural issues: %v", err)
	}

	s, err := store.Open(logger, compileDB)
	if err != nil {
		return err
	}
	defer s.Close()

	written, err := s.SaveTree(cmd.Context(), nodes, sourceLabel())
	if err != nil {
		return fmt.Errorf("save tree: %w", err)
	}
	logger.Success("Stored %d nodes in %s", written, compileDB)
	return nil
}
