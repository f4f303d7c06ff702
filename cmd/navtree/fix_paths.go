package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/gcovr"
)

var (
	fixRepo string

	fixPathsCmd = &cobra.Command{
		Use:   "fix-paths <input.json> <output.json>",
		Short: "Rewrite superproject paths in a gcovr JSON report",
		Long: `Remap file paths recorded relative to a Boost superproject checkout to
paths relative to the library repository:

  libs/<repo>/include/X  ->  include/X
  libs/<repo>/src/X      ->  src/X
  libs/<repo>/X          ->  X
  boost/<repo>/X         ->  include/boost/<repo>/X

Leading "../" components are dropped first. Other paths are kept.`,
		Example: `  navtree fix-paths gcovr.json gcovr-fixed.json --repo json`,
		Args:    cobra.ExactArgs(2),
		RunE:    runFixPaths,
	}
)

func init() {
	fixPathsCmd.Flags().StringVar(&fixRepo, "repo", "", "Library repository name (required)")
	fixPathsCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(fixPathsCmd)
}

func runFixPaths(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	input, output := args[0], args[1]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	fixed, count, found, err := gcovr.NewPathFixer(fixRepo).FixDocument(data)
	if err != nil {
		return err
	}
	if !found {
		logger.Warning("No 'files' key in %s, writing it unchanged", input)
	}

	if err := os.WriteFile(output, fixed, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Success("Fixed paths of %d files, wrote %s", count, output)
	return nil
}
