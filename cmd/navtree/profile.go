package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/goprofile"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

var (
	profileModule    string
	profileOutput    string
	profileNormalize bool

	profileCmd = &cobra.Command{
		Use:   "profile <coverage.out>",
		Short: "Build a raw tree from a Go coverage profile",
		Long: `Turn a Go coverage profile into raw tree data. Every file becomes a node
named by its module-relative path and every directory a node named by its full
path with aggregated statement coverage. The result is the same shape gcovr
produces and can be fed to show, breadcrumb and compile via --url.`,
		Example: `  # Raw tree on stdout
  navtree profile coverage.out --module github.com/example/project

  # Canonical tree into a file
  navtree profile coverage.out --module github.com/example/project --normalize -o tree.json`,
		Args: cobra.ExactArgs(1),
		RunE: runProfile,
	}
)

func init() {
	profileCmd.Flags().StringVar(&profileModule, "module", "", "Module path to strip from file names")
	profileCmd.Flags().StringVarP(&profileOutput, "output", "o", "", "Output file (stdout when empty)")
	profileCmd.Flags().BoolVar(&profileNormalize, "normalize", false, "Write the canonical tree instead of the raw one")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	nodes, err := goprofile.Load(args[0], profileModule)
	if err != nil {
		return err
	}
	logger.Debug("Built %d raw nodes from %s", len(nodes), args[0])

	if profileNormalize {
		nodes = tree.Normalize(nodes)
	}

	data, err := tree.Marshal(nodes)
	if err != nil {
		return err
	}

	if profileOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(profileOutput, data, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Success("Wrote %s (%d nodes)", profileOutput, tree.Count(nodes))
	return nil
}
