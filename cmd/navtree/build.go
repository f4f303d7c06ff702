package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/gcovr"
	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

var (
	buildNormalize bool
	buildNoInject  bool
	buildWatch     bool
	buildDebounce  time.Duration

	buildCmd = &cobra.Command{
		Use:   "build <report-dir>",
		Short: "Build the navigation tree of a gcovr HTML report",
		Long: `Parse every index*.html page of a gcovr HTML report, assemble the
directory tree starting from index.html, write it to tree.json and embed it
into every page as window.GCOVR_TREE_DATA.

Pages that already carry tree data get it replaced. Pages without a </body>
tag are left untouched.`,
		Example: `  # Build and embed the raw tree
  navtree build build/coverage-html

  # Embed the canonical tree instead
  navtree build build/coverage-html --normalize

  # Rebuild whenever gcovr rewrites the index pages
  navtree build build/coverage-html --watch`,
		Args: cobra.ExactArgs(1),
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().BoolVar(&buildNormalize, "normalize", false, "Write and embed the canonical tree instead of the raw one")
	buildCmd.Flags().BoolVar(&buildNoInject, "no-inject", false, "Only write tree.json, leave the pages alone")
	buildCmd.Flags().BoolVar(&buildWatch, "watch", false, "Keep running and rebuild when index pages change")
	buildCmd.Flags().DurationVar(&buildDebounce, "debounce", 500*time.Millisecond, "Quiet period before a watched rebuild")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	reportDir := args[0]
	if err := buildReport(logger, reportDir); err != nil {
		return err
	}
	if !buildWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Progress("Watching %s for changes (Ctrl-C to stop)", reportDir)
	return gcovr.Watch(ctx, logger, reportDir, buildDebounce, func() error {
		return buildReport(logger, reportDir)
	})
}

// buildReport builds, writes and embeds the tree of one report directory.
func buildReport(logger *log.Logger, reportDir string) error {
	logger.Progress("Building navigation tree for %s", reportDir)

	builder := gcovr.NewBuilder(logger, reportDir)
	nodes, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	logger.Info("Parsed %d index pages, %d nodes", builder.Pages(), tree.Count(nodes))

	if buildNormalize {
		nodes = tree.Normalize(nodes)
		logger.Info("Canonical tree: %d nodes", tree.Count(nodes))
	}

	path, err := gcovr.WriteTreeFile(reportDir, nodes)
	if err != nil {
		return err
	}
	logger.Success("Wrote %s", path)

	if buildNoInject {
		return nil
	}

	count, err := gcovr.Inject(logger, reportDir, nodes)
	if err != nil {
		return fmt.Errorf("inject tree data: %w", err)
	}
	logger.Success("Embedded tree data into %d pages", count)
	return nil
}
