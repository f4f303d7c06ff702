package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/source"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

// Tree source flags shared by show, breadcrumb, validate and compile
var (
	pagePath     string
	treeURL      string
	fetchTimeout int
)

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pagePath, "page", "", "Report page to read embedded tree data from")
	cmd.Flags().StringVar(&treeURL, "url", "", "tree.json location, file path or http(s) URL (defaults to tree.json next to --page)")
	cmd.Flags().IntVar(&fetchTimeout, "timeout", 30, "Timeout in seconds for fetching tree data")
}

// loadCanonical loads the raw tree from the configured source and normalizes
// it. When no data is available it returns source.ErrNoData and nothing is
// normalized.
func loadCanonical(logger *log.Logger) ([]*tree.Node, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(fetchTimeout)*time.Second)
	defer cancel()

	data, err := source.Load(ctx, logger, source.Options{PagePath: pagePath, URL: treeURL})
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded %d raw nodes (%s)", tree.Count(data.Nodes), data.Origin)

	canonical := tree.Normalize(data.Nodes)
	logger.Debug("Normalized to %d nodes", tree.Count(canonical))
	return canonical, nil
}

// sourceLabel names the loaded tree for display and bookkeeping.
func sourceLabel() string {
	switch {
	case pagePath != "":
		return filepath.Base(pagePath)
	case treeURL != "":
		return treeURL
	default:
		return "tree"
	}
}

// noData reports whether err means the static navigation stays in place.
func noData(logger *log.Logger, err error) bool {
	if errors.Is(err, source.ErrNoData) {
		logger.Warning("No tree data available, keeping static navigation")
		return true
	}
	return false
}

func requireSource() error {
	if pagePath == "" && treeURL == "" {
		return fmt.Errorf("either --page or --url must be specified")
	}
	return nil
}
