package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/store"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

var (
	showFormat string
	showDB     string
	showColor  string

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the canonical navigation tree",
		Long: `Load the tree data of a report, normalize it and print it as an
indented text tree or as JSON. With --db the tree stored by 'compile' is
printed instead.`,
		Example: `  # Print the tree embedded in a page
  navtree show --page build/coverage-html/index.html

  # Print the canonical tree as JSON
  navtree show --url https://ci.example.com/coverage/tree.json --format json

  # Print a compiled tree
  navtree show --db coverage.db`,
		RunE: runShow,
	}

	breadcrumbLink string

	breadcrumbCmd = &cobra.Command{
		Use:   "breadcrumb",
		Short: "Resolve the breadcrumb trail of a page",
		Long: `Resolve the path from the tree root to the node whose link is --link and
print its breadcrumb trail and display path. A link that is not in the tree
is reported and is not an error.`,
		Example: `  navtree breadcrumb --page build/coverage-html/index.html --link index.src_parser.cpp.html`,
		RunE:    runBreadcrumb,
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check that the canonical tree is well formed",
		Long: `Normalize the tree data of a report and check the canonical tree:
single-segment names, no directory holding a same-named directory, no
pass-through directory chains and unique sibling names.`,
		RunE: runValidate,
	}
)

func init() {
	addSourceFlags(showCmd)
	showCmd.Flags().StringVar(&showFormat, "format", "text", "Output format (text, json)")
	showCmd.Flags().StringVar(&showDB, "db", "", "Read the tree from a compiled database")
	showCmd.Flags().StringVar(&showColor, "color", "auto", "Color coverage values in text output (auto, always, never)")
	rootCmd.AddCommand(showCmd)

	addSourceFlags(breadcrumbCmd)
	breadcrumbCmd.Flags().StringVar(&breadcrumbLink, "link", "", "Link of the current page (required)")
	breadcrumbCmd.MarkFlagRequired("link")
	rootCmd.AddCommand(breadcrumbCmd)

	addSourceFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if showFormat != "text" && showFormat != "json" {
		return fmt.Errorf("invalid --format %q (valid: text, json)", showFormat)
	}

	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	var (
		nodes []*tree.Node
		label string
	)
	if showDB != "" {
		s, err := store.OpenReadOnly(logger, showDB)
		if err != nil {
			return err
		}
		defer s.Close()

		if nodes, err = s.LoadTree(cmd.Context()); err != nil {
			return fmt.Errorf("load tree: %w", err)
		}
		label = showDB
		if snap, err := s.Snapshot(cmd.Context()); err == nil && snap != nil {
			label = snap.Source
		}
	} else {
		if err := requireSource(); err != nil {
			return err
		}
		nodes, err = loadCanonical(logger)
		if noData(logger, err) {
			return nil
		}
		if err != nil {
			return err
		}
		label = sourceLabel()
	}

	out := cmd.OutOrStdout()
	if showFormat == "json" {
		data, err := tree.Marshal(nodes)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	renderer, err := newRenderer(out, showColor)
	if err != nil {
		return err
	}
	fmt.Fprint(out, tree.RenderFunc(label, nodes, styledLabel(renderer)))
	return nil
}

// formatCrumbs renders a breadcrumb trail; the current segment is bracketed.
func formatCrumbs(crumbs []tree.Crumb) string {
	parts := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		if c.Current {
			parts = append(parts, "["+c.Name+"]")
			continue
		}
		parts = append(parts, c.Name)
	}
	return strings.Join(parts, " / ")
}

func runBreadcrumb(cmd *cobra.Command, args []string) error {
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

	loc, err := tree.Locate(nodes, breadcrumbLink)
	if err != nil {
		logger.Warning("%v, no breadcrumb to show", err)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, formatCrumbs(loc.Crumbs))
	fmt.Fprintln(out, loc.DisplayPath)
	for _, c := range loc.Crumbs {
		if c.Navigable() {
			logger.Debug("  %s -> %s", c.Name, c.Link)
		}
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("canonical tree is not well formed:\n%w", err)
	}
	logger.Success("Canonical tree is well formed (%d nodes)", tree.Count(nodes))
	return nil
}
