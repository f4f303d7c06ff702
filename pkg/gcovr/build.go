package gcovr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

// RootPage is the report's top-level directory listing.
const RootPage = "index.html"

// Coverage classes used by the sidebar stylesheet.
const (
	ClassHigh    = "coverage-high"
	ClassMedium  = "coverage-medium"
	ClassLow     = "coverage-low"
	ClassUnknown = "coverage-unknown"
)

// CoverageClass maps a percentage string to its styling class.
func CoverageClass(coverage string) string {
	pct, err := strconv.ParseFloat(strings.TrimSpace(coverage), 64)
	if err != nil {
		return ClassUnknown
	}
	switch {
	case pct >= 90:
		return ClassHigh
	case pct >= 75:
		return ClassMedium
	default:
		return ClassLow
	}
}

// CleanName strips leading "./" and "../" and keeps the last path segment.
// The raw name is returned when nothing is left.
func CleanName(raw string) string {
	cleaned := raw
	for {
		if strings.HasPrefix(cleaned, "../") {
			cleaned = cleaned[3:]
		} else if strings.HasPrefix(cleaned, "./") {
			cleaned = cleaned[2:]
		} else {
			break
		}
	}
	if i := strings.LastIndex(cleaned, "/"); i >= 0 {
		cleaned = cleaned[i+1:]
	}
	if cleaned == "" {
		return raw
	}
	return cleaned
}

// Builder assembles the raw navigation tree of a gcovr report directory.
type Builder struct {
	logger *log.Logger
	dir    string
	pages  map[string][]Entry
}

// NewBuilder creates a builder for the report in dir.
func NewBuilder(logger *log.Logger, dir string) *Builder {
	return &Builder{
		logger: logger,
		dir:    dir,
		pages:  make(map[string][]Entry),
	}
}

// Build parses every index*.html page and walks the directory links from
// index.html down. A page that fails to parse contributes no entries.
func (b *Builder) Build() ([]*tree.Node, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "index*.html"))
	if err != nil {
		return nil, fmt.Errorf("list index pages: %w", err)
	}

	for _, path := range matches {
		entries, err := parseFile(path)
		if err != nil {
			b.logger.Warning("Could not parse %s: %v", path, err)
		}
		b.pages[filepath.Base(path)] = entries
		b.logger.Debug("Parsed %s: %d entries", filepath.Base(path), len(entries))
	}

	if _, ok := b.pages[RootPage]; !ok {
		b.logger.Warning("No %s in %s", RootPage, b.dir)
	}

	return b.buildFrom(RootPage, map[string]bool{}), nil
}

// Pages reports how many index pages were parsed.
func (b *Builder) Pages() int {
	return len(b.pages)
}

func (b *Builder) buildFrom(page string, visited map[string]bool) []*tree.Node {
	if visited[page] {
		return []*tree.Node{}
	}
	visited[page] = true

	entries := b.pages[page]
	nodes := make([]*tree.Node, 0, len(entries))

	for _, entry := range entries {
		name := CleanName(entry.Name)
		isDir := entry.IsDir || !strings.Contains(name, ".")
		coverage, _ := json.Marshal(entry.Coverage)

		node := &tree.Node{
			Name:          name,
			IsDirectory:   isDir,
			Link:          entry.Link,
			Coverage:      coverage,
			CoverageClass: CoverageClass(entry.Coverage),
		}

		if _, ok := b.pages[entry.Link]; isDir && entry.Link != "" && ok {
			node.Children = b.buildFrom(entry.Link, copyVisited(visited))
		}

		nodes = append(nodes, node)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsDirectory != nodes[j].IsDirectory {
			return nodes[i].IsDirectory
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	return nodes
}

func copyVisited(visited map[string]bool) map[string]bool {
	out := make(map[string]bool, len(visited))
	for k, v := range visited {
		out[k] = v
	}
	return out
}

func parseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParsePage(f)
}
