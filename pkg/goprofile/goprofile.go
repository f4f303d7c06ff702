// Package goprofile turns Go coverage profiles into a raw navigation tree.
// File nodes carry their module-relative path as a multi-segment name and
// every directory is listed once under its full relative path, so the tree
// only becomes hierarchical after tree.Normalize.
package goprofile

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/cover"

	"github.com/jupierce/coverage-navtree/pkg/gcovr"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

// Stats is the statement coverage of one file or directory.
type Stats struct {
	Total   int
	Covered int
}

// Percent returns covered statements as a percentage of all statements.
func (s Stats) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Covered) / float64(s.Total) * 100
}

func (s *Stats) add(o Stats) {
	s.Total += o.Total
	s.Covered += o.Covered
}

// FileStats sums the statements of a profile's blocks.
func FileStats(p *cover.Profile) Stats {
	var s Stats
	for _, block := range p.Blocks {
		s.Total += block.NumStmt
		if block.Count > 0 {
			s.Covered += block.NumStmt
		}
	}
	return s
}

// RelativePath strips the module path prefix from a profile file name. Only
// whole path elements match: module a/b does not strip a/bc/x.go.
func RelativePath(fileName, moduleName string) string {
	moduleName = strings.TrimSuffix(moduleName, "/")
	if moduleName == "" {
		return fileName
	}
	if rel, ok := strings.CutPrefix(fileName, moduleName+"/"); ok {
		return rel
	}
	return fileName
}

// PageLink is the report page name for a relative file path.
func PageLink(rel string) string {
	return strings.ReplaceAll(rel, "/", "_") + ".html"
}

// Load parses the profile at profilePath and builds the raw tree.
func Load(profilePath, moduleName string) ([]*tree.Node, error) {
	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return Build(profiles, moduleName), nil
}

// Build returns directory nodes (sorted by path) followed by file nodes
// (sorted by path). Profiles that share a file name are merged.
func Build(profiles []*cover.Profile, moduleName string) []*tree.Node {
	files := make(map[string]Stats)
	dirs := make(map[string]Stats)

	for _, p := range profiles {
		rel := RelativePath(p.FileName, moduleName)
		if rel == "" {
			continue
		}
		stats := FileStats(p)

		fs := files[rel]
		fs.add(stats)
		files[rel] = fs

		for d := path.Dir(rel); d != "." && d != "/" && d != ""; d = path.Dir(d) {
			ds := dirs[d]
			ds.add(stats)
			dirs[d] = ds
		}
	}

	nodes := make([]*tree.Node, 0, len(dirs)+len(files))
	for _, d := range sortedKeys(dirs) {
		nodes = append(nodes, statsNode(d, true, "", dirs[d]))
	}
	for _, f := range sortedKeys(files) {
		nodes = append(nodes, statsNode(f, false, PageLink(f), files[f]))
	}
	return nodes
}

func statsNode(name string, isDir bool, link string, s Stats) *tree.Node {
	pct := strconv.FormatFloat(s.Percent(), 'f', 1, 64)
	coverage, _ := json.Marshal(pct)
	return &tree.Node{
		Name:          name,
		IsDirectory:   isDir,
		Link:          link,
		Coverage:      coverage,
		CoverageClass: gcovr.CoverageClass(pct),
	}
}

func sortedKeys(m map[string]Stats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
