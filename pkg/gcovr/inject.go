package gcovr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

// TreeFile is the name of the standalone tree data file next to the pages.
const TreeFile = "tree.json"

var treeScriptPattern = regexp.MustCompile(`<script>window\.GCOVR_TREE_DATA=(.*?);</script>`)

// TreeScript returns the <script> element that embeds nodes into a page.
// json.Marshal escapes '<' and '>', so the data cannot close the element.
func TreeScript(nodes []*tree.Node) ([]byte, error) {
	if nodes == nil {
		nodes = []*tree.Node{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("encode tree data: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("<script>window.GCOVR_TREE_DATA=")
	buf.Write(data)
	buf.WriteString(";</script>")
	return buf.Bytes(), nil
}

// ExtractTreeData returns the JSON embedded in a page, if any.
func ExtractTreeData(page []byte) ([]byte, bool) {
	m := treeScriptPattern.FindSubmatch(page)
	if m == nil {
		return nil, false
	}
	return m[1], true
}

// InjectPage embeds script into one page: an existing tree script is
// replaced, otherwise the script goes right before </body>. The second
// result is false when the page is left unchanged.
func InjectPage(page, script []byte) ([]byte, bool) {
	var out []byte
	switch {
	case treeScriptPattern.Match(page):
		out = treeScriptPattern.ReplaceAllLiteral(page, script)
	case bytes.Contains(page, []byte("</body>")):
		replacement := append(append([]byte{}, script...), []byte("\n</body>")...)
		out = bytes.Replace(page, []byte("</body>"), replacement, 1)
	default:
		return page, false
	}
	return out, !bytes.Equal(out, page)
}

// Inject embeds nodes into every *.html page in dir and returns how many
// pages were rewritten. Pages that cannot be read or written are skipped
// with a warning.
func Inject(logger *log.Logger, dir string, nodes []*tree.Node) (int, error) {
	script, err := TreeScript(nodes)
	if err != nil {
		return 0, err
	}

	pages, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return 0, fmt.Errorf("list pages: %w", err)
	}

	count := 0
	for _, path := range pages {
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warning("Could not inject into %s: %v", path, err)
			continue
		}
		updated, changed := InjectPage(content, script)
		if !changed {
			logger.Trace("Unchanged: %s", path)
			continue
		}
		if err := os.WriteFile(path, updated, 0644); err != nil {
			logger.Warning("Could not inject into %s: %v", path, err)
			continue
		}
		count++
	}
	return count, nil
}

// WriteTreeFile writes nodes as indented JSON to dir/tree.json.
func WriteTreeFile(dir string, nodes []*tree.Node) (string, error) {
	data, err := tree.Marshal(nodes)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, TreeFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write tree file: %w", err)
	}
	return path, nil
}
