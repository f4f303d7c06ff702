package gcovr

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

func row(class, name, coverage, href, percent string) string {
	var b strings.Builder
	b.WriteString(`<div class="` + class + `" data-filename="` + name + `"`)
	if coverage != "" {
		b.WriteString(` data-coverage="` + coverage + `"`)
	}
	b.WriteString(`>`)
	b.WriteString(`<div class="name">`)
	if href != "" {
		b.WriteString(`<a href="` + href + `">` + name + `</a>`)
	}
	b.WriteString(`</div>`)
	if percent != "" {
		b.WriteString(`<span class="coverage-percent"> ` + percent + ` </span>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func page(rows ...string) string {
	return "<html><head><title>report</title></head><body><div class=\"listing\">" +
		strings.Join(rows, "\n") + "</div></body></html>"
}

func writePages(t *testing.T, pages map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestParsePage(t *testing.T) {
	html := page(
		row("file-row directory", "src", "80.0", "index.src.html", "85.5%"),
		row("file-row", "main.cpp", "", "main.cpp.html", ""),
		row("file-row", "", "10", "ignored.html", ""),
		row("other-row", "skip.cpp", "10", "skip.html", ""),
	)

	entries, err := ParsePage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}

	want := []Entry{
		{Name: "src", Coverage: "85.5", IsDir: true, Link: "index.src.html"},
		{Name: "main.cpp", Coverage: "0", Link: "main.cpp.html"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}
}

func TestParsePageNoRows(t *testing.T) {
	entries, err := ParsePage(strings.NewReader("<html><body><p>empty</p></body></html>"))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"main.cpp":           "main.cpp",
		"./src/a.cpp":        "a.cpp",
		"../../include/b.h":  "b.h",
		"./../lib":           "lib",
		"deep/nested/path/x": "x",
		"src/":               "src/",
		"":                   "",
	}
	for in, want := range tests {
		if got := CleanName(in); got != want {
			t.Errorf("CleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoverageClass(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100", ClassHigh},
		{"90.0", ClassHigh},
		{"89.9", ClassMedium},
		{"75", ClassMedium},
		{"74.99", ClassLow},
		{"0", ClassLow},
		{" 95 ", ClassHigh},
		{"n/a", ClassUnknown},
		{"", ClassUnknown},
	}
	for _, tt := range tests {
		if got := CoverageClass(tt.in); got != tt.want {
			t.Errorf("CoverageClass(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuilderBuild(t *testing.T) {
	dir := writePages(t, map[string]string{
		"index.html": page(
			row("file-row", "Zeta.cpp", "50", "zeta.html", ""),
			row("file-row", "./alpha.cpp", "95", "alpha.html", ""),
			row("file-row directory", "src", "80", "index.src.html", ""),
			row("file-row", "include", "60", "index.include.html", ""),
		),
		"index.src.html": page(
			row("file-row", "src/b.cpp", "100", "b.html", ""),
			row("file-row", "src/A.cpp", "70", "a.html", ""),
		),
	})

	nodes, err := NewBuilder(log.Discard(), dir).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	wantNames := []string{"include", "src", "alpha.cpp", "Zeta.cpp"}
	if !reflect.DeepEqual(names, wantNames) {
		t.Fatalf("top-level order = %v, want %v", names, wantNames)
	}

	include := nodes[0]
	if !include.IsDirectory {
		t.Fatalf("dotless name should be a directory")
	}
	if len(include.Children) != 0 {
		t.Fatalf("unparsed page should give no children, got %d", len(include.Children))
	}

	src := nodes[1]
	if got := []string{src.Children[0].Name, src.Children[1].Name}; !reflect.DeepEqual(got, []string{"A.cpp", "b.cpp"}) {
		t.Fatalf("src children = %v", got)
	}
	if string(src.Coverage) != `"80"` || src.CoverageClass != ClassMedium {
		t.Fatalf("src coverage = %s %s", src.Coverage, src.CoverageClass)
	}
	if src.Children[1].CoverageClass != ClassHigh {
		t.Fatalf("b.cpp class = %s", src.Children[1].CoverageClass)
	}
}

func TestBuilderStopsOnCycles(t *testing.T) {
	dir := writePages(t, map[string]string{
		"index.html": page(
			row("file-row directory", "loop", "10", "index.loop.html", ""),
		),
		"index.loop.html": page(
			row("file-row directory", "loop", "10", "index.loop.html", ""),
			row("file-row directory", "up", "10", "index.html", ""),
		),
	})

	nodes, err := NewBuilder(log.Discard(), dir).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// loop > [loop, up], both revisits contribute empty directories.
	if got := tree.Count(nodes); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
}

func TestBuilderMissingRoot(t *testing.T) {
	nodes, err := NewBuilder(log.Discard(), t.TempDir()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected empty tree, got %d nodes", len(nodes))
	}
}

func TestTreeScriptEscapesMarkup(t *testing.T) {
	script, err := TreeScript([]*tree.Node{{Name: "</script>.cpp"}})
	if err != nil {
		t.Fatalf("TreeScript: %v", err)
	}
	if bytes.Count(script, []byte("</script>")) != 1 {
		t.Fatalf("data must not close the element: %s", script)
	}

	data, ok := ExtractTreeData(script)
	if !ok {
		t.Fatalf("ExtractTreeData found nothing")
	}
	nodes, err := tree.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if nodes[0].Name != "</script>.cpp" {
		t.Fatalf("name = %q", nodes[0].Name)
	}
}

func TestInjectPage(t *testing.T) {
	script := []byte(`<script>window.GCOVR_TREE_DATA=[];</script>`)

	t.Run("before body", func(t *testing.T) {
		out, changed := InjectPage([]byte("<body><p>x</p></body></html>"), script)
		if !changed {
			t.Fatalf("expected change")
		}
		want := "<body><p>x</p><script>window.GCOVR_TREE_DATA=[];</script>\n</body></html>"
		if string(out) != want {
			t.Fatalf("got %q", out)
		}
	})

	t.Run("replaces existing", func(t *testing.T) {
		in := `<body><script>window.GCOVR_TREE_DATA=[{"name":"old","isDirectory":false}];</script></body>`
		out, changed := InjectPage([]byte(in), script)
		if !changed {
			t.Fatalf("expected change")
		}
		if string(out) != `<body><script>window.GCOVR_TREE_DATA=[];</script></body>` {
			t.Fatalf("got %q", out)
		}
	})

	t.Run("already current", func(t *testing.T) {
		in := []byte(`<body><script>window.GCOVR_TREE_DATA=[];</script></body>`)
		if _, changed := InjectPage(in, script); changed {
			t.Fatalf("identical script should not count as a change")
		}
	})

	t.Run("no body", func(t *testing.T) {
		in := []byte("<p>fragment</p>")
		out, changed := InjectPage(in, script)
		if changed || !bytes.Equal(out, in) {
			t.Fatalf("fragment should be untouched")
		}
	})
}

func TestInjectAndWriteTreeFile(t *testing.T) {
	dir := writePages(t, map[string]string{
		"index.html":    "<html><body>root</body></html>",
		"a.cpp.html":    "<html><body>a</body></html>",
		"fragment.html": "<p>no body</p>",
		"notes.txt":     "</body>",
	})
	nodes := []*tree.Node{{Name: "a.cpp", Link: "a.cpp.html"}}

	count, err := Inject(log.Discard(), dir, nodes)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	content, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	data, ok := ExtractTreeData(content)
	if !ok {
		t.Fatalf("no tree data in index.html")
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("embedded data: %v", err)
	}
	if decoded[0]["link"] != "a.cpp.html" {
		t.Fatalf("decoded = %v", decoded)
	}

	again, err := Inject(log.Discard(), dir, nodes)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if again != 0 {
		t.Fatalf("second inject rewrote %d pages", again)
	}

	path, err := WriteTreeFile(dir, nodes)
	if err != nil {
		t.Fatalf("WriteTreeFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	back, err := tree.Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back) != 1 || back[0].Name != "a.cpp" {
		t.Fatalf("tree.json = %s", raw)
	}
}

func TestPathFixerFix(t *testing.T) {
	f := NewPathFixer("json")
	tests := map[string]string{
		"libs/json/include/boost/json/value.hpp": "include/boost/json/value.hpp",
		"../libs/json/src/parser.cpp":            "src/parser.cpp",
		"libs/json/test/value.cpp":               "test/value.cpp",
		"boost/json/detail/impl.hpp":             "include/boost/json/detail/impl.hpp",
		"boost/json":                             "include/boost/json",
		"../../libs/other/src/x.cpp":             "libs/other/src/x.cpp",
		"libs/jsonx/src/x.cpp":                   "libs/jsonx/src/x.cpp",
		"/usr/include/stdio.h":                   "/usr/include/stdio.h",
	}
	for in, want := range tests {
		if got := f.Fix(in); got != want {
			t.Errorf("Fix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathFixerFixDocument(t *testing.T) {
	f := NewPathFixer("json")
	doc := []byte(`{
		"gcovr/format_version": "0.6",
		"files": [
			{"file": "libs/json/src/a.cpp", "lines": [{"line_number": 1, "count": 3}]},
			{"filename": "boost/json/b.hpp", "functions": []}
		]
	}`)

	out, count, found, err := f.FixDocument(doc)
	if err != nil {
		t.Fatalf("FixDocument: %v", err)
	}
	if !found || count != 2 {
		t.Fatalf("found=%v count=%d", found, count)
	}

	var decoded struct {
		Version string `json:"gcovr/format_version"`
		Files   []struct {
			File     string `json:"file"`
			Filename string `json:"filename"`
			Lines    []struct {
				LineNumber int `json:"line_number"`
				Count      int `json:"count"`
			} `json:"lines"`
		} `json:"files"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Version != "0.6" {
		t.Fatalf("version lost: %q", decoded.Version)
	}
	if decoded.Files[0].File != "src/a.cpp" || decoded.Files[1].Filename != "include/boost/json/b.hpp" {
		t.Fatalf("files = %+v", decoded.Files)
	}
	if len(decoded.Files[0].Lines) != 1 || decoded.Files[0].Lines[0].Count != 3 {
		t.Fatalf("line data lost: %+v", decoded.Files[0].Lines)
	}
}

func TestPathFixerFixDocumentKeepsKeyOrder(t *testing.T) {
	doc := []byte(`{"root": "/b", "gcovr/format_version": "0.6", "files": [
		{"lines": [], "file": "libs/json/src/a.cpp", "functions": []}
	]}`)

	out, _, _, err := NewPathFixer("json").FixDocument(doc)
	if err != nil {
		t.Fatalf("FixDocument: %v", err)
	}

	text := string(out)
	order := []string{`"root"`, `"gcovr/format_version"`, `"files"`, `"lines"`, `"file": "src/a.cpp"`, `"functions"`}
	last := -1
	for _, key := range order {
		i := strings.Index(text, key)
		if i < 0 || i < last {
			t.Fatalf("key %s out of order in\n%s", key, text)
		}
		last = i
	}
}

func TestPathFixerWithoutFiles(t *testing.T) {
	doc := []byte(`{"root": "."}`)
	out, count, found, err := NewPathFixer("json").FixDocument(doc)
	if err != nil {
		t.Fatalf("FixDocument: %v", err)
	}
	if found || count != 0 || !bytes.Equal(out, doc) {
		t.Fatalf("document without files should pass through")
	}

	if _, _, _, err := NewPathFixer("json").FixDocument([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestIsIndexPage(t *testing.T) {
	tests := map[string]bool{
		"index.html":            true,
		"/r/index.src_lib.html": true,
		"a.cpp.html":            false,
		"index.css":             false,
		"tree.json":             false,
		"/r/indexes/a.cpp.html": false,
	}
	for name, want := range tests {
		if got := IsIndexPage(name); got != want {
			t.Errorf("IsIndexPage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWatchRebuildsOnIndexChange(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rebuilt := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, log.Discard(), dir, 50*time.Millisecond, func() error {
			select {
			case rebuilt <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Give the watcher time to register before touching files.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.html"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-rebuilt:
		t.Fatalf("rebuild triggered by a non-index page")
	case <-time.After(500 * time.Millisecond):
	}

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<body></body>"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-rebuilt:
	case <-ctx.Done():
		t.Fatalf("no rebuild after index.html changed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), log.Discard(), filepath.Join(t.TempDir(), "missing"), time.Millisecond, func() error { return nil })
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
