package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(log.Discard(), filepath.Join(t.TempDir(), "navtree.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTree() []*tree.Node {
	return []*tree.Node{
		{
			Name:          "src",
			IsDirectory:   true,
			Coverage:      json.RawMessage(`"82.0"`),
			CoverageClass: "coverage-medium",
			Children: []*tree.Node{
				{Name: "a.cpp", Link: "a.html", Coverage: json.RawMessage(`"91.5"`), CoverageClass: "coverage-high"},
				{Name: "b.cpp", Link: "b.html", Coverage: json.RawMessage(`40`), CoverageClass: "coverage-low"},
			},
		},
		{Name: "main.cpp", Link: "main.html"},
	}
}

func TestSaveAndLoadTree(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.SaveTree(ctx, sampleTree(), "report/index.html")
	if err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	if n != 4 {
		t.Fatalf("written = %d, want 4", n)
	}

	rows, err := s.LoadRows(ctx)
	if err != nil {
		t.Fatalf("LoadRows: %v", err)
	}
	var paths []string
	for _, r := range rows {
		paths = append(paths, r.TreePath)
	}
	if want := []string{"src", "src/a.cpp", "src/b.cpp", "main.cpp"}; !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}

	b := rows[2]
	if b.ParentPath != "src" || b.Depth != 1 || b.Position != 1 || b.IsDirectory {
		t.Fatalf("b.cpp row = %+v", b)
	}
	if rows[1].CoverageText() != "91.5" || b.CoverageText() != "40" || rows[3].CoverageText() != "" {
		t.Fatalf("coverage texts = %q %q %q", rows[1].CoverageText(), b.CoverageText(), rows[3].CoverageText())
	}

	loaded, err := s.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	got, _ := tree.Marshal(loaded)
	want, _ := tree.Marshal(sampleTree())
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch\n got: %s\nwant: %s", got, want)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap == nil || snap.Source != "report/index.html" || snap.NodeCount != 4 || snap.CompiledAt.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSaveTreeReplacesSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveTree(ctx, sampleTree(), "first"); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	if _, err := s.SaveTree(ctx, []*tree.Node{{Name: "only.cpp"}}, "second"); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}

	rows, err := s.LoadRows(ctx)
	if err != nil {
		t.Fatalf("LoadRows: %v", err)
	}
	if len(rows) != 1 || rows[0].TreePath != "only.cpp" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestSaveTreeKeepsSameNamedFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := []*tree.Node{
		{Name: "src", IsDirectory: true, Children: []*tree.Node{
			{Name: "a.c", Link: "a1.html"},
			{Name: "a.c", Link: "a2.html"},
		}},
	}

	n, err := s.SaveTree(ctx, nodes, "dup")
	if err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}

	loaded, err := s.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if got := tree.Links(loaded); !reflect.DeepEqual(got, []string{"a1.html", "a2.html"}) {
		t.Fatalf("links = %v", got)
	}
}

func TestLoadTreeUnderEmptyName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := []*tree.Node{
		{Name: "", IsDirectory: true, Children: []*tree.Node{
			{Name: "", Link: "root.html"},
			{Name: "x", Link: "x.html"},
		}},
		{Name: "y", Link: "y.html"},
	}

	if _, err := s.SaveTree(ctx, nodes, "empty"); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	loaded, err := s.LoadTree(ctx)
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	got, _ := tree.Marshal(loaded)
	want, _ := tree.Marshal(nodes)
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	snap, err := openTestStore(t).Snapshot(context.Background())
	if err != nil || snap != nil {
		t.Fatalf("Snapshot = %+v, %v", snap, err)
	}
}

func TestState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok := s.Get(ctx, KeyExpandedFolders); ok {
		t.Fatalf("unexpected value for unset key")
	}
	if !s.Set(ctx, KeyExpandedFolders, `["src","src/detail"]`) {
		t.Fatalf("Set failed")
	}
	if !s.Set(ctx, KeyTheme, "dark") || !s.Set(ctx, KeyTheme, "light") {
		t.Fatalf("Set failed")
	}

	v, ok := s.Get(ctx, KeyTheme)
	if !ok || v != "light" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	entries, err := s.ListState(ctx)
	if err != nil {
		t.Fatalf("ListState: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != KeyExpandedFolders || entries[1].Value != "light" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].UpdatedAt == "" {
		t.Fatalf("updated_at not recorded")
	}
}

func TestStateToleratesUnavailableStorage(t *testing.T) {
	s := openTestStore(t)
	s.Close()

	ctx := context.Background()
	if s.Set(ctx, KeyTheme, "dark") {
		t.Fatalf("Set on a closed store should report failure")
	}
	if _, ok := s.Get(ctx, KeyTheme); ok {
		t.Fatalf("Get on a closed store should report a missing key")
	}
}

func TestMigratesVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE schema_version (version INTEGER NOT NULL);
		INSERT INTO schema_version (version) VALUES (1);
		CREATE TABLE ui_state (key TEXT PRIMARY KEY, value TEXT NOT NULL DEFAULT '');
		INSERT INTO ui_state (key, value) VALUES ('gcovr-theme', 'dark');
	`)
	db.Close()
	if err != nil {
		t.Fatalf("seed v1 database: %v", err)
	}

	s, err := Open(log.Discard(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Fatalf("version = %d, want %d", version, schemaVersion)
	}

	ctx := context.Background()
	if v, ok := s.Get(ctx, KeyTheme); !ok || v != "dark" {
		t.Fatalf("existing state lost: %q %v", v, ok)
	}
	if !s.Set(ctx, KeyTheme, "light") {
		t.Fatalf("Set after migration failed")
	}
}

func TestMigratesVersionTwoDropsOldTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v2.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE schema_version (version INTEGER NOT NULL);
		INSERT INTO schema_version (version) VALUES (2);
		CREATE TABLE tree_nodes (tree_path TEXT PRIMARY KEY, parent_path TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL, link TEXT NOT NULL DEFAULT '', is_directory INTEGER NOT NULL DEFAULT 0,
			coverage TEXT NOT NULL DEFAULT '', coverage_class TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL DEFAULT 0, position INTEGER NOT NULL DEFAULT 0);
		INSERT INTO tree_nodes (tree_path, name) VALUES ('old.c', 'old.c');
		CREATE TABLE tree_snapshot (id INTEGER PRIMARY KEY CHECK (id = 1), source TEXT NOT NULL DEFAULT '',
			node_count INTEGER NOT NULL DEFAULT 0, compiled_at TEXT NOT NULL DEFAULT '');
		INSERT INTO tree_snapshot (id, source, node_count) VALUES (1, 'old', 1);
	`)
	db.Close()
	if err != nil {
		t.Fatalf("seed v2 database: %v", err)
	}

	s, err := Open(log.Discard(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if rows, err := s.LoadRows(ctx); err != nil || len(rows) != 0 {
		t.Fatalf("LoadRows = %+v, %v", rows, err)
	}
	if snap, err := s.Snapshot(ctx); err != nil || snap != nil {
		t.Fatalf("Snapshot = %+v, %v", snap, err)
	}
	if n, err := s.SaveTree(ctx, []*tree.Node{{Name: "x"}, {Name: "x"}}, "new"); err != nil || n != 2 {
		t.Fatalf("SaveTree = %d, %v", n, err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navtree.db")
	s, err := Open(log.Discard(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.SaveTree(context.Background(), sampleTree(), "x"); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	s.Close()

	ro, err := OpenReadOnly(log.Discard(), path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()

	rows, err := ro.LoadRows(context.Background())
	if err != nil || len(rows) != 4 {
		t.Fatalf("LoadRows = %d, %v", len(rows), err)
	}
}
