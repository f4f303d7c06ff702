// Package store persists canonical trees and sidebar UI state in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

const schemaVersion = 3

// Store wraps the navtree database.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(logger *log.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// OpenReadOnly opens an existing database without touching its schema.
func OpenReadOnly(logger *log.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Rows are kept in depth-first order by id. Tree paths are not unique: two
// files of one directory may share a name when they link to different pages.
const treeNodesTable = `
	CREATE TABLE IF NOT EXISTS tree_nodes (
		id             INTEGER PRIMARY KEY,
		tree_path      TEXT NOT NULL,
		parent_path    TEXT NOT NULL DEFAULT '',
		name           TEXT NOT NULL,
		link           TEXT NOT NULL DEFAULT '',
		is_directory   INTEGER NOT NULL DEFAULT 0,
		coverage       TEXT NOT NULL DEFAULT '',
		coverage_class TEXT NOT NULL DEFAULT '',
		depth          INTEGER NOT NULL DEFAULT 0,
		position       INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_tree_nodes_path ON tree_nodes(tree_path);
`

func createSchema(db *sql.DB) error {
	if _, err := db.Exec(treeNodesTable); err != nil {
		return fmt.Errorf("create tree_nodes: %w", err)
	}
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

		CREATE TABLE IF NOT EXISTS tree_snapshot (
			id          INTEGER PRIMARY KEY CHECK (id = 1),
			source      TEXT NOT NULL DEFAULT '',
			node_count  INTEGER NOT NULL DEFAULT 0,
			compiled_at TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS ui_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		return err
	}

	var currentVersion int
	if err := db.QueryRow("SELECT version FROM schema_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion < 2 {
		// v1 → v2: ui_state gained updated_at
		_, alterErr := db.Exec("ALTER TABLE ui_state ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''")
		if alterErr != nil && !strings.Contains(alterErr.Error(), "duplicate column") {
			return fmt.Errorf("migrate v1→v2: %w", alterErr)
		}
	}
	if currentVersion < 3 {
		// v2 → v3: tree_nodes keyed by row order instead of tree path; the
		// stored snapshot is dropped and has to be compiled again
		if _, err := db.Exec("DROP TABLE IF EXISTS tree_nodes; DELETE FROM tree_snapshot"); err != nil {
			return fmt.Errorf("migrate v2→v3: %w", err)
		}
		if _, err := db.Exec(treeNodesTable); err != nil {
			return fmt.Errorf("migrate v2→v3: %w", err)
		}
	}
	if currentVersion < schemaVersion {
		if _, err := db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
			return err
		}
	}

	return nil
}

// NodeRow is one stored tree node.
type NodeRow struct {
	TreePath      string
	ParentPath    string
	Name          string
	Link          string
	IsDirectory   bool
	Coverage      string // raw JSON, empty when absent
	CoverageClass string
	Depth         int
	Position      int
}

// CoverageText returns the coverage value without JSON string quoting.
func (r NodeRow) CoverageText() string {
	var s string
	if err := json.Unmarshal([]byte(r.Coverage), &s); err == nil {
		return s
	}
	return r.Coverage
}

// Snapshot describes the stored tree.
type Snapshot struct {
	Source     string
	NodeCount  int
	CompiledAt time.Time
}

// SaveTree replaces the stored tree with nodes in a single transaction and
// returns the number of rows written.
func (s *Store) SaveTree(ctx context.Context, nodes []*tree.Node, source string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tree_nodes"); err != nil {
		return 0, fmt.Errorf("clear tree: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tree_nodes (tree_path, parent_path, name, link, is_directory,
			coverage, coverage_class, depth, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range tree.Flatten(nodes) {
		isDir := 0
		if e.Node.IsDir() {
			isDir = 1
		}
		coverage := ""
		if e.Node.HasCoverage() {
			coverage = string(e.Node.Coverage)
		}
		if _, err := stmt.ExecContext(ctx, e.Path, e.ParentPath, e.Node.Name, e.Node.Link, isDir,
			coverage, e.Node.CoverageClass, e.Depth, e.Position); err != nil {
			return 0, fmt.Errorf("insert %s: %w", e.Path, err)
		}
		written++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tree_snapshot (id, source, node_count, compiled_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			node_count = excluded.node_count,
			compiled_at = excluded.compiled_at
	`, source, written, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("record snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// Snapshot returns metadata of the stored tree, or nil when none was saved.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		snap       Snapshot
		compiledAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT source, node_count, compiled_at FROM tree_snapshot WHERE id = 1").
		Scan(&snap.Source, &snap.NodeCount, &compiledAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, compiledAt); err == nil {
		snap.CompiledAt = t
	}
	return &snap, nil
}

// LoadRows returns the stored nodes in depth-first order.
func (s *Store) LoadRows(ctx context.Context) ([]NodeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tree_path, parent_path, name, link, is_directory,
			coverage, coverage_class, depth, position
		FROM tree_nodes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query tree nodes: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		var (
			r     NodeRow
			isDir int
		)
		if err := rows.Scan(&r.TreePath, &r.ParentPath, &r.Name, &r.Link, &isDir,
			&r.Coverage, &r.CoverageClass, &r.Depth, &r.Position); err != nil {
			return nil, fmt.Errorf("scan tree node: %w", err)
		}
		r.IsDirectory = isDir != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadTree rebuilds the stored tree. Each row hangs under the closest
// preceding row one level up.
func (s *Store) LoadTree(ctx context.Context) ([]*tree.Node, error) {
	rows, err := s.LoadRows(ctx)
	if err != nil {
		return nil, err
	}

	roots := []*tree.Node{}
	var ancestors []*tree.Node
	for _, r := range rows {
		n := &tree.Node{
			Name:          r.Name,
			IsDirectory:   r.IsDirectory,
			Link:          r.Link,
			CoverageClass: r.CoverageClass,
		}
		if r.Coverage != "" {
			n.Coverage = json.RawMessage(r.Coverage)
		}

		depth := r.Depth
		if depth > len(ancestors) {
			s.logger.Warning("Tree node %s skips a level; attaching it to the nearest ancestor", r.TreePath)
			depth = len(ancestors)
		}
		if depth == 0 {
			roots = append(roots, n)
		} else {
			parent := ancestors[depth-1]
			parent.Children = append(parent.Children, n)
		}
		ancestors = append(ancestors[:depth], n)
	}
	return roots, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
