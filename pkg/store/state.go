package store

import (
	"context"
	"fmt"
	"time"
)

// Sidebar state keys. Values are opaque to the store.
const (
	KeyExpandedFolders = "gcovr-expanded-folders"
	KeySidebarWidth    = "gcovr-sidebar-width"
	KeySidebarHidden   = "gcovr-sidebar-hidden"
	KeyTheme           = "gcovr-theme"
)

// Get reads a UI state value. Read failures are logged and reported as a
// missing key.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM ui_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !isNoRows(err) {
			s.logger.Debug("Could not read state %q: %v", key, err)
		}
		return "", false
	}
	return value, true
}

// Set writes a UI state value and reports whether it was stored. Write
// failures are logged and otherwise ignored.
func (s *Store) Set(ctx context.Context, key, value string) bool {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ui_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		s.logger.Debug("Could not write state %q: %v", key, err)
		return false
	}
	return true
}

// StateEntry is one stored UI state value.
type StateEntry struct {
	Key       string
	Value     string
	UpdatedAt string
}

// ListState returns every UI state entry ordered by key.
func (s *Store) ListState(ctx context.Context) ([]StateEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM ui_state ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	var out []StateEntry
	for rows.Next() {
		var e StateEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
