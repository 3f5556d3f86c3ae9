package registry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS places (
	seq         INTEGER PRIMARY KEY,
	place_id    TEXT NOT NULL UNIQUE,
	place_label TEXT NOT NULL UNIQUE
)`

// SQLiteStore keeps registry entries across runs.
// Only used when a registry database is configured.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and creates if needed) the registry database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	// single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create registry schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load returns all stored entries in assignment order
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT place_label, place_id FROM places ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlaceLabel, &e.PlaceID); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}
	return entries, nil
}

// Append stores new entries in one transaction
func (s *SQLiteStore) Append(ctx context.Context, entries []Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO places (seq, place_id, place_label) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		n, err := parseID(e.PlaceID)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, n, e.PlaceID, e.PlaceLabel); err != nil {
			return fmt.Errorf("insert %s: %w", e.PlaceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
