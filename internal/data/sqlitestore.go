package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteStore keeps the group list in a sqlite table
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath.
// An empty table is seeded with seed.
func NewSQLiteStore(ctx context.Context, dbPath string, seed domain.GroupSet) (repo.MembershipStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer keeps the rewrite transaction simple
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS group_ids (
			chat_id INTEGER PRIMARY KEY,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create group_ids table: %w", err)
	}

	s := &sqliteStore{db: db}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_ids`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count groups: %w", err)
	}
	if count == 0 && seed.Len() > 0 {
		if err := s.Write(ctx, seed); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Read returns all stored groups
func (s *sqliteStore) Read(ctx context.Context) (domain.GroupSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM group_ids`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := domain.NewGroupSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read groups: %w", err)
	}
	return groups, nil
}

// Write replaces the stored groups in one transaction
func (s *sqliteStore) Write(ctx context.Context, groups domain.GroupSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_ids`); err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO group_ids (chat_id, updated_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, id := range groups.Sorted() {
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("failed to insert group %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit groups: %w", err)
	}
	return nil
}

// Close closes the database
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
