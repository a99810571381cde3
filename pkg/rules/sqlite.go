package rules

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS forward_rules (
	source      TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	destination TEXT    NOT NULL,
	keyword     TEXT    NOT NULL,
	PRIMARY KEY (source, position)
);`

// SQLiteDB persists the snapshot into a single table. Every Save rewrites the
// table inside one transaction.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, destination, keyword FROM forward_rules ORDER BY source, position`)
	if err != nil {
		return nil, fmt.Errorf("%w: query rules: %w", ErrStorageCorrupt, err)
	}
	defer rows.Close()

	snap := Snapshot{}
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.Source, &r.Destination, &r.Keyword); err != nil {
			return nil, fmt.Errorf("%w: scan rule: %w", ErrStorageCorrupt, err)
		}
		snap[r.Source] = append(snap[r.Source], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	return snap, nil
}

func (s *SQLiteDB) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM forward_rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO forward_rules (source, position, destination, keyword) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for source, list := range snap {
		for i, r := range list {
			if _, err := stmt.ExecContext(ctx, source, i, r.Destination, r.Keyword); err != nil {
				return fmt.Errorf("insert rule %s[%d]: %w", source, i, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

var _ Persister = (*SQLiteDB)(nil)
