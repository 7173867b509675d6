package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/aristath/goldcore/internal/domain"
)

// SQLiteStore is the embedded-KV alternative to FSStore described in
// SPEC_FULL.md §9.1: the same Play Store contract backed by a single table,
// with status transitions as transactional UPDATEs instead of directory
// renames. Uses modernc.org/sqlite (pure Go, no cgo) in place of the
// teacher's mattn/go-sqlite3 driver — see DESIGN.md for why the cgo driver
// was dropped.
type SQLiteStore struct {
	log zerolog.Logger
	db  *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a sqlite database at path and
// ensures the plays table exists.
func NewSQLiteStore(log zerolog.Logger, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite db: %w: %v", domain.ErrStoreError, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	const schema = `
CREATE TABLE IF NOT EXISTS plays (
	play_id TEXT PRIMARY KEY,
	status  TEXT NOT NULL,
	body    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plays_status ON plays(status);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w: %v", domain.ErrStoreError, err)
	}

	return &SQLiteStore{log: log.With().Str("component", "store.sqlite").Logger(), db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context, status domain.Status) ([]*domain.Play, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM plays WHERE status = ?`, string(status))
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w: %v", status, domain.ErrStoreError, err)
	}
	defer rows.Close()

	var plays []*domain.Play
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("store: scanning row: %w: %v", domain.ErrStoreError, err)
		}
		p, err := UnmarshalPlay([]byte(body))
		if err != nil {
			s.log.Error().Err(err).Msg("failed to parse stored play body")
			continue
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, playID string) (*domain.Play, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plays WHERE play_id = ?`, playID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: play %s not found: %w", playID, domain.ErrStoreError)
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading play %s: %w: %v", playID, domain.ErrStoreError, err)
	}
	return UnmarshalPlay([]byte(body))
}

func (s *SQLiteStore) Save(ctx context.Context, play *domain.Play) error {
	b, err := MarshalPlay(play)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO plays (play_id, status, body) VALUES (?, ?, ?)
ON CONFLICT(play_id) DO UPDATE SET status = excluded.status, body = excluded.body
`, play.PlayID, string(play.Status.Lifecycle), string(b))
	if err != nil {
		return fmt.Errorf("store: saving play %s: %w: %v", play.PlayID, domain.ErrStoreError, err)
	}
	return nil
}

func (s *SQLiteStore) Move(ctx context.Context, play *domain.Play, newStatus domain.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning move transaction: %w: %v", domain.ErrStoreError, err)
	}
	defer tx.Rollback()

	play.Status.Lifecycle = newStatus
	b, err := MarshalPlay(play)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO plays (play_id, status, body) VALUES (?, ?, ?)
ON CONFLICT(play_id) DO UPDATE SET status = excluded.status, body = excluded.body
`, play.PlayID, string(newStatus), string(b)); err != nil {
		return fmt.Errorf("store: moving play %s: %w: %v", play.PlayID, domain.ErrStoreError, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing move: %w: %v", domain.ErrStoreError, err)
	}
	return nil
}
