package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store persists raw frames so a session can be replayed through the decoder
type Store struct {
	db *sql.DB
}

// Frame is one recorded vendor frame
type Frame struct {
	ID                 int64
	ConnectionID       string
	ReceivedUnixMillis int64
	Payload            []byte
}

// Open creates or opens the frame store
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_id TEXT NOT NULL,
			received_unix_millis INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_frames_connection
			ON frames(connection_id, id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// AppendFrames writes frames in one transaction. IDs are assigned by the store.
func (s *Store) AppendFrames(ctx context.Context, frames []Frame) error {
	if len(frames) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO frames (connection_id, received_unix_millis, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.ExecContext(ctx, f.ConnectionID, f.ReceivedUnixMillis, f.Payload); err != nil {
			return fmt.Errorf("failed to insert frame: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListFrames returns up to limit frames with an ID greater than afterID, oldest first
func (s *Store) ListFrames(ctx context.Context, afterID int64, limit int) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, connection_id, received_unix_millis, payload
		 FROM frames
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.ID, &f.ConnectionID, &f.ReceivedUnixMillis, &f.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, f)
	}

	return frames, rows.Err()
}

// EachFrame walks every frame after afterID in batches of batchSize
func (s *Store) EachFrame(ctx context.Context, afterID int64, batchSize int, fn func(Frame) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	for {
		frames, err := s.ListFrames(ctx, afterID, batchSize)
		if err != nil {
			return err
		}
		for _, f := range frames {
			if err := fn(f); err != nil {
				return err
			}
			afterID = f.ID
		}
		if len(frames) < batchSize {
			return nil
		}
	}
}

// CountFrames returns the number of recorded frames
func (s *Store) CountFrames(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM frames").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
