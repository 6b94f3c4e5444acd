package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// The two durable keys of a session. They are written and cleared together,
// never independently.
const (
	keyToken = "auth_token"
	keyUser  = "current_user"
)

// Store persists client state in a local SQLite file.
type Store struct {
	db *sql.DB
}

func OpenStore(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %v", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", filepath.Join(dir, "state.db")))
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %v", err)
	}

	s := &Store{db: conn}
	if err := s.init(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize state database: %v", err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`)
	if err != nil {
		return fmt.Errorf("failed to set journal mode: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %v", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// saveSession writes token and user in one transaction.
func (s *Store) saveSession(ctx context.Context, token, userJSON string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range map[string]string{keyToken: token, keyUser: userJSON} {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// clearSession removes both keys in one transaction.
func (s *Store) clearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key IN (?, ?)", keyToken, keyUser)
	return err
}
