package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage stores each key as a row of the kv table. Update runs inside a
// BEGIN IMMEDIATE transaction, which takes the database write lock up front.
type SQLiteStorage struct {
	path string
	db   *sql.DB
}

func NewSQLiteStorage(path string, lockTimeout time.Duration) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, lockTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteStorage{path: path, db: db}, nil
}

func (s *SQLiteStorage) Path() string {
	return s.path
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return getRow(ctx, s.db, key)
}

func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStorage) Remove(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err = conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()

	current, ok, err := getRow(ctx, conn, key)
	if err != nil {
		return err
	}
	next, err := fn(current, ok)
	if errors.Is(err, ErrSkipWrite) {
		_, err = conn.ExecContext(ctx, `COMMIT`)
		return err
	}
	if err != nil {
		return err
	}

	switch {
	case next == nil:
		_, err = conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	case !json.Valid(next):
		err = fmt.Errorf("value for %q is not valid JSON", key)
	default:
		_, err = conn.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, next, time.Now().UnixMilli())
	}
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `COMMIT`)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRow(ctx context.Context, q rowQuerier, key string) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}
