package remote

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"jobstreak/internal/models"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const serverMillis = `(extract(epoch from now()) * 1000)::bigint`

// PostgresStore keeps one JSONB document per user in user_documents.
type PostgresStore struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

func (p *PostgresStore) Name() string { return "postgres" }

// Init connects and applies pending migrations. It may be called again after a failure.
func (p *PostgresStore) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db.PingContext(ctx)
	}

	db, err := sql.Open("postgres", p.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to reach database: %w", err)
	}
	if err := runMigrations(p.dsn); err != nil {
		_ = db.Close()
		return err
	}
	p.db = db
	return nil
}

func runMigrations(dsn string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (p *PostgresStore) conn() (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrNotInitiated
	}
	return p.db, nil
}

func (p *PostgresStore) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	db, err := p.conn()
	if err != nil {
		return nil, false, err
	}
	var doc []byte
	err = db.QueryRowContext(ctx, `SELECT doc FROM user_documents WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, userID string, doc Document) error {
	return p.write(ctx, userID, doc,
		`INSERT INTO user_documents (user_id, doc, updated_at) VALUES ($1, $2::jsonb || %s, now())
		 ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`, false)
}

func (p *PostgresStore) Update(ctx context.Context, userID string, fields Document) error {
	return p.write(ctx, userID, fields,
		`UPDATE user_documents SET doc = doc || $2::jsonb || %s, updated_at = now() WHERE user_id = $1`, true)
}

func (p *PostgresStore) Merge(ctx context.Context, userID string, fields Document) error {
	return p.write(ctx, userID, fields,
		`INSERT INTO user_documents (user_id, doc, updated_at) VALUES ($1, $2::jsonb || %s, now())
		 ON CONFLICT (user_id) DO UPDATE SET doc = user_documents.doc || EXCLUDED.doc, updated_at = now()`, false)
}

// write runs query with %s replaced by a jsonb object holding the server timestamps.
func (p *PostgresStore) write(ctx context.Context, userID string, doc Document, query string, mustExist bool) error {
	db, err := p.conn()
	if err != nil {
		return err
	}
	plain, tsKeys := splitServerTimestamps(doc)
	data, err := json.Marshal(plain)
	if err != nil {
		return err
	}
	tsExpr, tsArgs := timestampObject(tsKeys, 3)
	args := append([]any{userID, string(data)}, tsArgs...)

	res, err := db.ExecContext(ctx, fmt.Sprintf(query, tsExpr), args...)
	if err != nil {
		return err
	}
	if mustExist {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// timestampObject builds jsonb_build_object($n, now_ms, ...) for the given keys,
// numbering placeholders from first.
func timestampObject(keys []string, first int) (string, []any) {
	if len(keys) == 0 {
		return `'{}'::jsonb`, nil
	}
	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		parts = append(parts, fmt.Sprintf("$%d::text, %s", first+i, serverMillis))
		args = append(args, k)
	}
	return "jsonb_build_object(" + strings.Join(parts, ", ") + ")", args
}

func (p *PostgresStore) Friends(ctx context.Context, userID string) ([]models.FriendStreak, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT d.user_id, d.doc
		   FROM friendships f
		   JOIN user_documents d ON d.user_id = f.friend_id
		  WHERE f.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FriendStreak
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if fs, ok := friendFromDocument(id, raw); ok {
			out = append(out, fs)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortFriends(out)
	return out, nil
}

func (p *PostgresStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
