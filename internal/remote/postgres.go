package remote

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"sync"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/migration"
	"github.com/julianstephens/habitsync/migrations"
)

var ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")

// Postgres stores documents as JSONB rows keyed by (collection, key) inside
// the habitsync schema.
type Postgres struct {
	connStr string

	mu sync.Mutex
	db *sql.DB
}

func NewPostgres(connStr string) *Postgres {
	return &Postgres{connStr: withSearchPath(connStr)}
}

func withSearchPath(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return connStr
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	for _, part := range strings.Fields(connStr) {
		if k, _, ok := strings.Cut(part, "="); ok && strings.EqualFold(k, "search_path") {
			return connStr
		}
	}
	return strings.TrimSpace(connStr) + " search_path=" + constants.AppName
}

// ValidateConnString checks that connStr parses as a PostgreSQL URL or DSN.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	return nil
}

// Open connects, creates the schema if needed and applies remote migrations.
// It is a no-op once a previous Open succeeded; a failed Open leaves the store
// closed so it can be retried.
func (s *Postgres) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	if err := ValidateConnString(s.connStr); err != nil {
		return err
	}
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open remote database: %w", err)
	}
	db.SetMaxOpenConns(constants.RemoteMaxOpenConns)
	db.SetMaxIdleConns(constants.RemoteMaxOpenConns)
	db.SetConnMaxLifetime(constants.RemoteConnMaxLifetime)

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") {
			return fmt.Errorf("failed to connect to remote: %w (hint: add sslmode=disable to the connection string)", err)
		}
		return fmt.Errorf("failed to create schema: %w", err)
	}

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	runner := migration.NewRunner(db, subFS)
	if _, err := runner.ApplyMigrations(func(msg string) {
		logger.Debug(msg, "remote", "postgres")
	}); err != nil {
		db.Close()
		return fmt.Errorf("failed to run remote migrations: %w", err)
	}
	s.db = db
	return nil
}

func (s *Postgres) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Postgres) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrUnreachable
	}
	return s.db, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *Postgres) Get(ctx context.Context, p Path) (Document, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var body []byte
	err = db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND key = $2`,
		p.Collection, p.Key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", p, err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", p, err)
	}
	return doc, true, nil
}

func (s *Postgres) Put(ctx context.Context, p Path, doc Document, merge bool) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p, err)
	}

	update := `body = excluded.body`
	if merge {
		update = `body = documents.body || excluded.body`
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, body, written_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE SET `+update+`, written_at = now()`,
		p.Collection, p.Key, string(body))
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", p, err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, p Path) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND key = $2`,
		p.Collection, p.Key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}
