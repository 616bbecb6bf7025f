// Package postgres implements remote.Store on a PostgreSQL JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/quitlog/internal/constants"
	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/logger"
	"github.com/julianstephens/quitlog/internal/migration"
	"github.com/julianstephens/quitlog/internal/remote"
	"github.com/julianstephens/quitlog/migrations"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// Store keeps documents in quitlog.documents. The schema and migrations are
// applied lazily on the first call that reaches the server, so a Store can
// be constructed while the network is down.
type Store struct {
	connStr string

	mu    sync.Mutex
	db    *sql.DB
	ready bool
}

func New(connStr string) *Store {
	s := &Store{
		connStr: connStr,
	}
	s.ensureSearchPath()
	return s
}

func (s *Store) ensureSearchPath() {
	if strings.HasPrefix(s.connStr, "postgres://") || strings.HasPrefix(s.connStr, "postgresql://") {
		u, err := url.Parse(s.connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
			s.connStr = u.String()
		}
	} else if !hasSearchPathParam(s.connStr) {
		s.connStr = strings.TrimSpace(s.connStr) + " search_path=" + constants.AppName
	}
}

// hasSearchPathParam returns true if the given DSN-style connection string
// contains a search_path parameter key (case-insensitive).
func hasSearchPathParam(connStr string) bool {
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "search_path") {
			return true
		}
	}
	return false
}

// hasSSLMode checks for an sslmode parameter in URL or DSN form.
func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "sslmode") {
			return true
		}
	}
	return false
}

// ValidateConnString checks that connStr is a well-formed PostgreSQL
// connection string (URI or DSN) with no embedded password.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if IsURL(connStr) {
		parsedURL, err := url.Parse(connStr)
		if err != nil {
			return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := parsedURL.User.Password(); isSet {
			return false, ErrEmbeddedCredentials
		}
		if parsedURL.Host == "" && parsedURL.User == nil && (parsedURL.Path == "" || parsedURL.Path == "/") {
			return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
	} else {
		for _, pair := range strings.Fields(connStr) {
			parts := strings.SplitN(pair, "=", 2)
			if len(parts) == 2 && strings.ToLower(strings.TrimSpace(parts[0])) == "password" {
				return false, ErrEmbeddedCredentials
			}
		}
	}

	return true, nil
}

// IsURL reports whether connStr uses the postgres:// URI form.
func IsURL(connStr string) bool {
	return strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
}

// LooksLikeConnString reports whether s is plausibly a PostgreSQL connection
// string in either form.
func LooksLikeConnString(s string) bool {
	return IsURL(s) || strings.Contains(s, "host=")
}

// MaskPassword hides any password in a connection string for display.
func MaskPassword(connStr string) string {
	if IsURL(connStr) {
		if u, err := url.Parse(connStr); err == nil && u.User != nil {
			if _, isSet := u.User.Password(); isSet {
				u.User = url.UserPassword(u.User.Username(), "****")
				// url.String escapes the mask; restore it for readability
				return strings.Replace(u.String(), "%2A%2A%2A%2A", "****", 1)
			}
		}
		return connStr
	}

	parts := strings.Fields(connStr)
	for i, part := range parts {
		if strings.HasPrefix(strings.ToLower(part), "password=") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}

func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		db, err := sql.Open("postgres", s.connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		s.db = db
	}

	if !s.ready {
		if err := s.prepare(ctx); err != nil {
			return nil, err
		}
		s.ready = true
	}
	return s.db, nil
}

func (s *Store) prepare(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	runner := migration.NewRunner(s.db, subFS, migration.DriverPostgres)
	if _, err := runner.ApplyMigrations(func(msg string) {
		logger.Info(msg, "remote", "postgresql")
	}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) PutDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	db, err := s.conn(ctx)
	if err != nil {
		return apperrors.Remote("put document", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		collection, id, string(data))
	if err != nil {
		return apperrors.Remote("put document", err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return apperrors.Remote("delete document", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id); err != nil {
		return apperrors.Remote("delete document", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, false, apperrors.Remote("get document", err)
	}
	var data string
	err = db.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = $1 AND id = $2", collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Remote("get document", err)
	}
	return json.RawMessage(data), true, nil
}

// buildQuery renders a collection query with one data->>key = value clause
// per filter entry. Keys are sorted so the statement text is stable.
func buildQuery(collection string, filter map[string]string) (string, []any) {
	query := "SELECT id, data FROM documents WHERE collection = $1"
	args := []any{collection}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, k, filter[k])
		query += fmt.Sprintf(" AND data->>$%d = $%d", len(args)-1, len(args))
	}
	return query + " ORDER BY id", args
}

func (s *Store) QueryDocuments(ctx context.Context, collection string, filter map[string]string) ([]remote.Document, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, apperrors.Remote("query documents", err)
	}

	query, args := buildQuery(collection, filter)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Remote("query documents", err)
	}
	defer rows.Close()

	docs := []remote.Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, apperrors.Remote("query documents", err)
		}
		docs = append(docs, remote.Document{Collection: collection, ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Remote("query documents", err)
	}
	return docs, nil
}

// Ping reports whether the server is reachable and the schema is ready.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return apperrors.Remote("ping", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return apperrors.Remote("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.ready = false
		return err
	}
	return nil
}

var _ remote.Store = (*Store)(nil)
