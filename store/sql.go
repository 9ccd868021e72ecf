package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
)

// Dialect selects the SQL flavour spoken by an SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "pgx"
)

const (
	sqliteConstraint  = 19
	pgUniqueViolation = "23505"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		authorities TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
}

// SQLStore implements Backend over database/sql. SQLite uses
// modernc.org/sqlite and Postgres uses the pgx stdlib driver.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ Backend = (*SQLStore)(nil)

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(string(DialectSQLite), path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return newSQLStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to Postgres using a pgx connection string.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(DialectPostgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable(err)
	}
	return newSQLStore(ctx, db, DialectPostgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "store", "dialect", string(dialect)),
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	s.logger.Info("SQL store initialized")
	return s, nil
}

// rebind rewrites '?' placeholders as $1, $2, ... for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (tokengate.CredentialRecord, error) {
	var rec tokengate.CredentialRecord
	var authorities string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT username, password_hash, authorities FROM users WHERE username = ?`),
		username,
	).Scan(&rec.Username, &rec.PasswordHash, &authorities)
	if errors.Is(err, sql.ErrNoRows) {
		return tokengate.CredentialRecord{}, tokengate.ErrUserNotFound
	}
	if err != nil {
		return tokengate.CredentialRecord{}, unavailable(err)
	}
	rec.Authorities = splitAuthorities(authorities)
	return rec, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, rec tokengate.CredentialRecord) error {
	rec, err := validateRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO users (username, password_hash, authorities, created_at) VALUES (?, ?, ?, ?)`),
		rec.Username, rec.PasswordHash, joinAuthorities(rec.Authorities), time.Now().UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return tokengate.ErrUserExists
		}
		return unavailable(err)
	}
	return nil
}

func (s *SQLStore) PutUser(ctx context.Context, rec tokengate.CredentialRecord) error {
	rec, err := validateRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO users (username, password_hash, authorities, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash, authorities = excluded.authorities`),
		rec.Username, rec.PasswordHash, joinAuthorities(rec.Authorities), time.Now().UnixNano(),
	)
	return unavailable(err)
}

func (s *SQLStore) DeleteUser(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE username = ?`), username)
	return unavailable(err)
}

func (s *SQLStore) CreatePost(ctx context.Context, p Post) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO posts (id, author, content, created_at) VALUES (?, ?, ?, ?)`),
		p.ID, p.Author, p.Content, p.CreatedAt.UnixNano(),
	)
	return unavailable(err)
}

func (s *SQLStore) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, author, content, created_at FROM posts ORDER BY created_at DESC, id DESC LIMIT ?`),
		listLimit(limit),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		var created int64
		if err := rows.Scan(&p.ID, &p.Author, &p.Content, &created); err != nil {
			return nil, unavailable(err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return posts, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return unavailable(s.db.PingContext(ctx))
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqliteConstraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
