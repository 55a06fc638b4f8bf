package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultSessionTTL applies when Options.SessionTTL is zero.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Options configures Open.
type Options struct {
	Path         string
	MaxOpenConns int
	SessionTTL   time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Store wraps access to the SQLite database. Request code reaches the data
// only through a Handle obtained from Acquire.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	sessionTTL time.Duration
	clock      func() time.Time
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	memory := opts.Path == ":memory:"
	if !memory {
		if err := ensureDir(opts.Path); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", dsn(opts.Path, memory))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxConns := opts.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 4
	}
	if memory {
		// every connection to :memory: is a separate database
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(0)

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}

	s := &Store{db: conn, logger: logger, sessionTTL: ttl, clock: clock}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Debug("store opened", slog.String("path", opts.Path), slog.Int("max_conns", maxConns))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

func dsn(path string, memory bool) string {
	if memory {
		return "file::memory:?_foreign_keys=ON"
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON&_journal_mode=WAL&_txlock=immediate", path)
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            completed INTEGER NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL,
            FOREIGN KEY(owner_id) REFERENCES accounts(id)
        );`,
		`CREATE TABLE IF NOT EXISTS sessions (
            token_hash TEXT PRIMARY KEY,
            account_id INTEGER NOT NULL,
            created_at TEXT NOT NULL,
            expires_at TEXT NOT NULL,
            FOREIGN KEY(account_id) REFERENCES accounts(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks(owner_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Handle is one request's claim on a pooled connection. Every account,
// session and task operation runs through a Handle.
type Handle struct {
	store *Store
	conn  *sql.Conn
	once  sync.Once
}

// Acquire reserves a connection for the caller. Release must be called
// when the request ends, typically with defer.
func (s *Store) Acquire(ctx context.Context) (*Handle, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Handle{store: s, conn: conn}, nil
}

// Release returns the connection to the pool. Calls after the first are no-ops.
func (h *Handle) Release() error {
	var err error
	h.once.Do(func() {
		err = h.conn.Close()
	})
	return err
}

// Ping checks that the underlying database is reachable.
func (h *Handle) Ping(ctx context.Context) error {
	return h.conn.PingContext(ctx)
}

// withTx runs fn inside a transaction on the handle's connection. Any error
// from fn rolls the transaction back.
func (h *Handle) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			h.store.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		// tolerate rows written by hand with a shorter fraction
		t, err = time.Parse(time.RFC3339Nano, raw)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
