package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/querysql"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Schema version tracking (SQLite only):
// 0 - Initial schema
// 1 - Added edge endpoint indexes
const currentSchemaVersion = 1

// GraphWriter is the write side shared by the SQL and in-memory stores.
type GraphWriter interface {
	CreateSubgraph(ctx context.Context, sg graph.Subgraph) (graph.Subgraph, error)
	CreateNode(ctx context.Context, n graph.Node) (graph.Node, error)
	CreateEdge(ctx context.Context, e graph.Edge) (graph.Edge, error)
}

// GraphStore is the full store surface used by the CLI and loaders.
type GraphStore interface {
	graph.Reader
	GraphWriter
	SubgraphByName(ctx context.Context, name string) (graph.Subgraph, error)
	Nodes(ctx context.Context, subgraphID int64) ([]graph.Node, error)
	Stats(ctx context.Context, subgraphID int64) (Stats, error)
	WithTx(ctx context.Context, fn func(GraphWriter) error) error
	Close() error
}

// Stats counts the content of one subgraph.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQL-backed graph store.
type Store struct {
	db       *sql.DB
	q        querier
	dialect  querysql.Dialect
	compiler *querysql.SQLCompiler
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for modified timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens a SQLite graph store at path.
// Applies required pragmas and migrations; safe to call repeatedly.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return newStore(db, querysql.SQLite, opts), nil
}

// OpenPostgres connects to a Postgres graph store through pgx and creates
// the schema if missing.
func OpenPostgres(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return newStore(db, querysql.Postgres, opts), nil
}

func newStore(db *sql.DB, d querysql.Dialect, opts []Option) *Store {
	s := &Store{
		db:       db,
		q:        db,
		dialect:  d,
		compiler: querysql.NewSQLCompiler(d),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dialect reports which SQL dialect the store speaks.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// WithTx runs fn against a transaction-scoped view of the store. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(GraphWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	txStore := &Store{db: s.db, q: tx, dialect: s.dialect, compiler: s.compiler, now: s.now}
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// rebind adapts ? placeholders to the store dialect.
func (s *Store) rebind(query string) string {
	return s.compiler.Rebind(query)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySQLiteSchema creates tables if they don't exist and runs migrations.
func applySQLiteSchema(db *sql.DB) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes both edge endpoints; role queries join on them.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_node_id);
		CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_node_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
