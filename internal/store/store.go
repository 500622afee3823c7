package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/crawlplan/internal/catalog"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/storesql"
)

// DriverName is the database/sql driver with fold() registered.
const DriverName = "sqlite3_crawlplan"

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added catalog_tables schema fingerprints
const currentSchemaVersion = 1

// DomainSchema separates table schema fingerprints from other hashes.
const DomainSchema = "crawlplan/schema/v1"

const defaultStatementCacheSize = 128

var registerDriver sync.Once

func register() {
	registerDriver.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc(storesql.FoldName, storesql.FoldFunc, true)
			},
		})
	})
}

// Store is a SQLite document store for the record types of one catalog.
//
// Thread-safety: Store is safe for concurrent use. database/sql serializes
// access to the single connection; the statement cache has its own lock.
type Store struct {
	db      *sql.DB
	catalog *catalog.Catalog
	logger  *slog.Logger
	ids     IDGenerator

	stmts *lru.Cache[string, *sql.Stmt]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for plan and schema diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator sets the generator for records stored without an id.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// Open creates or opens a SQLite database at the given path and creates the
// tables and indexes of every catalog type.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string, cat *catalog.Catalog, opts ...Option) (*Store, error) {
	register()

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, catalog: cat, logger: slog.Default(), ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	s.stmts, err = lru.NewWithEvict(defaultStatementCacheSize, func(_ string, stmt *sql.Stmt) {
		stmt.Close()
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statement cache: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := s.applySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close releases cached statements and closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.stmts.Purge()
	return s.db.Close()
}

// Catalog returns the catalog the store was opened with.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema runs migrations, then creates or refreshes one table per
// record type. This function is idempotent.
func (s *Store) applySchema(ctx context.Context) error {
	if err := runMigrations(s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, t := range s.catalog.Types() {
		if err := s.applyTable(ctx, t); err != nil {
			return fmt.Errorf("table %s: %w", t.Table, err)
		}
	}
	return nil
}

func (s *Store) applyTable(ctx context.Context, t *catalog.Type) error {
	stmts, err := storesql.Schema(t.Registry)
	if err != nil {
		return err
	}
	hash := ir.HashWithDomain(DomainSchema, []byte(strings.Join(stmts, ";\n")))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT schema_hash FROM catalog_tables WHERE name = ?`, t.Table).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("read schema hash: %w", err)
	case stored == hash:
		return tx.Commit()
	default:
		s.logger.Info("catalog changed, rebuilding indexes", "table", t.Table)
		if err := dropIndexes(ctx, tx, t.Table); err != nil {
			return err
		}
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_tables (name, schema_hash) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET schema_hash = excluded.schema_hash
	`, t.Table, hash)
	if err != nil {
		return fmt.Errorf("record schema hash: %w", err)
	}
	return tx.Commit()
}

// dropIndexes drops the explicit indexes of table. Automatic indexes such
// as the primary key have no SQL and stay.
func dropIndexes(ctx context.Context, tx *sql.Tx, table string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL
		ORDER BY name ASC
	`, table)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan index name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate indexes: %w", err)
	}

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS "+quoteIdent(name)); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
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

// migrateToV1 creates the table recording each record table's schema
// fingerprint.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS catalog_tables (
			name TEXT PRIMARY KEY,
			schema_hash TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
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
