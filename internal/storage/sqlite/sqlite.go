// Package sqlite is a storage.Backend persisting collections in a single
// SQLite database.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Two drivers are supported. DriverCGO (mattn/go-sqlite3) is the default;
// DriverPure (modernc.org/sqlite) builds without cgo.
//
// Iterators are keyset-paginated: every Next issues one query for the
// first key after the cursor, so no statement stays open between calls and
// rows written behind the cursor's direction are observed.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/ledgerbridge/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - kv table only
// 1 - collections registry table
const currentSchemaVersion = 1

// Driver names as registered with database/sql.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// Backend stores every collection in one SQLite database.
type Backend struct {
	db *sql.DB
}

type options struct {
	driver string
}

// Option configures Open.
type Option func(*options)

// WithDriver selects DriverCGO or DriverPure.
func WithDriver(name string) Option {
	return func(o *options) { o.driver = name }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Backend, error) {
	o := options{driver: DriverCGO}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver != DriverCGO && o.driver != DriverPure {
		return nil, fmt.Errorf("unknown sqlite driver %q", o.driver)
	}

	db, err := sql.Open(o.driver, path)
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

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Backend{db: db}, nil
}

// New wraps a database the caller has already opened and migrated. The
// backend takes ownership: Close closes db.
func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// Close closes the database connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

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

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
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

// migrateToV1 registers collections that existed before the registry table.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO collections (name) SELECT DISTINCT collection FROM kv`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// CreateCollection registers name and returns its handle.
func (b *Backend) CreateCollection(name string) (storage.BackendCollection, error) {
	if name == "" {
		return nil, errors.New("collection name must not be empty")
	}
	if _, err := b.db.Exec(`INSERT OR IGNORE INTO collections (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("register collection %q: %w", name, err)
	}
	return &Collection{db: b.db, name: name}, nil
}

// Collections lists registered collection names in key order.
func (b *Backend) Collections(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Collection is one named namespace inside the kv table.
type Collection struct {
	db   *sql.DB
	name string
}

func (c *Collection) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRow(`SELECT value FROM kv WHERE collection = ? AND key = ?`, c.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *Collection) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := c.db.Exec(`
		INSERT INTO kv (collection, key, value) VALUES (?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value
	`, c.name, key, value)
	return err
}

func (c *Collection) Delete(key string) error {
	_, err := c.db.Exec(`DELETE FROM kv WHERE collection = ? AND key = ?`, c.name, key)
	return err
}

func (c *Collection) Iterate(reverse bool, prefix string) storage.BackendIterator {
	return &iterator{c: c, reverse: reverse, prefix: prefix}
}

type iterator struct {
	c       *Collection
	reverse bool
	prefix  string
	cursor  string
	started bool
	done    bool
}

func (it *iterator) Next() (storage.Tuple, bool, error) {
	if it.done {
		return storage.Tuple{}, false, nil
	}

	query, args := it.nextQuery()
	var t storage.Tuple
	err := it.c.db.QueryRow(query, args...).Scan(&t.Key, &t.Value)
	if errors.Is(err, sql.ErrNoRows) {
		it.done = true
		return storage.Tuple{}, false, nil
	}
	if err != nil {
		it.done = true
		return storage.Tuple{}, false, err
	}
	if !strings.HasPrefix(t.Key, it.prefix) {
		it.done = true
		return storage.Tuple{}, false, nil
	}

	it.cursor = t.Key
	it.started = true
	return t, true, nil
}

func (it *iterator) nextQuery() (string, []any) {
	var b strings.Builder
	args := []any{it.c.name}
	b.WriteString(`SELECT key, value FROM kv WHERE collection = ?`)

	if it.prefix != "" {
		b.WriteString(` AND key >= ?`)
		args = append(args, it.prefix)
		if end, ok := prefixEnd(it.prefix); ok {
			b.WriteString(` AND key < ?`)
			args = append(args, end)
		}
	}
	if it.started {
		if it.reverse {
			b.WriteString(` AND key < ?`)
		} else {
			b.WriteString(` AND key > ?`)
		}
		args = append(args, it.cursor)
	}
	if it.reverse {
		b.WriteString(` ORDER BY key DESC LIMIT 1`)
	} else {
		b.WriteString(` ORDER BY key ASC LIMIT 1`)
	}
	return b.String(), args
}

// prefixEnd returns the smallest string greater than every string with the
// given prefix, or false when no such bound exists.
func prefixEnd(prefix string) (string, bool) {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1]), true
		}
	}
	return "", false
}
