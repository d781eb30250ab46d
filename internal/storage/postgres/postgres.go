// Package postgres is a storage.Backend over a PostgreSQL connection pool.
// All collections share the ledgerbridge_kv table; keys use the "C"
// collation so ordering matches Go string ordering.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/ledgerbridge/internal/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ledgerbridge_kv (
    collection TEXT  NOT NULL COLLATE "C",
    key        TEXT  NOT NULL COLLATE "C",
    value      BYTEA NOT NULL,
    PRIMARY KEY (collection, key)
)`

// DefaultTimeout bounds every statement, since the backend contract carries
// no context.
const DefaultTimeout = 5 * time.Second

// Backend stores collections in PostgreSQL.
type Backend struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Open connects to dsn and ensures the table exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Backend{pool: pool, timeout: DefaultTimeout}, nil
}

// Close releases the pool.
func (b *Backend) Close() {
	b.pool.Close()
}

// Truncate removes every row. Used by tests to reset shared databases.
func (b *Backend) Truncate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `TRUNCATE ledgerbridge_kv`)
	return err
}

// CreateCollection returns a handle; collections exist implicitly.
func (b *Backend) CreateCollection(name string) (storage.BackendCollection, error) {
	if name == "" {
		return nil, errors.New("collection name must not be empty")
	}
	return &Collection{b: b, name: name}, nil
}

type Collection struct {
	b    *Backend
	name string
}

func (c *Collection) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.b.timeout)
}

func (c *Collection) Get(key string) ([]byte, bool, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	var value []byte
	err := c.b.pool.QueryRow(ctx,
		`SELECT value FROM ledgerbridge_kv WHERE collection = $1 AND key = $2`, c.name, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
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
	ctx, cancel := c.ctx()
	defer cancel()

	_, err := c.b.pool.Exec(ctx,
		`INSERT INTO ledgerbridge_kv (collection, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value`,
		c.name, key, value,
	)
	return err
}

func (c *Collection) Delete(key string) error {
	ctx, cancel := c.ctx()
	defer cancel()

	_, err := c.b.pool.Exec(ctx,
		`DELETE FROM ledgerbridge_kv WHERE collection = $1 AND key = $2`, c.name, key)
	return err
}

func (c *Collection) Iterate(reverse bool, prefix string) storage.BackendIterator {
	return &iterator{c: c, reverse: reverse, prefix: prefix}
}

// iterator fetches one row per Next, keyed on the last returned key.
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

	ctx, cancel := it.c.ctx()
	defer cancel()

	query, args := it.nextQuery()
	var t storage.Tuple
	err := it.c.b.pool.QueryRow(ctx, query, args...).Scan(&t.Key, &t.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		it.done = true
		return storage.Tuple{}, false, nil
	}
	if err != nil {
		it.done = true
		return storage.Tuple{}, false, err
	}

	it.cursor = t.Key
	it.started = true
	return t, true, nil
}

func (it *iterator) nextQuery() (string, []any) {
	var b strings.Builder
	args := []any{it.c.name}
	b.WriteString(`SELECT key, value FROM ledgerbridge_kv WHERE collection = $1`)

	if it.prefix != "" {
		args = append(args, it.prefix)
		fmt.Fprintf(&b, ` AND starts_with(key, $%d)`, len(args))
	}
	if it.started {
		args = append(args, it.cursor)
		if it.reverse {
			fmt.Fprintf(&b, ` AND key < $%d`, len(args))
		} else {
			fmt.Fprintf(&b, ` AND key > $%d`, len(args))
		}
	}
	if it.reverse {
		b.WriteString(` ORDER BY key DESC LIMIT 1`)
	} else {
		b.WriteString(` ORDER BY key ASC LIMIT 1`)
	}
	return b.String(), args
}
