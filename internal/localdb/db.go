package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// FileName is the sqlite file each cell keeps under its directory.
const FileName = "cell.sqlite"

// ErrClosed is returned when a statement is run against a closed DB.
var ErrClosed = errors.New("localdb: database is closed")

// DB is the SQL surface of a single cell. It owns exactly one sqlite
// connection; callers are expected to serialise access per cell.
// No schema is imposed on the file.
type DB struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens/creates the cell database file under dir.
func Open(dir string) (*DB, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: the cell is a serialized unit and transactions must
	// see the same connection as the statements they wrap.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	// WAL is best effort.
	_, _ = sqlDB.Exec("PRAGMA journal_mode=WAL;")
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{db: sqlDB, path: path}, nil
}

// Close releases the sqlite handle. It is safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Exec runs one statement with positional args and materialises its cursor.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (*Cursor, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	return execCursor(ctx, d.db, query, args...)
}

// Tx is the statement surface available inside Transaction.
type Tx struct{ tx *sql.Tx }

// Exec runs one statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (*Cursor, error) {
	return execCursor(ctx, t.tx, query, args...)
}

// Transaction runs f inside a single all-or-nothing transaction. Any error
// returned by f rolls back every statement f executed.
func (d *DB) Transaction(ctx context.Context, f func(ctx context.Context, tx *Tx) error) error {
	if d.isClosed() {
		return ErrClosed
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := f(ctx, &Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	err = tx.Commit()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil
	}
	return err
}

func (d *DB) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// execCursor executes query on q and drains every row. Write counters come
// from total_changes() sampled around the statement on the same connection.
func execCursor(ctx context.Context, q querier, query string, args ...any) (*Cursor, error) {
	before, err := totalChanges(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	cur := &Cursor{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			rows.Close()
			return nil, err
		}
		cur.Rows = append(cur.Rows, raw)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	after, err := totalChanges(ctx, q)
	if err != nil {
		return nil, err
	}
	cur.RowsRead = int64(len(cur.Rows))
	cur.RowsWritten = after - before
	return cur, nil
}

func totalChanges(ctx context.Context, q querier) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT total_changes()").Scan(&n); err != nil {
		return 0, fmt.Errorf("read change counter: %w", err)
	}
	return n, nil
}
