package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// busyTimeout is how long SQLite waits on a lock held by another process.
const busyTimeout = 60 * time.Second

// compile-time interface checks
var (
	_ Ledger      = (*Embedded)(nil)
	_ backend     = (*Embedded)(nil)
	_ batchWriter = (*Embedded)(nil)
)

// Embedded is a ledger stored in a local SQLite file.
type Embedded struct {
	db    *sql.DB
	path  string
	table string
	keys  keyer
	log   *slog.Logger

	stmtSelect string
	stmtInsert string
}

// OpenEmbedded opens or creates the SQLite archive at path and ensures its
// table exists. A missing parent directory is created.
func OpenEmbedded(ctx context.Context, path string, opts BackendOptions) (*Embedded, error) {
	db, err := openSQLite(ctx, path, false)
	if err != nil {
		dir := filepath.Dir(path)
		if _, statErr := os.Stat(dir); !errors.Is(statErr, fs.ErrNotExist) {
			return nil, err
		}
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create archive directory: %w", mkErr)
		}
		if db, err = openSQLite(ctx, path, false); err != nil {
			return nil, err
		}
	}

	table := QuoteTable(opts.Table)
	e := &Embedded{
		db:    db,
		path:  path,
		table: table,
		keys:  opts.keyer(),
		log:   opts.logger().With("backend", kindSQLite, "path", path),

		stmtSelect: "SELECT 1 FROM " + table + " WHERE entry=? LIMIT 1",
		stmtInsert: "INSERT OR IGNORE INTO " + table + " (entry) VALUES (?)",
	}

	if err := e.applyPragmas(ctx, opts.Pragmas); err != nil {
		db.Close()
		return nil, err
	}
	if err := e.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return e, nil
}

func openSQLite(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	params := url.Values{
		"_busy_timeout": {strconv.FormatInt(busyTimeout.Milliseconds(), 10)},
	}
	if readOnly {
		params.Set("mode", "ro")
	}
	dsn, err := sqliteDSN(path, params)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	// Pragmas are per connection, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return db, nil
}

// sqliteDSN builds a file: URI for path. The driver splits plain DSNs at the
// first '?', so a path like "a?b.sqlite3" must be percent-encoded to keep
// its name.
func sqliteDSN(path string, params url.Values) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: params.Encode()}
	return u.String(), nil
}

// openReadOnly opens an existing archive for reading only. Nothing is
// created: neither the file, its directory nor the table.
func openReadOnly(ctx context.Context, path, table string, log *slog.Logger) (*Embedded, error) {
	db, err := openSQLite(ctx, path, true)
	if err != nil {
		return nil, err
	}
	return &Embedded{
		db:    db,
		path:  path,
		table: QuoteTable(table),
		log:   log.With("backend", kindSQLite, "path", path),
	}, nil
}

// hasTable reports whether the archive table exists.
func (e *Embedded) hasTable(ctx context.Context) (bool, error) {
	if e.db == nil {
		return false, ErrClosed
	}
	var one int
	err := e.db.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type='table' AND name=?", unquoteTable(e.table)).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("look up table %s: %w", e.table, err)
	}
	return true, nil
}

func (e *Embedded) applyPragmas(ctx context.Context, pragmas []string) error {
	for _, p := range pragmas {
		if _, err := e.db.ExecContext(ctx, "PRAGMA "+p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

// applySchema creates the table if it is absent. WITHOUT ROWID needs SQLite
// 3.8.2; older engines get a plain rowid table with the same semantics.
func (e *Embedded) applySchema(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+e.table+" (entry TEXT PRIMARY KEY) WITHOUT ROWID")
	if err == nil {
		return nil
	}
	e.log.Debug("WITHOUT ROWID rejected, using rowid table", "error", err)

	if _, err := e.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+e.table+" (entry TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("create table %s: %w", e.table, err)
	}
	return nil
}

// Path returns the archive file location.
func (e *Embedded) Path() string { return e.path }

func (e *Embedded) String() string { return kindSQLite + ":" + e.path }

func (e *Embedded) kind() string { return kindSQLite }

func (e *Embedded) keyOf(it *Item) (string, error) { return e.keys.keyOf(it) }

// Check reports whether the item's key is present.
func (e *Embedded) Check(ctx context.Context, it *Item) (bool, error) {
	if e.db == nil {
		return false, ErrClosed
	}
	key, err := e.keys.keyOf(it)
	if err != nil {
		return false, err
	}

	var one int
	err = e.db.QueryRowContext(ctx, e.stmtSelect, key).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		checksTotal.WithLabelValues(kindSQLite, resultMiss).Inc()
		return false, nil
	case err != nil:
		checksTotal.WithLabelValues(kindSQLite, resultError).Inc()
		return false, fmt.Errorf("check %q: %w", key, err)
	}
	checksTotal.WithLabelValues(kindSQLite, resultHit).Inc()
	return true, nil
}

// Add records the item's key. Adding a present key is a no-op.
func (e *Embedded) Add(ctx context.Context, it *Item) error {
	if e.db == nil {
		return ErrClosed
	}
	key, err := e.keys.keyOf(it)
	if err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, e.stmtInsert, key); err != nil {
		return fmt.Errorf("add %q: %w", key, err)
	}
	addsTotal.WithLabelValues(kindSQLite).Inc()
	return nil
}

// Finalize closes the archive. Embedded writes are never buffered.
func (e *Embedded) Finalize(ctx context.Context) error {
	return e.Close()
}

// Close releases the database handle. Safe to call more than once.
func (e *Embedded) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

func (e *Embedded) flush(ctx context.Context, keys []string) error {
	n, err := e.writeBatch(ctx, keys)
	if err != nil {
		return err
	}
	flushedTotal.WithLabelValues(kindSQLite).Add(float64(n))
	return nil
}

// writeBatch inserts keys in one transaction and returns the number of keys
// that were not yet present.
func (e *Embedded) writeBatch(ctx context.Context, keys []string) (int64, error) {
	if e.db == nil {
		return 0, ErrClosed
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	exec := func(key string) (sql.Result, error) {
		return tx.ExecContext(ctx, e.stmtInsert, key)
	}
	if len(keys) >= bulkThreshold {
		stmt, err := tx.PrepareContext(ctx, e.stmtInsert)
		if err != nil {
			return 0, fmt.Errorf("write batch: prepare: %w", err)
		}
		defer stmt.Close()
		exec = func(key string) (sql.Result, error) {
			return stmt.ExecContext(ctx, key)
		}
	}

	var inserted int64
	for _, key := range keys {
		res, err := exec(key)
		if err != nil {
			return 0, fmt.Errorf("write batch: insert %q: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write batch: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write batch: commit: %w", err)
	}
	return inserted, nil
}

// entries returns every key in the table.
func (e *Embedded) entries(ctx context.Context) ([]string, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	rows, err := e.db.QueryContext(ctx, "SELECT entry FROM "+e.table)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("read entries: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return keys, nil
}
