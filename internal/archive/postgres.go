package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
)

// compile-time interface checks
var (
	_ Ledger      = (*Remote)(nil)
	_ backend     = (*Remote)(nil)
	_ batchWriter = (*Remote)(nil)
)

// Remote is a ledger stored in a PostgreSQL table. It holds one connection
// for its lifetime.
//
// Add and Check never fail because of the database: errors are logged, Add
// drops the write and Check reports "not found". A long batch run keeps going
// through transient outages at the cost of possibly refetching an item.
type Remote struct {
	conn     *pgx.Conn
	host     string
	database string
	table    string
	keys     keyer
	log      *slog.Logger

	// seen caches keys known to be present. Keys are never deleted, so a
	// positive answer stays valid for the ledger's lifetime.
	seen *lru.Cache[string, struct{}]

	stmtSelect string
	stmtInsert string
}

// OpenRemote connects to the PostgreSQL database at uri and creates the table
// if it is absent.
func OpenRemote(ctx context.Context, uri string, opts BackendOptions) (*Remote, error) {
	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	table := QuoteTable(opts.Table)
	cfg := conn.Config()
	r := &Remote{
		conn:     conn,
		host:     cfg.Host,
		database: cfg.Database,
		table:    table,
		keys:     opts.keyer(),
		log:      opts.logger().With("backend", kindPostgres, "host", cfg.Host, "database", cfg.Database),

		stmtSelect: "SELECT true FROM " + table + " WHERE entry=$1 LIMIT 1",
		stmtInsert: "INSERT INTO " + table + " (entry) VALUES ($1) ON CONFLICT DO NOTHING",
	}

	if opts.SeenCacheSize > 0 {
		seen, err := lru.New[string, struct{}](opts.SeenCacheSize)
		if err != nil {
			conn.Close(ctx)
			return nil, fmt.Errorf("seen cache: %w", err)
		}
		r.seen = seen
	}

	err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+table+" (entry TEXT PRIMARY KEY)")
		return err
	})
	if err != nil {
		r.log.Error("creating archive table failed", "table", table, "error", err)
		conn.Close(ctx)
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	return r, nil
}

func (r *Remote) String() string {
	return fmt.Sprintf("%s://%s/%s", kindPostgres, r.host, r.database)
}

func (r *Remote) kind() string { return kindPostgres }

func (r *Remote) keyOf(it *Item) (string, error) { return r.keys.keyOf(it) }

// Check reports whether the item's key is present. Database errors are
// logged and reported as "not found".
func (r *Remote) Check(ctx context.Context, it *Item) (bool, error) {
	if r.conn == nil {
		return false, ErrClosed
	}
	key, err := r.keys.keyOf(it)
	if err != nil {
		return false, err
	}
	if r.seen != nil && r.seen.Contains(key) {
		checksTotal.WithLabelValues(kindPostgres, resultCached).Inc()
		return true, nil
	}

	var found bool
	err = r.conn.QueryRow(ctx, r.stmtSelect, key).Scan(&found)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		checksTotal.WithLabelValues(kindPostgres, resultMiss).Inc()
		return false, nil
	case err != nil:
		checksTotal.WithLabelValues(kindPostgres, resultError).Inc()
		r.log.Error("checking entry failed", "key", key, "error", err)
		return false, nil
	}

	checksTotal.WithLabelValues(kindPostgres, resultHit).Inc()
	r.remember(key)
	return true, nil
}

// Add records the item's key in its own transaction. Database errors are
// logged, the transaction is rolled back and the write is dropped.
func (r *Remote) Add(ctx context.Context, it *Item) error {
	if r.conn == nil {
		return ErrClosed
	}
	key, err := r.keys.keyOf(it)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, r.stmtInsert, key)
		return err
	})
	if err != nil {
		opErrorsTotal.WithLabelValues(kindPostgres, "add").Inc()
		r.log.Error("writing entry failed", "key", key, "error", err)
		return nil
	}

	addsTotal.WithLabelValues(kindPostgres).Inc()
	r.remember(key)
	return nil
}

// Finalize closes the connection. Remote writes are never buffered.
func (r *Remote) Finalize(ctx context.Context) error {
	return r.close(ctx)
}

// Close closes the connection. Safe to call more than once.
func (r *Remote) Close() error {
	return r.close(context.Background())
}

func (r *Remote) close(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close(ctx)
	r.conn = nil
	return err
}

// ReplayFrom inserts every key of the SQLite archive at path (table name as
// for BackendOptions.Table) into this ledger's table and returns the number
// of keys that were new. With deleteSource, the SQLite file is removed after
// a successful replay.
func (r *Remote) ReplayFrom(ctx context.Context, path, table string, deleteSource bool) (int64, error) {
	return replay(ctx, r, path, table, deleteSource, r.log)
}

// flush writes keys in one transaction. Failures are logged and dropped like
// any other Remote write.
func (r *Remote) flush(ctx context.Context, keys []string) error {
	n, err := r.writeBatch(ctx, keys)
	if err != nil {
		opErrorsTotal.WithLabelValues(kindPostgres, "flush").Inc()
		r.log.Error("writing entries failed", "entries", len(keys), "error", err)
		return nil
	}
	flushedTotal.WithLabelValues(kindPostgres).Add(float64(n))
	return nil
}

// writeBatch inserts keys in one transaction, one statement per key for
// small batches and a single pgx.Batch round trip otherwise.
func (r *Remote) writeBatch(ctx context.Context, keys []string) (int64, error) {
	if r.conn == nil {
		return 0, ErrClosed
	}

	var inserted int64
	err := pgx.BeginFunc(ctx, r.conn, func(tx pgx.Tx) error {
		inserted = 0
		if len(keys) < bulkThreshold {
			for _, key := range keys {
				tag, err := tx.Exec(ctx, r.stmtInsert, key)
				if err != nil {
					return fmt.Errorf("insert %q: %w", key, err)
				}
				inserted += tag.RowsAffected()
			}
			return nil
		}

		batch := &pgx.Batch{}
		for _, key := range keys {
			batch.Queue(r.stmtInsert, key)
		}
		br := tx.SendBatch(ctx, batch)
		for range keys {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("batch insert: %w", err)
			}
			inserted += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("write batch: %w", err)
	}

	for _, key := range keys {
		r.remember(key)
	}
	return inserted, nil
}

func (r *Remote) remember(key string) {
	if r.seen != nil {
		r.seen.Add(key, struct{}{})
	}
}
