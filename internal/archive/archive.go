package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dlarchive/internal/keyfmt"
)

const (
	// DefaultTable is the table used when no name is configured.
	DefaultTable = "archive"

	// DefaultCacheField is the metadata field consulted for a precomputed key.
	DefaultCacheField = "_archive_key"

	// bulkThreshold is the batch size from which writes switch from one
	// statement per key to a prepared statement or pgx batch.
	bulkThreshold = 100

	kindSQLite   = "sqlite"
	kindPostgres = "postgres"
	kindMemory   = "memory"
)

var (
	// ErrClosed is returned by operations on a finalized ledger.
	ErrClosed = errors.New("archive: ledger is closed")

	// ErrNoKeyFormat is returned when a ledger without a key formatter is
	// asked to derive a key.
	ErrNoKeyFormat = errors.New("archive: no key format configured")
)

// Ledger is the capability set consumed by the download pipeline.
//
// Check reports whether the item was recorded before. Add records it.
// Finalize flushes pending writes and closes the store; it must be called
// exactly once, after the last Add.
type Ledger interface {
	Check(ctx context.Context, it *Item) (bool, error)
	Add(ctx context.Context, it *Item) error
	Finalize(ctx context.Context) error
}

// Item is one unit of work offered to a ledger. The derived key is cached on
// the Item, so a Check followed by an Add formats the key only once. Meta is
// never modified.
type Item struct {
	Meta map[string]any
	key  string
}

// NewItem wraps item metadata.
func NewItem(meta map[string]any) *Item {
	return &Item{Meta: meta}
}

// Key returns the cached ledger key, or "" before the first Check or Add.
func (it *Item) Key() string {
	return it.key
}

// BackendOptions configures OpenEmbedded and OpenRemote.
type BackendOptions struct {
	// Table is the raw table name. Empty selects DefaultTable.
	Table string

	// Pragmas are SQLite directives run as "PRAGMA <directive>" after open.
	// Ignored by Remote.
	Pragmas []string

	// Keys derives ledger keys from item metadata.
	Keys keyfmt.Formatter

	// CacheField overrides DefaultCacheField.
	CacheField string

	// SeenCacheSize bounds Remote's cache of keys known to be present.
	// Zero disables it. Ignored by Embedded.
	SeenCacheSize int

	Logger *slog.Logger
}

func (o BackendOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o BackendOptions) keyer() keyer {
	field := o.CacheField
	if field == "" {
		field = DefaultCacheField
	}
	return keyer{format: o.Keys, cacheField: field}
}

type keyer struct {
	format     keyfmt.Formatter
	cacheField string
}

// keyOf resolves the item's key: the key cached on the Item, then a string
// under the cache field in Meta, then the formatter.
func (k keyer) keyOf(it *Item) (string, error) {
	if it.key != "" {
		return it.key, nil
	}
	if v, ok := it.Meta[k.cacheField].(string); ok && v != "" {
		it.key = v
		return v, nil
	}
	if k.format == nil {
		return "", ErrNoKeyFormat
	}
	key, err := k.format(it.Meta)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	it.key = key
	return key, nil
}

// backend is a physical store that Memory can wrap.
type backend interface {
	Ledger
	keyOf(it *Item) (string, error)

	// flush writes keys in one transaction, applying the backend's error
	// policy.
	flush(ctx context.Context, keys []string) error
	kind() string
	Close() error
}

// batchWriter inserts keys in one transaction and reports how many were new.
type batchWriter interface {
	writeBatch(ctx context.Context, keys []string) (int64, error)
}
