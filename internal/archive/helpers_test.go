package archive

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dlarchive/internal/keyfmt"
)

const testFormat = "{category}{id}_{num}"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() BackendOptions {
	return BackendOptions{
		Keys:   keyfmt.MustCompile(testFormat).Formatter(),
		Logger: discardLogger(),
	}
}

// createTestEmbedded opens a fresh archive in a temp directory.
func createTestEmbedded(t *testing.T, opts BackendOptions) (*Embedded, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.sqlite3")
	e, err := OpenEmbedded(context.Background(), path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, path
}

// item builds metadata for testFormat; its key is "<category><id>_0".
func item(category string, id int) *Item {
	return NewItem(map[string]any{"category": category, "id": id, "num": 0})
}

// keyItem builds an item whose key is given directly via the cache field.
func keyItem(key string) *Item {
	return NewItem(map[string]any{DefaultCacheField: key})
}

// countEntries counts rows in the archive file at path.
func countEntries(t *testing.T, path, table string) int {
	t.Helper()
	e, err := OpenEmbedded(context.Background(), path, BackendOptions{Table: table, Logger: discardLogger()})
	require.NoError(t, err)
	defer e.Close()

	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM "+e.table).Scan(&n))
	return n
}

// seedEmbedded writes keys into the archive at path.
func seedEmbedded(t *testing.T, path, table string, keys ...string) {
	t.Helper()
	e, err := OpenEmbedded(context.Background(), path, BackendOptions{Table: table, Logger: discardLogger()})
	require.NoError(t, err)
	defer e.Close()
	_, err = e.writeBatch(context.Background(), keys)
	require.NoError(t, err)
}
