package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEmbedded_CreatesNewDatabase(t *testing.T) {
	_, path := createTestEmbedded(t, testOptions())

	_, err := os.Stat(path)
	assert.NoError(t, err, "archive file was not created")
}

func TestOpenEmbedded_CreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "archive.sqlite3")

	e, err := OpenEmbedded(context.Background(), path, testOptions())
	require.NoError(t, err)
	defer e.Close()

	assert.FileExists(t, path)
	assert.Equal(t, path, e.Path())
}

func TestOpenEmbedded_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.sqlite3")

	for i := 0; i < 3; i++ {
		e, err := OpenEmbedded(context.Background(), path, testOptions())
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, e.Close())
	}
}

func TestOpenEmbedded_WithoutRowID(t *testing.T) {
	e, _ := createTestEmbedded(t, testOptions())

	var sqlText string
	err := e.db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='archive'").Scan(&sqlText)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "WITHOUT ROWID")
	assert.Contains(t, sqlText, "entry TEXT PRIMARY KEY")
}

func TestOpenEmbedded_AppliesPragmas(t *testing.T) {
	opts := testOptions()
	opts.Pragmas = []string{"journal_mode=WAL", "synchronous=NORMAL"}
	e, _ := createTestEmbedded(t, opts)

	var mode string
	require.NoError(t, e.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var sync int
	require.NoError(t, e.db.QueryRow("PRAGMA synchronous").Scan(&sync))
	assert.Equal(t, 1, sync)
}

func TestOpenEmbedded_BusyTimeout(t *testing.T) {
	e, _ := createTestEmbedded(t, testOptions())

	var ms int64
	require.NoError(t, e.db.QueryRow("PRAGMA busy_timeout").Scan(&ms))
	assert.Equal(t, busyTimeout.Milliseconds(), ms)
}

func TestOpenEmbedded_InvalidPragma(t *testing.T) {
	opts := testOptions()
	opts.Pragmas = []string{"journal_mode = = WAL"}
	path := filepath.Join(t.TempDir(), "archive.sqlite3")

	_, err := OpenEmbedded(context.Background(), path, opts)
	assert.Error(t, err)
}

func TestOpenEmbedded_PathWithURICharacters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	names := []string{"a?b.sqlite3", "a?c.sqlite3", "a#b.sqlite3", "a%20b.sqlite3"}

	for i, name := range names {
		e, err := OpenEmbedded(ctx, filepath.Join(dir, name), testOptions())
		require.NoError(t, err, name)
		require.NoError(t, e.Add(ctx, item("k", i)))
		require.NoError(t, e.Close())
	}

	for i, name := range names {
		path := filepath.Join(dir, name)
		assert.FileExists(t, path)
		assert.Equal(t, 1, countEntries(t, path, ""), "%s must hold only its own key", name)

		e, err := OpenEmbedded(ctx, path, testOptions())
		require.NoError(t, err)
		found, err := e.Check(ctx, item("k", i))
		require.NoError(t, err)
		assert.True(t, found, name)
		require.NoError(t, e.Close())
	}
	assert.NoFileExists(t, filepath.Join(dir, "a"))
}

func TestOpenEmbedded_RelativePath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	e, err := OpenEmbedded(context.Background(), "archive.sqlite3", testOptions())
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "archive.sqlite3", e.Path())
	assert.FileExists(t, "archive.sqlite3")
}

func TestOpenEmbedded_PathIsDirectory(t *testing.T) {
	_, err := OpenEmbedded(context.Background(), t.TempDir(), testOptions())
	assert.Error(t, err)
}

func TestEmbedded_CheckAfterAdd(t *testing.T) {
	ctx := context.Background()
	e, _ := createTestEmbedded(t, testOptions())

	it := item("pixiv", 42)
	found, err := e.Check(ctx, it)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "pixiv42_0", it.Key())

	require.NoError(t, e.Add(ctx, it))

	found, err = e.Check(ctx, item("pixiv", 42))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = e.Check(ctx, item("pixiv", 43))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEmbedded_AddIdempotent(t *testing.T) {
	ctx := context.Background()
	e, path := createTestEmbedded(t, testOptions())

	require.NoError(t, e.Add(ctx, item("a", 1)))
	require.NoError(t, e.Add(ctx, item("a", 1)))
	require.NoError(t, e.Finalize(ctx))

	assert.Equal(t, 1, countEntries(t, path, ""))
}

func TestEmbedded_CheckDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	e, path := createTestEmbedded(t, testOptions())

	for i := 0; i < 3; i++ {
		found, err := e.Check(ctx, item("a", 1))
		require.NoError(t, err)
		assert.False(t, found)
	}
	require.NoError(t, e.Finalize(ctx))

	assert.Equal(t, 0, countEntries(t, path, ""))
}

func TestEmbedded_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.sqlite3")

	first, err := OpenEmbedded(ctx, path, testOptions())
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.NoError(t, first.Add(ctx, item("x", i)))
	}
	require.NoError(t, first.Finalize(ctx))

	second, err := OpenEmbedded(ctx, path, testOptions())
	require.NoError(t, err)
	defer second.Close()

	for i := 1; i <= 5; i++ {
		found, err := second.Check(ctx, item("x", i))
		require.NoError(t, err)
		assert.True(t, found, "id %d", i)
	}
	found, err := second.Check(ctx, item("x", 6))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEmbedded_CacheFieldSkipsFormatter(t *testing.T) {
	ctx := context.Background()
	e, _ := createTestEmbedded(t, testOptions())

	// No category/id fields: the formatter would fail.
	it := keyItem("precomputed")
	require.NoError(t, e.Add(ctx, it))
	assert.Equal(t, "precomputed", it.Key())

	found, err := e.Check(ctx, keyItem("precomputed"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEmbedded_CustomCacheField(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.CacheField = "_key"
	e, _ := createTestEmbedded(t, opts)

	require.NoError(t, e.Add(ctx, NewItem(map[string]any{"_key": "k1"})))

	found, err := e.Check(ctx, NewItem(map[string]any{"_key": "k1"}))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEmbedded_KeyIsCachedOnItem(t *testing.T) {
	ctx := context.Background()
	calls := 0
	opts := testOptions()
	opts.Keys = func(meta map[string]any) (string, error) {
		calls++
		return "fixed", nil
	}
	e, _ := createTestEmbedded(t, opts)

	it := NewItem(map[string]any{})
	_, err := e.Check(ctx, it)
	require.NoError(t, err)
	require.NoError(t, e.Add(ctx, it))
	_, err = e.Check(ctx, it)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.NotContains(t, it.Meta, DefaultCacheField, "metadata must not be mutated")
}

func TestEmbedded_KeyFormatError(t *testing.T) {
	ctx := context.Background()
	e, _ := createTestEmbedded(t, testOptions())

	_, err := e.Check(ctx, NewItem(map[string]any{"category": "x"}))
	assert.Error(t, err)
	assert.Error(t, e.Add(ctx, NewItem(map[string]any{})))
}

func TestEmbedded_NoKeyFormat(t *testing.T) {
	e, _ := createTestEmbedded(t, BackendOptions{Logger: discardLogger()})

	_, err := e.Check(context.Background(), item("a", 1))
	assert.ErrorIs(t, err, ErrNoKeyFormat)
}

func TestEmbedded_ClosedLedger(t *testing.T) {
	ctx := context.Background()
	e, _ := createTestEmbedded(t, testOptions())
	require.NoError(t, e.Finalize(ctx))

	_, err := e.Check(ctx, item("a", 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.Add(ctx, item("a", 1)), ErrClosed)
	assert.NoError(t, e.Close(), "second close must not fail")
}

func TestEmbedded_WriteBatchCountsNewKeys(t *testing.T) {
	ctx := context.Background()
	e, _ := createTestEmbedded(t, testOptions())

	n, err := e.writeBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = e.writeBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	keys, err := e.entries(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
}

func TestEmbedded_ConcurrentProcessesShareFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.sqlite3")

	a, err := OpenEmbedded(ctx, path, testOptions())
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenEmbedded(ctx, path, testOptions())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Add(ctx, item("x", 1)))
	found, err := b.Check(ctx, item("x", 1))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEmbedded_String(t *testing.T) {
	e, path := createTestEmbedded(t, testOptions())
	assert.Equal(t, "sqlite:"+path, e.String())
}
