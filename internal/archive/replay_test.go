package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_InsertsOnlyMissingKeys(t *testing.T) {
	ctx := context.Background()
	fallback := filepath.Join(t.TempDir(), FallbackName)
	seedEmbedded(t, fallback, "", "a", "b", "c")

	dst, dstPath := createTestEmbedded(t, testOptions())
	_, err := dst.writeBatch(ctx, []string{"b"})
	require.NoError(t, err)

	n, err := replay(ctx, dst, fallback, "", false, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	keys, err := dst.entries(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
	require.NoError(t, dst.Close())
	assert.Equal(t, 3, countEntries(t, dstPath, ""))

	assert.FileExists(t, fallback, "fallback must be kept without deleteSource")
}

func TestReplay_CustomTable(t *testing.T) {
	ctx := context.Background()
	fallback := filepath.Join(t.TempDir(), FallbackName)
	seedEmbedded(t, fallback, "gallery", "x", "y")

	dst, _ := createTestEmbedded(t, testOptions())

	n, err := replay(ctx, dst, fallback, "gallery", false, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReplay_LargeFallbackUsesBulkPath(t *testing.T) {
	ctx := context.Background()
	fallback := filepath.Join(t.TempDir(), FallbackName)
	keys := make([]string, 250)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%03d", i)
	}
	seedEmbedded(t, fallback, "", keys...)

	dst, _ := createTestEmbedded(t, testOptions())
	n, err := replay(ctx, dst, fallback, "", false, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(250), n)
}

func TestReplay_MissingFallback(t *testing.T) {
	dst, _ := createTestEmbedded(t, testOptions())
	missing := filepath.Join(t.TempDir(), "nope.sqlite3")

	n, err := replay(context.Background(), dst, missing, "", true, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoFileExists(t, missing)
}

func TestReplay_EmptyFallback(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), FallbackName)
	seedEmbedded(t, fallback, "")

	dst, _ := createTestEmbedded(t, testOptions())
	n, err := replay(context.Background(), dst, fallback, "", true, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, fallback, "nothing replayed, nothing deleted")
}

func TestReplay_LeavesFallbackUntouched(t *testing.T) {
	ctx := context.Background()
	fallback := filepath.Join(t.TempDir(), FallbackName)
	seedEmbedded(t, fallback, "", "a")
	before, err := os.ReadFile(fallback)
	require.NoError(t, err)

	dst, _ := createTestEmbedded(t, testOptions())
	n, err := replay(ctx, dst, fallback, "gallery", false, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, n, "fallback has no gallery table")

	after, err := os.ReadFile(fallback)
	require.NoError(t, err)
	assert.Equal(t, before, after, "replay must not create a table in the fallback")

	n, err = replay(ctx, dst, fallback, "", false, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	after, err = os.ReadFile(fallback)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReplay_DeleteSource(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), FallbackName)
	seedEmbedded(t, fallback, "", "a")

	dst, _ := createTestEmbedded(t, testOptions())
	n, err := replay(context.Background(), dst, fallback, "", true, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, statErr := os.Stat(fallback)
	assert.True(t, os.IsNotExist(statErr), "fallback should be removed")
}

func TestReplay_FailureIsReturnedAndSourceKept(t *testing.T) {
	ctx := context.Background()
	fallback := filepath.Join(t.TempDir(), FallbackName)
	seedEmbedded(t, fallback, "", "a", "b")

	dst, _ := createTestEmbedded(t, testOptions())
	require.NoError(t, dst.Close())

	n, err := replay(ctx, dst, fallback, "", true, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, n)
	assert.FileExists(t, fallback, "failed replay must not delete the fallback")
}
