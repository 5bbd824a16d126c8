package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

const testKey = "{category}{id}"

type cliResult struct {
	stdout string
	stderr string
	code   int
}

// runCLI executes the CLI with stdin and args. DLARCHIVE_URL is cleared so
// the environment of the test run cannot leak in.
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	t.Setenv(EnvArchive, "")

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func tempArchive(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "archive.sqlite3")
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
