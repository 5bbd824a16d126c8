package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// FallbackName is the file name of the fallback SQLite archive.
const FallbackName = "archive-fallback.sqlite3"

const appDir = "dlarchive"

// FallbackPath returns the default fallback archive location,
// $XDG_DATA_HOME/dlarchive/archive-fallback.sqlite3.
func FallbackPath() string {
	return filepath.Join(xdg.DataHome, appDir, FallbackName)
}

// IsRemote reports whether location addresses a PostgreSQL database.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "postgres://") ||
		strings.HasPrefix(location, "postgresql://")
}

// ExpandPath expands environment variables and a leading "~" in p.
func ExpandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" {
		return xdg.Home
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return filepath.Join(xdg.Home, p[2:])
	}
	return p
}
