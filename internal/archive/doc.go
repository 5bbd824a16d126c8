// Package archive provides the download archive: a presence-only ledger that
// records which items a download run has already processed.
//
// # Backends
//
//   - Embedded: a local SQLite file (github.com/mattn/go-sqlite3)
//   - Remote: a PostgreSQL table over one pgx connection
//   - Memory: wraps either backend and defers writes until Finalize
//
// All three satisfy Ledger. Connect selects one from a location string:
// locations starting with postgres:// or postgresql:// select Remote, any
// other location is a SQLite file path.
//
// # Fallback and replay
//
// When Remote cannot be constructed, Connect logs a warning and opens the
// fallback SQLite file (see FallbackPath) instead. The next time Remote comes
// up, Connect replays every key from the fallback file into PostgreSQL. The
// fallback file is kept; Remote.ReplayFrom with deleteSource=true removes it.
//
// # Schema
//
// One table per ledger with a single column:
//
//	CREATE TABLE archive (entry TEXT PRIMARY KEY)
//
// SQLite tables are created WITHOUT ROWID where supported.
//
// # Error policy
//
//   - SQLite errors are returned to the caller.
//   - PostgreSQL Add and Check errors are logged; Add becomes a no-op and
//     Check reports "not found".
//   - Replay errors are returned by ReplayFrom.
//   - Failing to remove a replayed fallback file is only logged.
//
// # Usage
//
//	l, err := archive.Connect(ctx, archive.Config{
//	    Location: "~/.local/share/dl/archive.sqlite3",
//	    Prefix:   "pixiv",
//	    Format:   "{id}_p{num}",
//	})
//	if err != nil {
//	    return err
//	}
//	item := archive.NewItem(meta)
//	seen, err := l.Check(ctx, item)
//	...
//	if err := l.Add(ctx, item); err != nil {
//	    return err
//	}
//	...
//	return l.Finalize(ctx)
//
// A ledger is not safe for concurrent use.
package archive
