package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dlarchive/internal/keyfmt"
)

// Mode selects whether writes are buffered until Finalize.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeMemory Mode = "memory"
)

// ParseMode accepts "", "normal" and "memory".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNormal:
		return ModeNormal, nil
	case ModeMemory:
		return ModeMemory, nil
	}
	return "", fmt.Errorf("invalid archive mode %q: must be normal or memory", s)
}

// Config describes the ledger Connect should build.
type Config struct {
	// Location is a SQLite file path or a postgres:// / postgresql:// URI.
	Location string

	// Prefix and Format are concatenated into the key template.
	Prefix string
	Format string

	// Table is the table name; it may contain placeholders when Context is
	// set. Empty selects DefaultTable.
	Table string

	Mode Mode

	// Pragmas are SQLite directives applied in order after open.
	Pragmas []string

	// Context is item metadata used to expand placeholders in a SQLite
	// Location and in Table.
	Context map[string]any

	// CacheField overrides DefaultCacheField.
	CacheField string

	// FallbackPath overrides FallbackPath().
	FallbackPath string

	// ConnectTimeout bounds connecting to PostgreSQL. Zero means no limit
	// beyond ctx.
	ConnectTimeout time.Duration

	// SeenCacheSize enables Remote's cache of keys known to be present.
	SeenCacheSize int

	Logger *slog.Logger
}

// Connect builds the ledger described by cfg.
//
// A PostgreSQL location that cannot be opened is replaced by the fallback
// SQLite archive; the caller gets a working ledger either way. When
// PostgreSQL is reachable and the fallback archive exists, its keys are
// replayed into PostgreSQL first. Replay failures are logged and never fail
// Connect. SQLite errors, including for the fallback archive, are returned.
func Connect(ctx context.Context, cfg Config) (Ledger, error) {
	if cfg.Location == "" {
		return nil, errors.New("archive: no location configured")
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}

	// Without a format, only items carrying a precomputed key can be used.
	var keys keyfmt.Formatter
	if src := cfg.Prefix + cfg.Format; src != "" {
		tmpl, err := keyfmt.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("archive: key format: %w", err)
		}
		keys = tmpl.Formatter()
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("archive_run", uuid.Must(uuid.NewV7()).String())

	table := cfg.Table
	if cfg.Context != nil {
		if table, err = bindContext(table, cfg.Context); err != nil {
			return nil, fmt.Errorf("archive: table name: %w", err)
		}
	}

	opts := BackendOptions{
		Table:         table,
		Pragmas:       cfg.Pragmas,
		Keys:          keys,
		CacheField:    cfg.CacheField,
		SeenCacheSize: cfg.SeenCacheSize,
		Logger:        log,
	}
	fallback := cfg.FallbackPath
	if fallback == "" {
		fallback = FallbackPath()
	}

	var path string
	if IsRemote(cfg.Location) {
		r, err := openRemote(ctx, cfg.Location, cfg.ConnectTimeout, opts)
		if err == nil {
			reconcile(ctx, r, fallback, table, log)
			return wrap(r, mode), nil
		}
		fallbacksTotal.Inc()
		log.Warn("postgres archive unavailable, falling back to sqlite",
			"error", err,
			"fallback", fallback,
		)
		path = fallback
	} else {
		path = ExpandPath(cfg.Location)
		if cfg.Context != nil {
			if path, err = bindContext(path, cfg.Context); err != nil {
				return nil, fmt.Errorf("archive: location: %w", err)
			}
		}
	}

	e, err := OpenEmbedded(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return wrap(e, mode), nil
}

// bindContext fills placeholders in src from item metadata. Text that has no
// placeholders, or does not parse as a template at all, is used as is.
func bindContext(src string, meta map[string]any) (string, error) {
	t, err := keyfmt.Compile(src)
	if err != nil || !t.HasFields() {
		return src, nil
	}
	return t.Format(meta)
}

func openRemote(ctx context.Context, uri string, timeout time.Duration, opts BackendOptions) (*Remote, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return OpenRemote(ctx, uri, opts)
}

// reconcile replays a leftover fallback archive into r. The fallback file
// is kept.
func reconcile(ctx context.Context, r *Remote, fallback, table string, log *slog.Logger) {
	info, err := os.Stat(fallback)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug("could not inspect fallback archive", "fallback", fallback, "error", err)
		}
		return
	}
	if info.Size() == 0 {
		return
	}

	n, err := r.ReplayFrom(ctx, fallback, table, false)
	if err != nil {
		log.Error("postgres is up but syncing the fallback archive failed", "fallback", fallback, "error", err)
		return
	}
	log.Info("postgres is up, synced fallback archive", "fallback", fallback, "inserted", n)
}

func wrap(b backend, mode Mode) Ledger {
	if mode == ModeMemory {
		return newMemory(b)
	}
	return b
}
