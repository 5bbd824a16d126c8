package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// replay copies every key of the SQLite archive at path into dst and returns
// the number of keys dst did not have. A missing or empty archive replays
// nothing. Removing the source after success is best effort.
func replay(ctx context.Context, dst batchWriter, path, table string, deleteSource bool, log *slog.Logger) (int64, error) {
	log = log.With("fallback", path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Debug("no fallback archive to sync")
		return 0, nil
	}

	src, err := openReadOnly(ctx, path, table, log)
	if err != nil {
		return 0, fmt.Errorf("replay: open fallback: %w", err)
	}
	defer src.Close()

	exists, err := src.hasTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}
	if !exists {
		log.Info("fallback archive has no table to sync", "table", src.table)
		return 0, nil
	}

	keys, err := src.entries(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}
	if len(keys) == 0 {
		log.Info("no new entries to sync")
		return 0, nil
	}

	inserted, err := dst.writeBatch(ctx, keys)
	if err != nil {
		replayFailuresTotal.Inc()
		log.Error("syncing fallback archive failed", "entries", len(keys), "error", err)
		return 0, fmt.Errorf("replay %s: %w", path, err)
	}
	replayedTotal.Add(float64(inserted))
	log.Info("synced fallback archive", "entries", len(keys), "inserted", inserted)

	if deleteSource {
		if err := src.Close(); err != nil {
			log.Error("closing fallback archive failed", "error", err)
		}
		if err := os.Remove(path); err != nil {
			log.Error("removing fallback archive failed", "error", err)
		} else {
			log.Info("removed fallback archive")
		}
	}

	return inserted, nil
}
