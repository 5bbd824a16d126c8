package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dlarchive/internal/archive"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Delete bool
}

// SyncResult is the output of the sync command.
type SyncResult struct {
	Fallback string `json:"fallback"`
	Inserted int64  `json:"inserted"`
	Deleted  bool   `json:"deleted"`
}

func (r SyncResult) Text() string {
	s := fmt.Sprintf("synced %d new entries from %s", r.Inserted, r.Fallback)
	if r.Deleted {
		s += " (removed)"
	}
	return s
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay the fallback archive into PostgreSQL",
		Long: `Copy every entry of the local fallback archive into the PostgreSQL
archive. Entries already present are skipped. With --delete the fallback file
is removed after a successful sync.

Exit codes:
  0 - Sync succeeded (or there was nothing to sync)
  1 - Sync failed; the fallback file is kept
  2 - Command error (archive is not PostgreSQL or is unreachable)

Examples:
  dlarchive sync --archive postgres://localhost/dl
  dlarchive sync --delete --fallback ~/backup/archive-fallback.sqlite3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "remove the fallback file after a successful sync")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd, opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if !archive.IsRemote(cfg.Location) {
		return NewExitError(ExitCommandError, "sync needs a postgres:// archive location")
	}
	fallback := cfg.FallbackPath
	if fallback == "" {
		fallback = archive.FallbackPath()
	}

	ctx := cmd.Context()
	connCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	r, err := archive.OpenRemote(connCtx, cfg.Location, archive.BackendOptions{
		Table:  cfg.Table,
		Logger: newLogger(cmd.ErrOrStderr(), opts.Verbose),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to archive", err)
	}
	defer r.Close()

	existed := fileExists(fallback)
	n, err := r.ReplayFrom(ctx, fallback, cfg.Table, opts.Delete)
	if err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	result := SyncResult{Fallback: fallback, Inserted: n, Deleted: existed && !fileExists(fallback)}
	if err := out.Success(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
