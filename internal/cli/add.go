package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dlarchive/internal/archive"
)

// AddResult is the output of the add command.
type AddResult struct {
	Key string `json:"key"`
}

func (r AddResult) Text() string { return "added: " + r.Key }

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <field=value>...",
		Short: "Record an item as archived",
		Long: `Derive the item's key from the given fields and record it. Adding a key
that is already present does nothing.

Examples:
  dlarchive add --archive ./archive.sqlite3 --key '{category}{id}' category=gallery id=42
  DLARCHIVE_URL=postgres://localhost/dl dlarchive add _archive_key=gallery42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, cmd, args)
		},
	}
}

func runAdd(opts *RootOptions, cmd *cobra.Command, args []string) error {
	meta, err := parseFields(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid item", err)
	}

	l, err := openLedger(cmd, opts, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	it := archive.NewItem(meta)
	err = l.Add(ctx, it)
	if closeErr := l.Finalize(ctx); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "add failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(AddResult{Key: it.Key()}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
