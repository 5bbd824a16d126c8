package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dlarchive/internal/archive"
)

// CheckResult is the output of the check command.
type CheckResult struct {
	Key      string `json:"key"`
	Archived bool   `json:"archived"`
}

func (r CheckResult) Text() string {
	if r.Archived {
		return "archived: " + r.Key
	}
	return "not archived: " + r.Key
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <field=value>...",
		Short: "Report whether an item is archived",
		Long: `Derive the item's key from the given fields and report whether the
archive already holds it.

Exit codes:
  0 - Item is archived
  1 - Item is not archived
  2 - Command error (bad fields, archive unavailable, etc.)

Examples:
  dlarchive check --archive ./archive.sqlite3 --key '{category}{id}' category=gallery id=42
  dlarchive check --format json _archive_key=gallery42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd, args)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command, args []string) error {
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
	found, err := l.Check(ctx, it)
	if closeErr := l.Finalize(ctx); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "check failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(CheckResult{Key: it.Key(), Archived: found}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !found {
		return NewExitError(ExitFailure, "")
	}
	return nil
}
