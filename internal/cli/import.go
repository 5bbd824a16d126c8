package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/dlarchive/internal/archive"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Metrics bool
}

// ImportResult is the output of the import command.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

func (r ImportResult) Text() string {
	return fmt.Sprintf("added %d, skipped %d", r.Added, r.Skipped)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Record a stream of items",
		Long: `Read item metadata as JSON objects, one per line, from file or stdin and
record every item not yet archived. Items are buffered in memory and written
in a single transaction at the end, regardless of --mode.

Examples:
  dlarchive import --archive ./archive.sqlite3 --key '{category}{id}' items.jsonl
  some-crawler --dump | dlarchive import --format json --metrics`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print archive metrics to stderr when done")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		in = f
	}

	l, err := openLedger(cmd, opts.RootOptions, func(cfg *archive.Config) {
		cfg.Mode = archive.ModeMemory
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var result ImportResult
	err = decodeItems(in, func(n int, meta map[string]any) error {
		it := archive.NewItem(meta)
		found, err := l.Check(ctx, it)
		if err != nil {
			return fmt.Errorf("item %d: %w", n, err)
		}
		if found {
			result.Skipped++
			return nil
		}
		if err := l.Add(ctx, it); err != nil {
			return fmt.Errorf("item %d: %w", n, err)
		}
		result.Added++
		return nil
	})
	// Items read before a bad line are still written.
	if closeErr := l.Finalize(ctx); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.Metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), prometheus.DefaultGatherer); err != nil {
			return WrapExitError(ExitFailure, "failed to write metrics", err)
		}
	}
	return nil
}

// writeMetrics writes the dlarchive_* metric families in the Prometheus text
// format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "dlarchive_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
