package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigFile     string
	Archive        string
	KeyFormat      string
	Prefix         string
	Table          string
	Mode           string
	Pragmas        []string
	Fallback       string
	ConnectTimeout time.Duration
	SeenCache      int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dlarchive CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dlarchive",
		Short: "dlarchive - download archive ledger",
		Long: `Record which downloadable items have already been fetched.

Keys are derived from item metadata with a format template and stored in a
SQLite file or a PostgreSQL table. When PostgreSQL is unreachable the ledger
falls back to a local SQLite file, which "dlarchive sync" replays later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	pf.StringVarP(&opts.Archive, "archive", "a", "", "SQLite path or postgres:// URI (env "+EnvArchive+")")
	pf.StringVarP(&opts.KeyFormat, "key", "k", "", "key format, e.g. {category}{id}")
	pf.StringVar(&opts.Prefix, "prefix", "", "literal prepended to the key format")
	pf.StringVar(&opts.Table, "table", "", "table name (default \"archive\")")
	pf.StringVar(&opts.Mode, "mode", "", "write mode (normal|memory)")
	pf.StringArrayVar(&opts.Pragmas, "pragma", nil, "SQLite pragma, repeatable")
	pf.StringVar(&opts.Fallback, "fallback", "", "fallback SQLite file (default under $XDG_DATA_HOME)")
	pf.DurationVar(&opts.ConnectTimeout, "connect-timeout", 10*time.Second, "PostgreSQL connect timeout")
	pf.IntVar(&opts.SeenCache, "seen-cache", 0, "size of the PostgreSQL seen-key cache (0 disables)")

	// Add subcommands
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd, opts
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
