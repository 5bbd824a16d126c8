package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dlarchive/internal/archive"
)

// parseFields turns key=value arguments into item metadata. Values that are
// valid JSON (numbers, booleans, objects, quoted strings) keep their JSON
// type; anything else is taken as a plain string.
func parseFields(args []string) (map[string]any, error) {
	meta := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: want name=value", arg)
		}
		meta[name] = parseValue(raw)
	}
	return meta, nil
}

func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	// Reject trailing input such as "1 2" or "12abc".
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw
	}
	return v
}

// decodeItems reads a stream of JSON objects (JSON lines or concatenated)
// and calls fn for each.
func decodeItems(r io.Reader, fn func(line int, meta map[string]any) error) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	for n := 1; dec.More(); n++ {
		var meta map[string]any
		if err := dec.Decode(&meta); err != nil {
			return fmt.Errorf("item %d: %w", n, err)
		}
		if meta == nil {
			return fmt.Errorf("item %d: not a JSON object", n)
		}
		if err := fn(n, meta); err != nil {
			return err
		}
	}
	return nil
}

// openLedger resolves the configuration and connects. adjust, when not nil,
// may modify the resolved configuration first.
func openLedger(cmd *cobra.Command, opts *RootOptions, adjust func(*archive.Config)) (archive.Ledger, error) {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	cfg.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
	if adjust != nil {
		adjust(&cfg)
	}

	l, err := archive.Connect(cmd.Context(), cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return l, nil
}
