package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dlarchive/internal/archive"
)

// EnvArchive names the environment variable holding the archive location.
const EnvArchive = "DLARCHIVE_URL"

// FileConfig is the YAML config file layout. Every field mirrors the global
// flag of the same name.
type FileConfig struct {
	Archive        string        `yaml:"archive"`
	Key            string        `yaml:"key"`
	Prefix         string        `yaml:"prefix"`
	Table          string        `yaml:"table"`
	Mode           string        `yaml:"mode"`
	Pragmas        []string      `yaml:"pragma"`
	Fallback       string        `yaml:"fallback"`
	ConnectTimeout time.Duration `yaml:"connect-timeout"`
	SeenCache      int           `yaml:"seen-cache"`
}

// LoadFileConfig reads a YAML config file. Unknown keys are rejected.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// resolveConfig merges config file, environment and flags, in increasing
// order of precedence, into an archive.Config.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (archive.Config, error) {
	var fc FileConfig
	if opts.ConfigFile != "" {
		var err error
		if fc, err = LoadFileConfig(opts.ConfigFile); err != nil {
			return archive.Config{}, err
		}
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}

	location := fc.Archive
	if env := os.Getenv(EnvArchive); env != "" {
		location = env
	}
	if changed("archive") {
		location = opts.Archive
	}
	if location == "" {
		return archive.Config{}, fmt.Errorf("no archive configured: use --archive, %s or a config file", EnvArchive)
	}

	pick := func(name, flagVal, fileVal string) string {
		if changed(name) {
			return flagVal
		}
		return fileVal
	}

	mode, err := archive.ParseMode(pick("mode", opts.Mode, fc.Mode))
	if err != nil {
		return archive.Config{}, err
	}

	pragmas := fc.Pragmas
	if changed("pragma") {
		pragmas = opts.Pragmas
	}
	timeout := opts.ConnectTimeout
	if !changed("connect-timeout") && fc.ConnectTimeout > 0 {
		timeout = fc.ConnectTimeout
	}
	seen := fc.SeenCache
	if changed("seen-cache") {
		seen = opts.SeenCache
	}

	return archive.Config{
		Location:       location,
		Prefix:         pick("prefix", opts.Prefix, fc.Prefix),
		Format:         pick("key", opts.KeyFormat, fc.Key),
		Table:          pick("table", opts.Table, fc.Table),
		Mode:           mode,
		Pragmas:        pragmas,
		FallbackPath:   archive.ExpandPath(pick("fallback", opts.Fallback, fc.Fallback)),
		ConnectTimeout: timeout,
		SeenCacheSize:  seen,
	}, nil
}
