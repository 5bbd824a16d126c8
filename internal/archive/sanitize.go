package archive

import "strings"

var identReplacer = strings.NewReplacer(`"`, "_", "\x00", "_")

// QuoteTable returns name as a quoted SQL identifier. Double quotes and NUL
// bytes in name become underscores, so the result always parses as exactly
// one identifier. An empty name yields DefaultTable, unquoted.
func QuoteTable(name string) string {
	if name == "" {
		return DefaultTable
	}
	return `"` + identReplacer.Replace(name) + `"`
}

// unquoteTable returns the bare identifier of a QuoteTable result.
func unquoteTable(quoted string) string {
	return strings.TrimSuffix(strings.TrimPrefix(quoted, `"`), `"`)
}
