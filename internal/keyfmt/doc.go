// Package keyfmt compiles key templates into ledger key formatters.
//
// A template is literal text with placeholders in braces:
//
//	{category}{id}_{num}
//	{user.name}/{id:%06d}
//
// A placeholder names a metadata field; dots walk into nested maps. An
// optional printf verb after a colon formats the value. "{{" and "}}" produce
// literal braces.
//
// Rendered values are deterministic: strings are NFC normalized, whole
// floats (as produced by encoding/json) render as integers, and composite
// values (slices, maps) render as canonical JSON with sorted keys. Two
// metadata maps that describe the same item therefore always yield the
// same key.
package keyfmt
