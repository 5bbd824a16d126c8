package keyfmt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// render converts a metadata value to its key text. A non-empty verb is
// applied with fmt after numeric normalization.
func render(v any, verb string) (string, error) {
	if verb != "" {
		return renderVerb(v, verb)
	}
	v = normalize(v)

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return norm.NFC.String(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []any, []string, map[string]any:
		b, err := marshalCanonical(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case fmt.Stringer:
		return norm.NFC.String(val.String()), nil
	default:
		return norm.NFC.String(fmt.Sprint(val)), nil
	}
}

// renderVerb applies a printf verb. Integers are widened to float64 for the
// float verbs; any other mismatch fmt reports ("%!d(float64=7.5)") is an
// error rather than key text.
func renderVerb(v any, verb string) (string, error) {
	n := normalize(v)
	switch verb[len(verb)-1] {
	case 'e', 'E', 'f', 'F', 'g', 'G':
		switch i := n.(type) {
		case int64:
			n = float64(i)
		case uint64:
			n = float64(i)
		}
	}
	out := fmt.Sprintf(verb, n)
	if strings.Contains(out, "%!") && !strings.Contains(fmt.Sprint(n), "%!") {
		return "", fmt.Errorf("%w: %s with %T value %v", ErrBadVerb, verb, n, n)
	}
	return norm.NFC.String(out), nil
}

// normalize folds the numeric types into int64, uint64 or float64 and turns
// whole floats into int64, so 7, int32(7) and float64(7) render identically.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return uint64(val)
	case uint8:
		return uint64(val)
	case uint16:
		return uint64(val)
	case uint32:
		return uint64(val)
	case float32:
		return normalize(float64(val))
	case float64:
		if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
			return int64(val)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return normalize(f)
		}
		return val.String()
	default:
		return v
	}
}
