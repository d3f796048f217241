package gateway

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Fields is a decoded remote object. The remote mixes snake_case, camelCase
// and all-lowercase keys for the same field, so lookups canonicalize keys:
// offerid, offer_id and offerID all resolve to the same value.
type Fields map[string]any

func canonical(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}

// Any returns the first value found under any of names.
func (f Fields) Any(names ...string) (any, bool) {
	for _, name := range names {
		if v, ok := f[name]; ok && v != nil {
			return v, true
		}
	}
	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[canonical(name)] = struct{}{}
	}
	for k, v := range f {
		if v == nil {
			continue
		}
		if _, ok := want[canonical(k)]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether any of names is present.
func (f Fields) Has(names ...string) bool {
	_, ok := f.Any(names...)
	return ok
}

// String returns the value as a string; numbers are formatted.
func (f Fields) String(names ...string) string {
	v, ok := f.Any(names...)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// Int returns the value as an int. Numeric strings are accepted.
func (f Fields) Int(names ...string) int {
	v, ok := f.Any(names...)
	if !ok {
		return 0
	}
	n, _ := ToInt(v)
	return n
}

// Float returns the value as a float64. Numeric strings are accepted.
func (f Fields) Float(names ...string) float64 {
	v, ok := f.Any(names...)
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		n, _ := x.Float64()
		return n
	case string:
		n, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n
	default:
		return 0
	}
}

// Bool returns the value as a bool. "true", "1" and non-zero numbers are true.
func (f Fields) Bool(names ...string) bool {
	v, ok := f.Any(names...)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "true" || s == "1" || s == "yes"
	default:
		return false
	}
}

// Decimal returns the value as a decimal. Unparseable values yield zero.
func (f Fields) Decimal(names ...string) decimal.Decimal {
	v, ok := f.Any(names...)
	if !ok {
		return decimal.Zero
	}
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// Object returns a nested object.
func (f Fields) Object(names ...string) Fields {
	v, ok := f.Any(names...)
	if !ok {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return Fields(m)
	}
	return nil
}

// ToInt converts a decoded JSON value to an int. The second result is false
// for values that are not numeric.
func ToInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	case int:
		return x, true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(n), true
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}
