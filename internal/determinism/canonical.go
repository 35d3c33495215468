// Package determinism provides the canonical-serialization, hashing, and
// seeded-randomness primitives the rest of the kernel relies on to make two
// runs of the same candidate against the same dataset produce byte-for-byte
// identical output.
package determinism

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonicalize renders a value tree (built from map[string]any, []any,
// string, bool, int64, float64, and decimal.Decimal) into a deterministic
// byte string: object keys sorted, floats rendered through decimal.Decimal
// at a fixed scale, no whitespace beyond single field separators. The
// output is never meant to be parsed back — only hashed.
func Canonicalize(v any) string {
	var b strings.Builder
	canonicalize(&b, v)
	return b.String()
}

func canonicalize(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case string:
		b.WriteByte('"')
		b.WriteString(t)
		b.WriteByte('"')
	case int:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(decimal.NewFromFloat(t).StringFixed(10))
	case decimal.Decimal:
		b.WriteString(t.StringFixed(10))
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(k)
			b.WriteString(`":`)
			canonicalize(b, t[k])
		}
		b.WriteByte('}')
	default:
		b.WriteString(fmt.Sprintf("%v", t))
	}
}
