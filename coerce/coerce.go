// Package coerce converts loosely-typed upstream values into canonical
// numbers. The billing backend mixes machine numbers with Brazilian-locale
// formatted strings ("1.234,56"), sometimes with a currency prefix, and the
// same field can switch representation between endpoints.
package coerce

import (
	"math"
	"strconv"
	"strings"
)

// ToNumber converts raw into a finite float64. The second return value is
// false when raw is absent, empty, or cannot be parsed.
//
// Strings are trimmed and stripped of everything that is not a digit, comma,
// period, or minus sign. When the cleaned string contains a comma it is read
// as a pt-BR decimal separator: periods are thousands separators and are
// removed, the comma becomes the decimal point. Otherwise the string is
// parsed as-is.
func ToNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return parseNumeric(v)
	default:
		return 0, false
	}
}

// ToInteger applies ToNumber and truncates toward zero.
func ToInteger(raw any) (int64, bool) {
	n, ok := ToNumber(raw)
	if !ok {
		return 0, false
	}
	return int64(math.Trunc(n)), true
}

// ToAmount is ToNumber for monetary values: it never reports absence and
// falls back to 0, so amounts are always summable.
func ToAmount(raw any) float64 {
	n, ok := ToNumber(raw)
	if !ok {
		return 0
	}
	return n
}

func parseNumeric(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == ',' || r == '.' || r == '-':
			return r
		}
		return -1
	}, strings.TrimSpace(s))

	if cleaned == "" {
		return 0, false
	}

	if strings.ContainsRune(cleaned, ',') {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return finite(n)
}

func finite(n float64) (float64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
