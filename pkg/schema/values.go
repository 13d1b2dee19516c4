package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order; day-first wins over month-first when both parse.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"01-02-2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// currencyStrip lists characters dropped before a string is read as a number
var currencyStrip = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", "%", "", " ", "")

// ToFloat reads a value as a number. Numeric strings may carry currency
// symbols, thousands separators or a percent sign.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := currencyStrip.Replace(strings.TrimSpace(n))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToTime reads a value as a point in time
func ToTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// NormalizeValue renders a value in a canonical form so equal values from
// different sources compare equal: numbers drop trailing zeros, dates lose
// their clock, strings are trimmed and lowercased.
func NormalizeValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format("2006-01-02")
	}
	if s, ok := v.(string); ok {
		if t, ok := ToTime(s); ok {
			return t.UTC().Format("2006-01-02")
		}
		if f, ok := ToFloat(s); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.ToLower(strings.TrimSpace(s))
	}
	if f, ok := ToFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(raw))
}
