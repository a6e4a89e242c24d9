package extract

import (
	"fmt"
	"sort"
	"strconv"
)

// FindPriceInJSON walks a decoded JSON tree looking for a positive value under
// one of PriceFields. Objects are inspected before their children; children
// are visited in sorted key order so the result is stable. maxDepth bounds
// the number of container levels descended.
func FindPriceInJSON(v any, maxDepth int) (float64, bool) {
	return findPrice(v, 0, maxDepth)
}

func findPrice(v any, depth, maxDepth int) (float64, bool) {
	switch node := v.(type) {
	case map[string]any:
		for _, field := range PriceFields {
			if p, ok := PriceValue(node[field]); ok {
				return p, true
			}
		}
		if depth >= maxDepth {
			return 0, false
		}
		for _, k := range SortedKeys(node) {
			if p, ok := findPrice(node[k], depth+1, maxDepth); ok {
				return p, true
			}
		}
	case []any:
		if depth >= maxDepth {
			return 0, false
		}
		for _, item := range node {
			if p, ok := findPrice(item, depth+1, maxDepth); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// PriceValue accepts a positive number, a string that parses positive, or an
// object whose "value" parses positive.
func PriceValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, x > 0
	case string:
		return ParsePrice(x)
	case map[string]any:
		switch inner := x["value"].(type) {
		case float64:
			return inner, inner > 0
		case string:
			return ParsePrice(inner)
		}
	}
	return 0, false
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringField returns the first non-empty string (or number rendered as
// text) found under keys.
func StringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch x := m[k].(type) {
		case string:
			if x != "" {
				return x
			}
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return ""
}

// NumberField returns the first non-zero number found under keys. Numeric
// strings are accepted.
func NumberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch x := m[k].(type) {
		case float64:
			if x != 0 {
				return x, true
			}
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil && f != 0 {
				return f, true
			}
		}
	}
	return 0, false
}

// ObjectField returns the first object found under keys.
func ObjectField(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if obj, ok := m[k].(map[string]any); ok {
			return obj
		}
	}
	return nil
}

// IDField renders an identifier that may be encoded as string or number.
func IDField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch x := m[k].(type) {
		case string:
			if x != "" {
				return x
			}
		case float64:
			return fmt.Sprintf("%.0f", x)
		}
	}
	return ""
}
