package docstore

import (
	"sort"
	"strings"
	"time"
)

// childOf reports whether path is a direct member of collection (exactly one
// path segment below it).
func childOf(path, collection string) bool {
	rest, ok := strings.CutPrefix(path, collection+"/")
	if !ok {
		return false
	}
	return rest != "" && !strings.Contains(rest, "/")
}

// applyQuery filters, orders and limits docs. Backends fetch a collection's
// documents however they like and run the query logic here, so behavior is
// identical across memory, pebble and postgres.
func applyQuery(docs []Document, q Query) []Document {
	out := docs[:0:0]
	for _, d := range docs {
		if matchesAll(d.Data, q.Filters) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matches(data, f) {
			return false
		}
	}
	return true
}

func matches(data map[string]any, f Filter) bool {
	c := compareValues(data[f.Field], f.Value)
	switch f.Op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

// compareValues orders two document field values. After a JSON round trip
// numbers are float64, timestamps RFC 3339 strings; timestamps are compared
// as instants because their textual form does not sort lexicographically
// once sub-second digits differ in length.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return -1
		}
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv, ok := toFloat(b)
		if !ok {
			return -1
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case int:
		return compareValues(float64(av), b)
	case int64:
		return compareValues(float64(av), b)
	case string:
		bv, ok := toString(b)
		if !ok {
			return -1
		}
		if at, err := time.Parse(time.RFC3339Nano, av); err == nil {
			if bt, err := time.Parse(time.RFC3339Nano, bv); err == nil {
				return at.Compare(bt)
			}
		}
		return strings.Compare(av, bv)
	case time.Time:
		return compareValues(av.Format(time.RFC3339Nano), b)
	default:
		return -1
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case time.Time:
		return s.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}
