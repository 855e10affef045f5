package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/satishbabariya/relq/internal/core/query/shaper"
)

var clauses = []string{
	"SELECT", "FROM", "WHERE", "LEFT JOIN", "INNER JOIN", "CROSS JOIN",
	"CROSS APPLY", "OUTER APPLY", "GROUP BY", "HAVING", "ORDER BY",
	"OFFSET", "LIMIT", "FETCH", "UNION ALL", "UNION", "INTERSECT", "EXCEPT",
	"FOR SYSTEM_TIME",
}

// HighlightSQL paints the clause keyword that starts each line.
func HighlightSQL(sql string, paint func(a ...interface{}) string) string {
	lines := strings.Split(sql, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		indent := line[:len(line)-len(trimmed)]
		for _, kw := range clauses {
			if strings.HasPrefix(trimmed, kw) {
				lines[i] = indent + paint(kw) + trimmed[len(kw):]
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Table lays out query results for PrintTable. Entities show their scalar
// members, collections show their element count.
func Table(result any) (headers []string, rows [][]string) {
	items, ok := result.([]any)
	if !ok {
		items = []any{result}
	}
	if len(items) == 0 {
		return []string{"(no rows)"}, nil
	}
	switch first := items[0].(type) {
	case *shaper.Object:
		headers = objectHeaders(first)
		for _, it := range items {
			o, _ := it.(*shaper.Object)
			row := make([]string, len(headers))
			for i, h := range headers {
				row[i] = FormatValue(o.Get(h))
			}
			rows = append(rows, row)
		}
	case *shaper.Record:
		headers = first.Names
		for _, it := range items {
			r, _ := it.(*shaper.Record)
			row := make([]string, len(headers))
			for i, h := range headers {
				row[i] = FormatValue(r.Get(h))
			}
			rows = append(rows, row)
		}
	default:
		headers = []string{"value"}
		for _, it := range items {
			rows = append(rows, []string{FormatValue(it)})
		}
	}
	return headers, rows
}

// objectHeaders lists the key members first, then the others by name.
func objectHeaders(o *shaper.Object) []string {
	var keys, rest []string
	isKey := map[string]bool{}
	for _, p := range o.Type.KeyProperties() {
		isKey[p.Name] = true
		keys = append(keys, p.Name)
	}
	for name := range o.Values {
		if !isKey[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// FormatValue renders one materialized value for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case *shaper.Object:
		return v.String()
	case []*shaper.Object:
		return fmt.Sprintf("[%d]", len(v))
	case *shaper.Record:
		parts := make([]string, len(v.Names))
		for i, n := range v.Names {
			parts[i] = n + ":" + FormatValue(v.Values[i])
		}
		return "{" + strings.Join(parts, " ") + "}"
	case []any:
		return fmt.Sprintf("[%d]", len(v))
	case []map[string]any:
		return fmt.Sprintf("[%d]", len(v))
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("0x%X", v)
	}
	return fmt.Sprint(v)
}
