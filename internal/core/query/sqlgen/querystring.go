package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// ToQueryString renders sql preceded by one comment line per bound
// parameter, e.g. -- @__city_0='London' (Size = 4000).
func ToQueryString(sql string, bound []domain.BoundParameter) string {
	var sb strings.Builder
	seen := make(map[string]bool, len(bound))
	for _, p := range bound {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		fmt.Fprintf(&sb, "-- @%s=%s", p.Name, headerValue(p.Value))
		if p.Size > 0 {
			fmt.Fprintf(&sb, " (Size = %d)", p.Size)
		}
		sb.WriteByte('\n')
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(sql)
	return sb.String()
}

func headerValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return "'" + x.Format("2006-01-02T15:04:05.0000000") + "'"
	case []byte:
		return fmt.Sprintf("'0x%X'", x)
	}
	return "'" + fmt.Sprint(v) + "'"
}
