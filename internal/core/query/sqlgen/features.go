package sqlgen

import (
	"strconv"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Features are the dialect capabilities the translator and generator rely on.
type Features struct {
	// JSONTables allows expanding JSON arrays to rows (OPENJSON, json_each).
	// Without it captured collections are inlined as constant lists.
	JSONTables bool
	// Apply allows joining derived tables that reference earlier FROM items.
	Apply bool
	// Temporal allows FOR SYSTEM_TIME clauses.
	Temporal bool
}

// FeaturesOf returns the features of dialect d at serverVersion. An empty or
// unparsable version assumes a current server.
func FeaturesOf(d domain.Dialect, serverVersion string) Features {
	v := parseVersion(d, serverVersion)
	switch d {
	case domain.SQLite:
		return Features{JSONTables: atLeast(v, "3.9")}
	case domain.PostgreSQL:
		return Features{JSONTables: atLeast(v, "9.4"), Apply: atLeast(v, "9.3")}
	case domain.MySQL:
		return Features{JSONTables: atLeast(v, "8.0.4"), Apply: atLeast(v, "8.0.14")}
	}
	return Features{JSONTables: atLeast(v, "13.0"), Apply: true, Temporal: atLeast(v, "13.0")}
}

// parseVersion reads a server version. SQL Server compatibility levels such
// as 130 are read as the matching major version.
func parseVersion(d domain.Dialect, s string) *version.Version {
	if s == "" {
		return nil
	}
	v, err := version.NewVersion(s)
	if err != nil {
		return nil
	}
	if d == domain.SQLServer || d == "" {
		if segs := v.Segments(); len(segs) > 0 && segs[0] >= 100 {
			if compat, err := version.NewVersion(formatCompat(segs[0])); err == nil {
				return compat
			}
		}
	}
	return v
}

func formatCompat(level int) string {
	return strconv.Itoa(level/10) + "." + strconv.Itoa(level%10)
}

func atLeast(v *version.Version, floor string) bool {
	if v == nil {
		return true
	}
	return v.GreaterThanOrEqual(version.Must(version.NewVersion(floor)))
}
