package sqlgen

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
)

// sqlite renders SQLite with the JSON1 functions.
type sqlite struct{ base }

var _ dialect = sqlite{}

func (sqlite) name() domain.Dialect { return domain.SQLite }

func (sqlite) boolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d sqlite) condLiteral(b bool) string { return d.boolLiteral(b) }

func (sqlite) timeLiteral(t time.Time, m *algebra.TypeMapping) string {
	if m != nil && m.StoreType == "date" {
		return quoteString(t.Format("2006-01-02"))
	}
	return quoteString(t.Format("2006-01-02 15:04:05.9999999"))
}

// guidLiteral matches the upper case text GUIDs are stored as.
func (sqlite) guidLiteral(u uuid.UUID) string {
	return quoteString(strings.ToUpper(u.String()))
}

var sqliteFunctions = map[string]string{
	"LEN":       "length",
	"SUBSTRING": "substr",
	"COUNT_BIG": "COUNT",
	"CEILING":   "ceiling",
	"UPPER":     "upper",
	"LOWER":     "lower",
}

var sqliteDateParts = map[string]string{
	"year":      "%Y",
	"month":     "%m",
	"day":       "%d",
	"hour":      "%H",
	"minute":    "%M",
	"second":    "%S",
	"dayofyear": "%j",
}

func (sqlite) function(st *statement, f *algebra.Function) bool {
	switch f.Name {
	case "CHARINDEX":
		st.call("instr", f.Args[1], f.Args[0])
		return true
	case "LEFT":
		st.call("substr", f.Args[0], &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}, f.Args[1])
		return true
	case "RIGHT":
		// substr(x, length(x) - n + 1) is empty for n = 0, unlike substr(x, -n).
		st.w.write("substr(")
		st.value(f.Args[0])
		st.w.write(", length(")
		st.value(f.Args[0])
		st.w.write(") - ")
		st.arithmeticOperand(f.Args[1], precAdditive, true)
		st.w.write(" + 1)")
		return true
	case "DATEPART":
		st.w.write("CAST(strftime(" + quoteString(sqliteDateParts[fragment(f.Args[0])]) + ", ")
		st.value(f.Args[1])
		st.w.write(") AS INTEGER)")
		return true
	case "DATEADD":
		st.w.write("datetime(")
		st.value(f.Args[2])
		st.w.write(", CAST(")
		st.value(f.Args[1])
		st.w.write(" AS TEXT) || " + quoteString(" "+fragment(f.Args[0])+"s") + ")")
		return true
	}
	return renamed(st, f, sqliteFunctions)
}

func (d sqlite) cast(st *statement, c *algebra.Cast) {
	if c.Mapping.StoreType == "date" {
		st.call("date", c.Operand)
		return
	}
	st.w.write("CAST(")
	st.value(c.Operand)
	st.w.write(" AS " + d.storeType(c.Mapping) + ")")
}

// storeType returns the SQLite type affinity of m.
func (sqlite) storeType(m *algebra.TypeMapping) string {
	switch m.Kind {
	case model.KindInt, model.KindLong, model.KindShort, model.KindByte, model.KindBool, model.KindEnum:
		return "INTEGER"
	case model.KindDouble:
		return "REAL"
	case model.KindDecimal:
		return "NUMERIC"
	case model.KindBytes:
		return "BLOB"
	}
	return "TEXT"
}

// jsonValue renders json_extract, which returns scalars with their SQL type
// and fragments as JSON text.
func (sqlite) jsonValue(st *statement, v *algebra.JSONValue) {
	st.w.write("json_extract(")
	st.value(v.Doc)
	st.w.write(", " + quoteString(jsonmap.FormatPath(v.Path)) + ")")
}

// jsonTable renders json_each. Typed columns are extracted from the element
// value in a derived table over json_each under the same alias.
func (d sqlite) jsonTable(st *statement, t *algebra.JSONTableExpr, alias string) {
	each := func() {
		st.w.write("json_each(")
		st.value(t.Doc)
		if len(t.Path) > 0 {
			st.w.write(", " + quoteString(jsonmap.FormatPath(t.Path)))
		}
		st.w.write(") AS " + d.quote(alias))
	}
	if jsonmap.IsKeyed(t) || isPrimitive(t) {
		each()
		return
	}
	st.nested(true, func() {
		st.w.write("SELECT ")
		for i, c := range t.Columns {
			if i > 0 {
				st.w.write(", ")
			}
			st.w.write("json_extract(" + d.quote(alias) + "." + d.quote(jsonmap.ValueColumn) + ", " +
				quoteString(jsonmap.FormatPath(c.Path)) + ") AS " + d.quote(c.Name))
		}
		st.w.newline()
		st.w.write("FROM ")
		each()
	})
	st.w.write(" AS " + d.quote(alias))
}

// isPrimitive reports whether t is a single value column read from the
// elements themselves.
func isPrimitive(t *algebra.JSONTableExpr) bool {
	return len(t.Columns) == 1 && t.Columns[0].Name == jsonmap.ValueColumn && len(t.Columns[0].Path) == 0
}

func (sqlite) lateral(kind algebra.JoinKind) (string, string) {
	return kind.Keyword(), ""
}
