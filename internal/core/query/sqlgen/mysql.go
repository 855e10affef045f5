package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
)

// mysql renders MySQL 8.
type mysql struct{ base }

var _ dialect = mysql{}

func (mysql) name() domain.Dialect { return domain.MySQL }

func (mysql) quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysql) placeholders() placeholderStyle { return positionalPlaceholders }

// stringLiteral escapes backslashes, which MySQL reads as escapes.
func (mysql) stringLiteral(s string, _ bool) string {
	return quoteString(strings.ReplaceAll(s, `\`, `\\`))
}

func (mysql) concat(st *statement, l, r algebra.SQLExpr) {
	st.call("CONCAT", l, r)
}

var mysqlFunctions = map[string]string{
	"LEN":       "CHAR_LENGTH",
	"COUNT_BIG": "COUNT",
}

var mysqlDateUnits = map[string]string{
	"year":   "YEAR",
	"month":  "MONTH",
	"day":    "DAY",
	"hour":   "HOUR",
	"minute": "MINUTE",
	"second": "SECOND",
}

func (mysql) function(st *statement, f *algebra.Function) bool {
	switch f.Name {
	case "CHARINDEX":
		st.call("LOCATE", f.Args[0], f.Args[1])
		return true
	case "DATEPART":
		part := fragment(f.Args[0])
		if part == "dayofyear" {
			st.call("DAYOFYEAR", f.Args[1])
			return true
		}
		st.w.write("EXTRACT(" + mysqlDateUnits[part] + " FROM ")
		st.value(f.Args[1])
		st.w.write(")")
		return true
	case "DATEADD":
		st.w.write("DATE_ADD(")
		st.value(f.Args[2])
		st.w.write(", INTERVAL ")
		st.value(f.Args[1])
		st.w.write(" " + mysqlDateUnits[fragment(f.Args[0])] + ")")
		return true
	}
	return renamed(st, f, mysqlFunctions)
}

func (d mysql) cast(st *statement, c *algebra.Cast) {
	st.w.write("CAST(")
	st.value(c.Operand)
	st.w.write(" AS " + d.castType(c.Mapping) + ")")
}

// castType returns the CAST target for m. MySQL casts to a restricted set
// of types.
func (mysql) castType(m *algebra.TypeMapping) string {
	switch m.Kind {
	case model.KindInt, model.KindLong, model.KindShort, model.KindByte, model.KindEnum:
		return "SIGNED"
	case model.KindBool:
		return "UNSIGNED"
	case model.KindDouble:
		return "DOUBLE"
	case model.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", m.Precision, m.Scale)
	case model.KindDateTime, model.KindDateTimeOffset:
		if m.StoreType == "date" {
			return "DATE"
		}
		return "DATETIME(6)"
	case model.KindBytes:
		return "BINARY"
	}
	return "CHAR"
}

// columnType returns the column type of m in a JSON_TABLE.
func (mysql) columnType(m *algebra.TypeMapping) string {
	if m == nil {
		return "LONGTEXT"
	}
	switch m.Kind {
	case model.KindInt, model.KindEnum:
		return "INT"
	case model.KindLong:
		return "BIGINT"
	case model.KindShort:
		return "SMALLINT"
	case model.KindByte:
		return "TINYINT UNSIGNED"
	case model.KindBool:
		return "TINYINT(1)"
	case model.KindDouble:
		return "DOUBLE"
	case model.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", m.Precision, m.Scale)
	case model.KindDateTime, model.KindDateTimeOffset:
		if m.StoreType == "date" {
			return "DATE"
		}
		return "DATETIME(6)"
	case model.KindGuid:
		return "CHAR(36)"
	case model.KindBytes:
		return "LONGBLOB"
	}
	if !m.Unbounded && m.Size > 0 {
		return "VARCHAR(" + strconv.Itoa(m.Size) + ")"
	}
	return "LONGTEXT"
}

// jsonValue renders JSON_VALUE, which maps JSON null to NULL, or
// JSON_EXTRACT for fragments.
func (d mysql) jsonValue(st *statement, v *algebra.JSONValue) {
	path := d.stringLiteral(jsonmap.FormatPath(v.Path), false)
	if v.Fragment {
		st.w.write("JSON_EXTRACT(")
		st.value(v.Doc)
		st.w.write(", " + path + ")")
		return
	}
	st.w.write("JSON_VALUE(")
	st.value(v.Doc)
	st.w.write(", " + path)
	if v.Mapping != nil && !v.Mapping.IsString() {
		st.w.write(" RETURNING " + d.castType(v.Mapping))
	}
	st.w.write(")")
}

// jsonTable renders JSON_TABLE over the elements of the array at the path.
// A keyed table numbers elements with FOR ORDINALITY.
func (d mysql) jsonTable(st *statement, t *algebra.JSONTableExpr, alias string) {
	st.w.write("JSON_TABLE(")
	st.value(t.Doc)
	st.w.write(", " + d.stringLiteral(jsonmap.FormatPath(t.Path)+"[*]", false) + " COLUMNS (")
	if jsonmap.IsKeyed(t) {
		st.w.write(d.quote(jsonmap.KeyColumn) + " FOR ORDINALITY, " + d.quote(jsonmap.ValueColumn) + " JSON PATH '$'")
	}
	for i, c := range t.Columns {
		if i > 0 {
			st.w.write(", ")
		}
		typ := d.columnType(c.Mapping)
		if c.AsJSON {
			typ = "JSON"
		}
		st.w.write(d.quote(c.Name) + " " + typ + " PATH " + d.stringLiteral(jsonmap.FormatPath(c.Path), false))
	}
	st.w.write(")) AS " + d.quote(alias))
}
