package sqlgen

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
)

// sqlServer is the reference dialect. Canonical function names are its own.
type sqlServer struct{}

var _ dialect = sqlServer{}

func (sqlServer) name() domain.Dialect { return domain.SQLServer }

func (sqlServer) quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (sqlServer) placeholders() placeholderStyle { return namedPlaceholders }

func (sqlServer) boolLiteral(b bool) string {
	if b {
		return "CAST(1 AS bit)"
	}
	return "CAST(0 AS bit)"
}

func (sqlServer) condLiteral(b bool) string {
	if b {
		return "1 = 1"
	}
	return "0 = 1"
}

func (sqlServer) truthTest() string { return " = CAST(1 AS bit)" }

func (sqlServer) stringLiteral(s string, unicode bool) string {
	if unicode {
		return "N" + quoteString(s)
	}
	return quoteString(s)
}

func (sqlServer) timeLiteral(t time.Time, m *algebra.TypeMapping) string {
	switch {
	case m != nil && m.StoreType == "date":
		return quoteString(t.Format("2006-01-02"))
	case m != nil && m.Kind == model.KindDateTimeOffset:
		return quoteString(t.Format("2006-01-02T15:04:05.0000000-07:00"))
	}
	return quoteString(t.Format("2006-01-02T15:04:05.0000000"))
}

func (sqlServer) guidLiteral(u uuid.UUID) string { return quoteString(u.String()) }

func (sqlServer) bytesLiteral(b []byte) string {
	return "0x" + strings.ToUpper(hex.EncodeToString(b))
}

func (sqlServer) top() bool { return true }

func (sqlServer) paging(st *statement, s *algebra.Select) {
	if s.Offset == nil {
		return
	}
	st.w.newline()
	st.w.write("OFFSET ")
	st.value(s.Offset)
	st.w.write(" ROWS")
	if s.Limit != nil {
		st.w.write(" FETCH NEXT ")
		st.value(s.Limit)
		st.w.write(" ROWS ONLY")
	}
}

func (sqlServer) concat(st *statement, l, r algebra.SQLExpr) {
	st.arithmeticOperand(l, precAdditive, false)
	st.w.write(" + ")
	st.arithmeticOperand(r, precAdditive, false)
}

func (sqlServer) function(*statement, *algebra.Function) bool { return false }

func (sqlServer) cast(st *statement, c *algebra.Cast) {
	st.w.write("CAST(")
	st.value(c.Operand)
	st.w.write(" AS " + c.Mapping.StoreType + ")")
}

// jsonValue renders JSON_VALUE, cast to the store type of values that are
// not strings, or JSON_QUERY for fragments.
func (sqlServer) jsonValue(st *statement, v *algebra.JSONValue) {
	if v.Fragment {
		st.w.write("JSON_QUERY(")
		st.value(v.Doc)
		st.w.write(", " + quoteString(jsonmap.FormatPath(v.Path)) + ")")
		return
	}
	cast := v.Mapping != nil && !v.Mapping.IsString()
	if cast {
		st.w.write("CAST(")
	}
	st.w.write("JSON_VALUE(")
	st.value(v.Doc)
	st.w.write(", " + quoteString(jsonmap.FormatPath(v.Path)) + ")")
	if cast {
		st.w.write(" AS " + v.Mapping.StoreType + ")")
	}
}

// jsonTable renders OPENJSON, with a WITH clause for typed columns.
func (d sqlServer) jsonTable(st *statement, t *algebra.JSONTableExpr, alias string) {
	st.w.write("OPENJSON(")
	st.value(t.Doc)
	if len(t.Path) > 0 {
		st.w.write(", " + quoteString(jsonmap.FormatPath(t.Path)))
	}
	st.w.write(")")
	if len(t.Columns) > 0 {
		st.w.write(" WITH (")
		for i, c := range t.Columns {
			if i > 0 {
				st.w.write(", ")
			}
			typ := algebra.JSONMapping.StoreType
			if c.Mapping != nil {
				typ = c.Mapping.StoreType
			}
			st.w.write(d.quote(c.Name) + " " + typ + " " + quoteString(jsonmap.FormatPath(c.Path)))
			if c.AsJSON {
				st.w.write(" AS JSON")
			}
		}
		st.w.write(")")
	}
	st.w.write(" AS " + d.quote(alias))
}

func (sqlServer) lateral(kind algebra.JoinKind) (string, string) {
	return kind.Keyword(), ""
}
