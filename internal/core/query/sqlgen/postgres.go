package sqlgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
)

// postgres renders PostgreSQL. JSON documents are stored as text and read
// through jsonb.
type postgres struct{ base }

var _ dialect = postgres{}

func (postgres) name() domain.Dialect { return domain.PostgreSQL }

func (postgres) placeholders() placeholderStyle { return numberedPlaceholders }

func (postgres) timeLiteral(t time.Time, m *algebra.TypeMapping) string {
	switch {
	case m != nil && m.StoreType == "date":
		return "DATE " + quoteString(t.Format("2006-01-02"))
	case m != nil && m.Kind == model.KindDateTimeOffset:
		return "TIMESTAMPTZ " + quoteString(t.Format("2006-01-02 15:04:05.999999-07:00"))
	}
	return "TIMESTAMP " + quoteString(t.Format("2006-01-02 15:04:05.999999"))
}

func (postgres) guidLiteral(u uuid.UUID) string { return "UUID " + quoteString(u.String()) }

func (postgres) bytesLiteral(b []byte) string {
	return "BYTEA " + quoteString(`\x`+hex.EncodeToString(b))
}

var postgresFunctions = map[string]string{
	"LEN":       "length",
	"SUBSTRING": "substr",
	"COUNT_BIG": "COUNT",
}

var postgresDateParts = map[string]string{
	"dayofyear": "doy",
}

func (postgres) function(st *statement, f *algebra.Function) bool {
	switch f.Name {
	case "CHARINDEX":
		st.call("strpos", f.Args[1], f.Args[0])
		return true
	case "DATEPART":
		part := fragment(f.Args[0])
		if p, ok := postgresDateParts[part]; ok {
			part = p
		}
		st.w.write("CAST(date_part(" + quoteString(part) + ", ")
		st.value(f.Args[1])
		st.w.write(") AS integer)")
		return true
	case "DATEADD":
		st.w.write("(")
		st.value(f.Args[2])
		st.w.write(" + ")
		st.arithmeticOperand(f.Args[1], precMultiplicative, false)
		st.w.write(" * INTERVAL " + quoteString("1 "+fragment(f.Args[0])) + ")")
		return true
	}
	return renamed(st, f, postgresFunctions)
}

func (d postgres) cast(st *statement, c *algebra.Cast) {
	st.w.write("CAST(")
	st.value(c.Operand)
	st.w.write(" AS " + d.storeType(c.Mapping) + ")")
}

func (postgres) storeType(m *algebra.TypeMapping) string {
	switch m.Kind {
	case model.KindInt, model.KindEnum:
		return "integer"
	case model.KindLong:
		return "bigint"
	case model.KindShort, model.KindByte:
		return "smallint"
	case model.KindBool:
		return "boolean"
	case model.KindDouble:
		return "double precision"
	case model.KindDecimal:
		return fmt.Sprintf("numeric(%d,%d)", m.Precision, m.Scale)
	case model.KindDateTime:
		if m.StoreType == "date" {
			return "date"
		}
		return "timestamp"
	case model.KindDateTimeOffset:
		return "timestamptz"
	case model.KindGuid:
		return "uuid"
	case model.KindBytes:
		return "bytea"
	case model.KindString:
		if !m.Unbounded && m.Size > 0 {
			return "varchar(" + strconv.Itoa(m.Size) + ")"
		}
	}
	return "text"
}

// jsonPath renders path as a text array for the #> and #>> operators.
func jsonPath(path []algebra.PathSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		if seg.Property == "" {
			parts[i] = strconv.Itoa(seg.Index)
			continue
		}
		p := seg.Property
		if strings.ContainsAny(p, `,{}" \`) {
			p = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(p) + `"`
		}
		parts[i] = p
	}
	return quoteString("{" + strings.Join(parts, ",") + "}")
}

func (st *statement) jsonb(doc algebra.SQLExpr) {
	st.w.write("CAST(")
	st.value(doc)
	st.w.write(" AS jsonb)")
}

func (d postgres) jsonValue(st *statement, v *algebra.JSONValue) {
	if v.Fragment {
		st.w.write("(")
		st.jsonb(v.Doc)
		st.w.write(" #> " + jsonPath(v.Path) + ")")
		return
	}
	cast := v.Mapping != nil && !v.Mapping.IsString()
	if cast {
		st.w.write("CAST(")
	} else {
		st.w.write("(")
	}
	st.jsonb(v.Doc)
	st.w.write(" #>> " + jsonPath(v.Path))
	if cast {
		st.w.write(" AS " + d.storeType(v.Mapping))
	}
	st.w.write(")")
}

// jsonTable renders jsonb_array_elements. A keyed table numbers elements
// with ordinality; typed columns are extracted in a derived table under the
// same alias.
func (d postgres) jsonTable(st *statement, t *algebra.JSONTableExpr, alias string) {
	elements := func() {
		st.w.write("jsonb_array_elements(")
		if len(t.Path) > 0 {
			st.w.write("(")
			st.jsonb(t.Doc)
			st.w.write(" #> " + jsonPath(t.Path) + ")")
		} else {
			st.jsonb(t.Doc)
		}
		st.w.write(")")
	}
	q := d.quote(alias)
	if jsonmap.IsKeyed(t) {
		elements()
		st.w.write(" WITH ORDINALITY AS " + q + "(" + d.quote(jsonmap.ValueColumn) + ", " + d.quote(jsonmap.KeyColumn) + ")")
		return
	}
	st.nested(true, func() {
		st.w.write("SELECT ")
		for i, c := range t.Columns {
			if i > 0 {
				st.w.write(", ")
			}
			value := q + "." + d.quote(jsonmap.ValueColumn)
			switch {
			case c.AsJSON:
				st.w.write(value + " #> " + jsonPath(c.Path))
			case c.Mapping == nil || c.Mapping.IsString():
				st.w.write(value + " #>> " + jsonPath(c.Path))
			default:
				st.w.write("CAST(" + value + " #>> " + jsonPath(c.Path) + " AS " + d.storeType(c.Mapping) + ")")
			}
			st.w.write(" AS " + d.quote(c.Name))
		}
		st.w.newline()
		st.w.write("FROM ")
		elements()
		st.w.write(" AS " + q + "(" + d.quote(jsonmap.ValueColumn) + ")")
	})
	st.w.write(" AS " + q)
}
