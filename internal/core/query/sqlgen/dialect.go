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
)

// ErrUnknownDialect is returned for a dialect without a generator.
var ErrUnknownDialect = fmt.Errorf("unknown sql dialect")

type placeholderStyle int

const (
	// namedPlaceholders render @name.
	namedPlaceholders placeholderStyle = iota
	// numberedPlaceholders render $1, $2 by first occurrence.
	numberedPlaceholders
	// positionalPlaceholders render ? for every occurrence.
	positionalPlaceholders
)

// dialect renders the dialect-specific parts of a statement.
type dialect interface {
	name() domain.Dialect
	quote(ident string) string
	placeholders() placeholderStyle

	// boolLiteral renders a boolean value.
	boolLiteral(b bool) string
	// condLiteral renders a constant condition.
	condLiteral(b bool) string
	// truthTest is appended to a boolean value used as a condition.
	truthTest() string
	stringLiteral(s string, unicode bool) string
	timeLiteral(t time.Time, m *algebra.TypeMapping) string
	guidLiteral(u uuid.UUID) string
	bytesLiteral(b []byte) string

	// top reports whether a limit without offset renders as TOP(n).
	top() bool
	paging(st *statement, s *algebra.Select)
	concat(st *statement, l, r algebra.SQLExpr)
	// function renders dialect spellings of canonical functions. It
	// returns false to render NAME(args).
	function(st *statement, f *algebra.Function) bool
	cast(st *statement, c *algebra.Cast)
	jsonValue(st *statement, v *algebra.JSONValue)
	jsonTable(st *statement, t *algebra.JSONTableExpr, alias string)
	// lateral returns the keyword joining a correlated derived table and the
	// ON condition it needs, if any.
	lateral(kind algebra.JoinKind) (keyword, on string)
}

func dialectOf(d domain.Dialect) (dialect, error) {
	switch d {
	case domain.SQLServer, "":
		return sqlServer{}, nil
	case domain.SQLite:
		return sqlite{base{noLimit: "-1"}}, nil
	case domain.PostgreSQL:
		return postgres{}, nil
	case domain.MySQL:
		return mysql{base{noLimit: "18446744073709551615"}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, d)
}

// literal renders an inline value of mapping m.
func literal(d dialect, v any, m *algebra.TypeMapping) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return d.boolLiteral(x)
	case string:
		return d.stringLiteral(x, m == nil || !m.IsString() || m.Unicode)
	case int:
		return integer(int64(x), m)
	case int8:
		return integer(int64(x), m)
	case int16:
		return integer(int64(x), m)
	case int32:
		return integer(int64(x), m)
	case int64:
		return integer(x, m)
	case uint8:
		return integer(int64(x), m)
	case uint16:
		return integer(int64(x), m)
	case uint32:
		return integer(int64(x), m)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return float(float64(x))
	case float64:
		return float(x)
	case time.Time:
		return d.timeLiteral(x, m)
	case uuid.UUID:
		return d.guidLiteral(x)
	case []byte:
		return d.bytesLiteral(x)
	}
	return d.stringLiteral(fmt.Sprint(v), true)
}

func integer(i int64, m *algebra.TypeMapping) string {
	s := strconv.FormatInt(i, 10)
	if m != nil && (m.Kind == model.KindDecimal || m.Kind == model.KindDouble) {
		s += ".0"
	}
	return s
}

func float(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// base holds the ANSI defaults shared by sqlite, postgres and mysql.
type base struct {
	// noLimit is the LIMIT rendered before an OFFSET without a limit.
	noLimit string
}

func (base) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (base) placeholders() placeholderStyle { return namedPlaceholders }

func (base) boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d base) condLiteral(b bool) string { return d.boolLiteral(b) }

func (base) truthTest() string { return "" }

func (base) stringLiteral(s string, _ bool) string { return quoteString(s) }

func (base) timeLiteral(t time.Time, m *algebra.TypeMapping) string {
	if m != nil && m.StoreType == "date" {
		return quoteString(t.Format("2006-01-02"))
	}
	return quoteString(t.Format("2006-01-02 15:04:05.999999"))
}

func (base) guidLiteral(u uuid.UUID) string { return quoteString(u.String()) }

func (base) bytesLiteral(b []byte) string {
	return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'"
}

func (base) top() bool { return false }

func (d base) paging(st *statement, s *algebra.Select) {
	st.w.newline()
	switch {
	case s.Limit != nil:
		st.w.write("LIMIT ")
		st.value(s.Limit)
	case d.noLimit != "":
		st.w.write("LIMIT " + d.noLimit)
	}
	if s.Offset != nil {
		if s.Limit != nil || d.noLimit != "" {
			st.w.write(" ")
		}
		st.w.write("OFFSET ")
		st.value(s.Offset)
	}
}

func (base) concat(st *statement, l, r algebra.SQLExpr) {
	st.arithmeticOperand(l, precAdditive, false)
	st.w.write(" || ")
	st.arithmeticOperand(r, precAdditive, false)
}

func (base) lateral(kind algebra.JoinKind) (string, string) {
	if kind == algebra.JoinOuterApply {
		return "LEFT JOIN LATERAL", "TRUE"
	}
	return "CROSS JOIN LATERAL", ""
}

// renamed renders f under another name when the dialect spells it
// differently.
func renamed(st *statement, f *algebra.Function, names map[string]string) bool {
	name, ok := names[f.Name]
	if !ok {
		return false
	}
	st.call(name, f.Args...)
	return true
}

// fragment returns the text of a literal SQL argument such as a DATEPART
// unit.
func fragment(e algebra.SQLExpr) string {
	if f, ok := e.(*algebra.Fragment); ok {
		return f.SQL
	}
	return ""
}
