package algebra

import (
	"strconv"

	"github.com/satishbabariya/relq/internal/core/model"
)

// SQLExpr is a scalar SQL expression. The set of node types is closed.
type SQLExpr interface {
	sqlNode()
}

// Column references a column of a table source.
type Column struct {
	Table    TableSource
	Name     string
	Nullable bool
	Mapping  *TypeMapping
}

// Constant is an inline literal.
type Constant struct {
	Value   any
	Mapping *TypeMapping
}

// ParameterKind says where a parameter value comes from.
type ParameterKind int

const (
	// CapturedParameter reads a captured value by name.
	CapturedParameter ParameterKind = iota
	// FilterParameter reads a filter context member.
	FilterParameter
	// RawParameter is a positional argument of raw SQL.
	RawParameter
)

// ParameterSource identifies the value behind a parameter.
type ParameterSource struct {
	Kind ParameterKind
	// Name is the captured name or the filter context member. It is empty
	// for a raw SQL argument given as a constant.
	Name string
	// Entity and Scope qualify filter parameters.
	Entity string
	Scope  string
	// Index is the position of a raw SQL argument.
	Index int
}

// Key returns a string identifying the source.
func (s ParameterSource) Key() string {
	switch s.Kind {
	case FilterParameter:
		return "filter:" + s.Entity + "." + s.Name + "#" + s.Scope
	case RawParameter:
		return "raw:" + strconv.Itoa(s.Index)
	}
	return "captured:" + s.Name
}

// Parameter is a named value supplied at execution time.
type Parameter struct {
	// Name excludes the dialect prefix, e.g. __city_0.
	Name     string
	Source   ParameterSource
	Mapping  *TypeMapping
	Nullable bool
	// Collection marks a primitive collection serialized as JSON; Element is
	// the mapping of its elements.
	Collection bool
	Element    *TypeMapping
	// Value is the fixed value of a raw SQL argument given as a constant.
	Value any
}

// BinaryOp is a binary SQL operator.
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAnd
	OpOr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

var binarySymbols = [...]string{
	OpEqual:              "=",
	OpNotEqual:           "<>",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpAnd:                "AND",
	OpOr:                 "OR",
	OpAdd:                "+",
	OpSubtract:           "-",
	OpMultiply:           "*",
	OpDivide:             "/",
	OpModulo:             "%",
}

// Symbol returns the SQL Server operator text.
func (op BinaryOp) Symbol() string {
	return binarySymbols[op]
}

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	return op <= OpGreaterThanOrEqual
}

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

type Binary struct {
	Op      BinaryOp
	Left    SQLExpr
	Right   SQLExpr
	Mapping *TypeMapping
}

// UnaryOp is a unary SQL operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNegate
	OpIsNull
	OpIsNotNull
)

type Unary struct {
	Op      UnaryOp
	Operand SQLExpr
	Mapping *TypeMapping
}

// Function is a function call. Names are canonical (SQL Server spelling);
// dialects rename them when rendering.
type Function struct {
	Name     string
	Args     []SQLExpr
	Mapping  *TypeMapping
	Nullable bool
}

// When is one WHEN arm of a CASE.
type When struct {
	Test   SQLExpr
	Result SQLExpr
}

type Case struct {
	Whens   []When
	Else    SQLExpr
	Mapping *TypeMapping
}

// In tests membership of Item in Values, in the rows of Subquery or in the
// values of a JSON table.
type In struct {
	Item     SQLExpr
	Values   []SQLExpr
	Subquery *Select
	Negated  bool
}

type Exists struct {
	Subquery *Select
	Negated  bool
}

// ScalarSubquery is a subquery returning one value.
type ScalarSubquery struct {
	Subquery *Select
	Mapping  *TypeMapping
}

// PathSegment is one step of a JSON path.
type PathSegment struct {
	Property string
	// Index selects an array element when Property is empty.
	Index int
}

// JSONValue extracts a scalar (JSON_VALUE) or a fragment (JSON_QUERY).
type JSONValue struct {
	Doc      SQLExpr
	Path     []PathSegment
	Fragment bool
	Mapping  *TypeMapping
	Nullable bool
}

type Cast struct {
	Operand SQLExpr
	Mapping *TypeMapping
}

// RowNumber is ROW_NUMBER() OVER(PARTITION BY ... ORDER BY ...).
type RowNumber struct {
	Partitions []SQLExpr
	Orderings  []Ordering
}

type Like struct {
	Match   SQLExpr
	Pattern SQLExpr
	Escape  string
}

// Star is * or t.* inside an aggregate such as COUNT(*).
type Star struct {
	Table TableSource
}

// Fragment is literal SQL text.
type Fragment struct {
	SQL string
}

func (*Column) sqlNode()         {}
func (*Constant) sqlNode()       {}
func (*Parameter) sqlNode()      {}
func (*Binary) sqlNode()         {}
func (*Unary) sqlNode()          {}
func (*Function) sqlNode()       {}
func (*Case) sqlNode()           {}
func (*In) sqlNode()             {}
func (*Exists) sqlNode()         {}
func (*ScalarSubquery) sqlNode() {}
func (*JSONValue) sqlNode()      {}
func (*Cast) sqlNode()           {}
func (*RowNumber) sqlNode()      {}
func (*Like) sqlNode()           {}
func (*Star) sqlNode()           {}
func (*Fragment) sqlNode()       {}

// Ordering is one ORDER BY item.
type Ordering struct {
	Expr       SQLExpr
	Descending bool
}

// MappingOf returns the type mapping of e. Predicates map to bit.
func MappingOf(e SQLExpr) *TypeMapping {
	switch n := e.(type) {
	case *Column:
		return n.Mapping
	case *Constant:
		return n.Mapping
	case *Parameter:
		return n.Mapping
	case *Binary:
		if n.Op.IsComparison() || n.Op.IsLogical() {
			return BoolMapping
		}
		if n.Mapping != nil {
			return n.Mapping
		}
		if m := MappingOf(n.Left); m != nil {
			return m
		}
		return MappingOf(n.Right)
	case *Unary:
		if n.Op != OpNegate {
			return BoolMapping
		}
		return MappingOf(n.Operand)
	case *Function:
		return n.Mapping
	case *Case:
		if n.Mapping != nil {
			return n.Mapping
		}
		for _, w := range n.Whens {
			if m := MappingOf(w.Result); m != nil {
				return m
			}
		}
		return MappingOf(n.Else)
	case *In, *Exists, *Like:
		return BoolMapping
	case *ScalarSubquery:
		return n.Mapping
	case *JSONValue:
		return n.Mapping
	case *Cast:
		return n.Mapping
	case *RowNumber:
		return LongMapping
	}
	return nil
}

// IsPredicate reports whether e is a boolean condition rather than a value.
func IsPredicate(e SQLExpr) bool {
	switch n := e.(type) {
	case *Binary:
		return n.Op.IsComparison() || n.Op.IsLogical()
	case *Unary:
		return n.Op != OpNegate
	case *In, *Exists, *Like:
		return true
	case *Constant:
		_, ok := n.Value.(bool)
		return ok && n.Mapping == nil
	}
	return false
}

// IsNullable reports whether e may evaluate to NULL.
func IsNullable(e SQLExpr) bool {
	switch n := e.(type) {
	case *Column:
		return n.Nullable
	case *Constant:
		return n.Value == nil
	case *Parameter:
		return n.Nullable
	case *Binary:
		if n.Op.IsComparison() || n.Op.IsLogical() {
			return false
		}
		return IsNullable(n.Left) || IsNullable(n.Right)
	case *Unary:
		if n.Op == OpNegate {
			return IsNullable(n.Operand)
		}
		return false
	case *Function:
		return n.Nullable
	case *Case:
		if n.Else == nil || IsNullable(n.Else) {
			return true
		}
		for _, w := range n.Whens {
			if IsNullable(w.Result) {
				return true
			}
		}
		return false
	case *ScalarSubquery:
		return true
	case *JSONValue:
		return n.Nullable
	case *Cast:
		return IsNullable(n.Operand)
	}
	return false
}

// True and False are boolean constants in predicate position.
func True() *Constant  { return &Constant{Value: true} }
func False() *Constant { return &Constant{Value: false} }

// And combines predicates, skipping nil operands.
func And(preds ...SQLExpr) SQLExpr {
	var out SQLExpr
	for _, p := range preds {
		if p == nil {
			continue
		}
		if out == nil {
			out = p
			continue
		}
		out = &Binary{Op: OpAnd, Left: out, Right: p}
	}
	return out
}

// Or combines predicates, skipping nil operands.
func Or(preds ...SQLExpr) SQLExpr {
	var out SQLExpr
	for _, p := range preds {
		if p == nil {
			continue
		}
		if out == nil {
			out = p
			continue
		}
		out = &Binary{Op: OpOr, Left: out, Right: p}
	}
	return out
}

// Equal builds a = b.
func Equal(a, b SQLExpr) *Binary {
	return &Binary{Op: OpEqual, Left: a, Right: b}
}

// ColumnFor returns the column of t storing p. Nullable is forced when the
// table sits on the optional side of a join.
func ColumnFor(t TableSource, p *model.Property, optional bool) *Column {
	return &Column{Table: t, Name: p.Column, Nullable: p.Nullable || optional, Mapping: MapProperty(p)}
}
