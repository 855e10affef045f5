package algebra

import (
	"strings"
	"unicode"

	"github.com/satishbabariya/relq/internal/core/model"
)

// TableSource is an item of a FROM clause. The set of node types is closed.
type TableSource interface {
	tableNode()
	// Hint is the prefix the generator derives the alias from.
	Hint() string
}

// TemporalMode selects the rows of a system-versioned table.
type TemporalMode int

const (
	AsOf TemporalMode = iota
	All
	Between
	FromTo
	ContainedIn
)

func (m TemporalMode) String() string {
	switch m {
	case AsOf:
		return "AS OF"
	case All:
		return "ALL"
	case Between:
		return "BETWEEN"
	case FromTo:
		return "FROM"
	case ContainedIn:
		return "CONTAINED IN"
	}
	return "?"
}

// TemporalScope restricts a temporal table to a point or a range.
type TemporalScope struct {
	Mode TemporalMode
	From SQLExpr
	To   SQLExpr
}

// Equal reports whether two scopes select the same rows. Constants compare
// by value and parameters by name.
func (s *TemporalScope) Equal(o *TemporalScope) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Mode == o.Mode && samePoint(s.From, o.From) && samePoint(s.To, o.To)
}

func samePoint(a, b SQLExpr) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *Constant:
		y, ok := b.(*Constant)
		if !ok {
			return false
		}
		return ValueEqual(x.Value, y.Value)
	case *Parameter:
		y, ok := b.(*Parameter)
		return ok && x.Source.Key() == y.Source.Key()
	}
	return false
}

// TableExpr is a base table.
type TableExpr struct {
	Name   string
	Schema string
	Entity *model.EntityType
	// Temporal is set by the temporal rewriter on system-versioned tables.
	Temporal *TemporalScope
	// DerivedFrom points at the table this one was reached from by
	// navigation or ownership. Temporal scopes follow this chain.
	DerivedFrom TableSource
}

// SubqueryExpr is a derived table.
type SubqueryExpr struct {
	Select *Select
	// Alias overrides the derived prefix.
	Alias string
}

// SetOperationKind is the kind of a set operation.
type SetOperationKind int

const (
	SetUnion SetOperationKind = iota
	SetUnionAll
	SetIntersect
	SetExcept
)

// Keyword returns the SQL keyword of k.
func (k SetOperationKind) Keyword() string {
	switch k {
	case SetUnion:
		return "UNION"
	case SetUnionAll:
		return "UNION ALL"
	case SetIntersect:
		return "INTERSECT"
	}
	return "EXCEPT"
}

// SetOperationExpr is an n-ary set operation used as a table.
type SetOperationExpr struct {
	Kind     SetOperationKind
	Operands []*Select
}

// FromSQLExpr wraps raw SQL text as a table.
type FromSQLExpr struct {
	SQL    string
	Args   []SQLExpr
	Entity *model.EntityType
}

// JSONColumn is one column of a JSON table's WITH clause.
type JSONColumn struct {
	Name    string
	Mapping *TypeMapping
	Path    []PathSegment
	// AsJSON keeps the value as a JSON fragment.
	AsJSON bool
}

// JSONTableExpr expands a JSON array to rows (OPENJSON). Without Columns it
// exposes key, value and type columns; the key preserves element order.
type JSONTableExpr struct {
	Doc     SQLExpr
	Path    []PathSegment
	Columns []JSONColumn
	// Name is the collection or parameter name the alias derives from.
	Name string
	// DerivedFrom is the table owning the JSON column, if any.
	DerivedFrom TableSource
}

func (*TableExpr) tableNode()        {}
func (*SubqueryExpr) tableNode()     {}
func (*SetOperationExpr) tableNode() {}
func (*FromSQLExpr) tableNode()      {}
func (*JSONTableExpr) tableNode()    {}

// Hint implements TableSource.
func (t *TableExpr) Hint() string { return initial(t.Name) }

// Hint implements TableSource. A derived table over a single table takes
// that table's prefix; any other derived table uses "s".
func (t *SubqueryExpr) Hint() string {
	if t.Alias != "" {
		return t.Alias
	}
	if t.Select != nil && len(t.Select.Tables) == 1 {
		return t.Select.From().Hint()
	}
	return "s"
}

// Hint implements TableSource.
func (t *SetOperationExpr) Hint() string {
	switch t.Kind {
	case SetIntersect:
		return "i"
	case SetExcept:
		return "e"
	}
	return "u"
}

// Hint implements TableSource.
func (*FromSQLExpr) Hint() string { return "m" }

// Hint implements TableSource.
func (t *JSONTableExpr) Hint() string { return initial(t.Name) }

func initial(name string) string {
	name = strings.TrimLeft(name, "_@")
	for _, r := range name {
		return string(unicode.ToLower(r))
	}
	return "t"
}
