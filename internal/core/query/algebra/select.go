// Package algebra is the relational algebra the translator produces and the
// generator renders: selects, table sources and scalar SQL expressions.
package algebra

import (
	"strconv"
)

// JoinKind is the kind of a FROM clause item.
type JoinKind int

const (
	// JoinFrom marks the first FROM item.
	JoinFrom JoinKind = iota
	JoinInner
	JoinLeft
	JoinCross
	JoinCrossApply
	JoinOuterApply
)

// Keyword returns the SQL keyword introducing the join.
func (k JoinKind) Keyword() string {
	switch k {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinCross:
		return "CROSS JOIN"
	case JoinCrossApply:
		return "CROSS APPLY"
	case JoinOuterApply:
		return "OUTER APPLY"
	}
	return "FROM"
}

// IsOptional reports whether rows of the joined table may be missing.
func (k JoinKind) IsOptional() bool {
	return k == JoinLeft || k == JoinOuterApply
}

// Join is one FROM clause item.
type Join struct {
	Kind  JoinKind
	Table TableSource
	On    SQLExpr
}

// ProjectionItem is one output column.
type ProjectionItem struct {
	Expr  SQLExpr
	Alias string
}

// Name returns the output column name: the alias, or the column name of a
// plain column reference.
func (p *ProjectionItem) Name() string {
	if p.Alias != "" {
		return p.Alias
	}
	if c, ok := p.Expr.(*Column); ok {
		return c.Name
	}
	return ""
}

// Select is a SELECT statement. Tables[0] is the FROM source.
type Select struct {
	Tables     []*Join
	Projection []*ProjectionItem
	Predicate  SQLExpr
	GroupBy    []SQLExpr
	Having     SQLExpr
	Orderings  []Ordering
	Limit      SQLExpr
	Offset     SQLExpr
	Distinct   bool
	// Identifier lists the expressions that uniquely identify a row. It is
	// empty when rows cannot be identified.
	Identifier []SQLExpr
}

// NewSelect creates a select over t.
func NewSelect(t TableSource) *Select {
	return &Select{Tables: []*Join{{Kind: JoinFrom, Table: t}}}
}

// From returns the FROM source.
func (s *Select) From() TableSource {
	if len(s.Tables) == 0 {
		return nil
	}
	return s.Tables[0].Table
}

// AddJoin appends a join.
func (s *Select) AddJoin(kind JoinKind, t TableSource, on SQLExpr) *Join {
	j := &Join{Kind: kind, Table: t, On: on}
	s.Tables = append(s.Tables, j)
	return j
}

// JoinOf returns the FROM item holding t, or nil.
func (s *Select) JoinOf(t TableSource) *Join {
	for _, j := range s.Tables {
		if j.Table == t {
			return j
		}
	}
	return nil
}

// AddPredicate ANDs pred into the WHERE clause.
func (s *Select) AddPredicate(pred SQLExpr) {
	s.Predicate = And(s.Predicate, pred)
}

// AddProjection appends an output column and returns its ordinal.
func (s *Select) AddProjection(e SQLExpr, alias string) int {
	s.Projection = append(s.Projection, &ProjectionItem{Expr: e, Alias: alias})
	return len(s.Projection) - 1
}

// ProjectUnique projects e under a name not yet used by the projection,
// reusing an existing item for the same expression. It returns the item.
func (s *Select) ProjectUnique(e SQLExpr, name string) *ProjectionItem {
	for _, p := range s.Projection {
		if SameExpr(p.Expr, e) {
			return p
		}
	}
	if name == "" {
		name = "c"
	}
	alias := name
	for i := 0; s.hasOutput(alias); i++ {
		alias = name + strconv.Itoa(i)
	}
	item := &ProjectionItem{Expr: e, Alias: alias}
	s.Projection = append(s.Projection, item)
	return item
}

func (s *Select) hasOutput(name string) bool {
	for _, p := range s.Projection {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// IsPaged reports whether the select limits or skips rows.
func (s *Select) IsPaged() bool {
	return s.Limit != nil || s.Offset != nil
}

// IsGrouped reports whether the select groups rows.
func (s *Select) IsGrouped() bool {
	return len(s.GroupBy) > 0
}

// ClearOrderings drops the orderings of an unpaged select.
func (s *Select) ClearOrderings() {
	if !s.IsPaged() {
		s.Orderings = nil
	}
}

// AppendOrdering adds an ordering unless the same expression is already ordered.
func (s *Select) AppendOrdering(o Ordering) {
	for _, existing := range s.Orderings {
		if SameExpr(existing.Expr, o.Expr) {
			return
		}
	}
	s.Orderings = append(s.Orderings, o)
}

// OwnTables returns the tables of the FROM clause.
func (s *Select) OwnTables() []TableSource {
	out := make([]TableSource, len(s.Tables))
	for i, j := range s.Tables {
		out[i] = j.Table
	}
	return out
}

// Pushdown moves a select into a derived table so that further operators
// apply to its result. Expressions of the inner select are made available
// outside by Map, which projects them on first use.
type Pushdown struct {
	Inner *Select
	Table *SubqueryExpr
	Outer *Select
	memo  map[SQLExpr]SQLExpr
}

// PushDown wraps s in a derived table. The inner projection is reset; the
// inner orderings move to the outer select unless the inner select pages.
func PushDown(s *Select) *Pushdown {
	s.Projection = nil
	sub := &SubqueryExpr{Select: s}
	p := &Pushdown{Inner: s, Table: sub, Outer: NewSelect(sub), memo: make(map[SQLExpr]SQLExpr)}

	for _, o := range s.Orderings {
		p.Outer.Orderings = append(p.Outer.Orderings, Ordering{Expr: p.Map(o.Expr), Descending: o.Descending})
	}
	if !s.IsPaged() {
		s.Orderings = nil
	}
	for _, id := range s.Identifier {
		p.Outer.Identifier = append(p.Outer.Identifier, p.Map(id))
	}
	return p
}

// Map returns the outer expression for an inner one.
func (p *Pushdown) Map(e SQLExpr) SQLExpr {
	if e == nil {
		return nil
	}
	if m, ok := p.memo[e]; ok {
		return m
	}
	if !ReferencesTables(e) {
		return e
	}
	name := "c"
	switch n := e.(type) {
	case *Column:
		name = n.Name
	}
	item := p.Inner.ProjectUnique(e, name)
	col := &Column{Table: p.Table, Name: item.Name(), Nullable: IsNullable(e), Mapping: MappingOf(e)}
	p.memo[e] = col
	return col
}

// MapNamed is Map with an explicit output name for computed expressions.
func (p *Pushdown) MapNamed(e SQLExpr, name string) SQLExpr {
	if _, ok := e.(*Column); ok || name == "" {
		return p.Map(e)
	}
	if m, ok := p.memo[e]; ok {
		return m
	}
	if !ReferencesTables(e) {
		return e
	}
	item := p.Inner.ProjectUnique(e, name)
	col := &Column{Table: p.Table, Name: item.Name(), Nullable: IsNullable(e), Mapping: MappingOf(e)}
	p.memo[e] = col
	return col
}
