// Package sqlgen renders relational algebra as dialect SQL text with an
// ordered parameter list.
package sqlgen

import (
	"fmt"
	"strconv"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/params"
)

// Command is one rendered SQL statement.
type Command struct {
	SQL string
	// Parameters are listed in placeholder order. Named and numbered
	// placeholders list each parameter once, at its first occurrence;
	// positional placeholders list every occurrence.
	Parameters []*algebra.Parameter
}

// Generator renders selects for one dialect.
type Generator struct {
	dialect  dialect
	features Features
}

// NewGenerator creates a generator for dialect d at serverVersion.
func NewGenerator(d domain.Dialect, serverVersion string) (*Generator, error) {
	dl, err := dialectOf(d)
	if err != nil {
		return nil, err
	}
	return &Generator{dialect: dl, features: FeaturesOf(d, serverVersion)}, nil
}

// Dialect returns the dialect the generator renders.
func (g *Generator) Dialect() domain.Dialect {
	return g.dialect.name()
}

// Features returns the dialect features in effect.
func (g *Generator) Features() Features {
	return g.features
}

// Generate renders s. Table aliases are assigned before rendering: FROM
// items in textual order with derived tables after their contents, then
// the subqueries of the projection, predicate, grouping, having and
// orderings. Every alias prefix has its own counter.
func (g *Generator) Generate(s *algebra.Select) (*Command, error) {
	st := &statement{
		d:        g.dialect,
		features: g.features,
		w:        &writer{},
		aliases:  make(map[algebra.TableSource]string),
		counters: make(map[string]int),
		ordinals: make(map[string]int),
	}
	st.assign(s)
	st.selectStmt(s)
	if st.err != nil {
		return nil, st.err
	}
	return &Command{SQL: st.w.String(), Parameters: st.params}, nil
}

// statement is the state of rendering one command.
type statement struct {
	d        dialect
	features Features
	w        *writer
	aliases  map[algebra.TableSource]string
	counters map[string]int
	params   []*algebra.Parameter
	ordinals map[string]int
	err      error
}

func (st *statement) fail(err error) {
	if st.err == nil {
		st.err = err
	}
}

func (st *statement) mint(prefix string) string {
	n := st.counters[prefix]
	st.counters[prefix] = n + 1
	if n == 0 {
		return prefix
	}
	return prefix + strconv.Itoa(n-1)
}

func (st *statement) assign(s *algebra.Select) {
	for _, j := range s.Tables {
		st.assignTable(j.Table)
	}
	for _, e := range s.Expressions() {
		st.assignExpr(e)
	}
}

func (st *statement) assignTable(t algebra.TableSource) {
	if _, ok := st.aliases[t]; ok {
		return
	}
	for _, e := range algebra.TableExprs(t) {
		st.assignExpr(e)
	}
	for _, sub := range algebra.TableSelects(t) {
		st.assign(sub)
	}
	st.aliases[t] = st.mint(t.Hint())
}

func (st *statement) assignExpr(e algebra.SQLExpr) {
	algebra.InspectExpr(e, func(n algebra.SQLExpr) bool {
		_, subs := algebra.Children(n)
		for _, sub := range subs {
			st.assign(sub)
		}
		return true
	})
}

func (st *statement) alias(t algebra.TableSource) string {
	a, ok := st.aliases[t]
	if !ok {
		st.fail(domain.Errorf(domain.ErrInternal, "alias", "", "table %s is not part of the statement", t.Hint()))
		return "?"
	}
	return a
}

// capture renders f into a separate buffer and returns the text.
func (st *statement) capture(f func()) string {
	prev := st.w
	st.w = &writer{}
	f()
	out := st.w.String()
	st.w = prev
	return out
}

func (st *statement) selectStmt(s *algebra.Select) {
	w := st.w
	w.write("SELECT ")
	if s.Distinct {
		w.write("DISTINCT ")
	}
	if s.Limit != nil && s.Offset == nil && st.d.top() {
		w.write("TOP(")
		st.value(s.Limit)
		w.write(") ")
	}
	st.projection(s)

	for i, j := range s.Tables {
		w.newline()
		if i == 0 {
			w.write("FROM ")
			st.table(j.Table)
			continue
		}
		st.join(j)
	}
	if s.Predicate != nil {
		w.newline()
		w.write("WHERE ")
		st.predicate(s.Predicate)
	}
	if len(s.GroupBy) > 0 {
		w.newline()
		w.write("GROUP BY ")
		st.list(s.GroupBy)
	}
	if s.Having != nil {
		w.newline()
		w.write("HAVING ")
		st.predicate(s.Having)
	}
	if len(s.Orderings) > 0 || s.Offset != nil && st.d.top() {
		w.newline()
		w.write("ORDER BY ")
		st.orderings(s.Orderings)
	}
	if s.IsPaged() {
		st.d.paging(st, s)
	}
}

func (st *statement) projection(s *algebra.Select) {
	if len(s.Projection) == 0 {
		st.w.write("1")
		return
	}
	for i, p := range s.Projection {
		if i > 0 {
			st.w.write(", ")
		}
		st.value(p.Expr)
		if p.Alias == "" {
			continue
		}
		if c, ok := p.Expr.(*algebra.Column); ok && c.Name == p.Alias {
			continue
		}
		st.w.write(" AS " + st.d.quote(p.Alias))
	}
}

func (st *statement) orderings(os []algebra.Ordering) {
	if len(os) == 0 {
		st.w.write("(SELECT 1)")
		return
	}
	for i, o := range os {
		if i > 0 {
			st.w.write(", ")
		}
		switch o.Expr.(type) {
		case *algebra.Constant, *algebra.Parameter:
			st.w.write("(SELECT 1)")
		default:
			st.value(o.Expr)
		}
		if o.Descending {
			st.w.write(" DESC")
		}
	}
}

func (st *statement) list(es []algebra.SQLExpr) {
	for i, e := range es {
		if i > 0 {
			st.w.write(", ")
		}
		st.value(e)
	}
}

// nested renders f indented inside parentheses. ownLine puts the closing
// parenthesis on a line of its own.
func (st *statement) nested(ownLine bool, f func()) {
	st.w.write("(")
	st.w.indent++
	st.w.newline()
	f()
	st.w.indent--
	if ownLine {
		st.w.newline()
	}
	st.w.write(")")
}

func (st *statement) table(t algebra.TableSource) {
	switch n := t.(type) {
	case *algebra.TableExpr:
		name := st.d.quote(n.Name)
		if n.Schema != "" {
			name = st.d.quote(n.Schema) + "." + name
		}
		st.w.write(name)
		if n.Temporal != nil {
			st.temporal(n)
		}
	case *algebra.SubqueryExpr:
		st.nested(true, func() { st.selectStmt(n.Select) })
	case *algebra.SetOperationExpr:
		st.nested(true, func() { st.setOperation(n) })
	case *algebra.FromSQLExpr:
		st.nested(true, func() { st.raw(n) })
	case *algebra.JSONTableExpr:
		st.d.jsonTable(st, n, st.alias(n))
		return
	default:
		st.fail(fmt.Errorf("sqlgen: unhandled table %T", t))
		return
	}
	st.w.write(" AS " + st.d.quote(st.alias(t)))
}

func (st *statement) temporal(t *algebra.TableExpr) {
	if !st.features.Temporal {
		st.fail(domain.Errorf(domain.ErrUnsupported, "FOR SYSTEM_TIME", entityName(t), "temporal tables are not supported by %s", st.d.name()))
		return
	}
	sc := t.Temporal
	st.w.write(" FOR SYSTEM_TIME ")
	switch sc.Mode {
	case algebra.AsOf:
		st.w.write("AS OF ")
		st.value(sc.From)
	case algebra.All:
		st.w.write("ALL")
	case algebra.Between:
		st.w.write("BETWEEN ")
		st.value(sc.From)
		st.w.write(" AND ")
		st.value(sc.To)
	case algebra.FromTo:
		st.w.write("FROM ")
		st.value(sc.From)
		st.w.write(" TO ")
		st.value(sc.To)
	case algebra.ContainedIn:
		st.w.write("CONTAINED IN (")
		st.value(sc.From)
		st.w.write(", ")
		st.value(sc.To)
		st.w.write(")")
	}
}

func entityName(t *algebra.TableExpr) string {
	if t.Entity != nil {
		return t.Entity.Name
	}
	return t.Name
}

func (st *statement) join(j *algebra.Join) {
	switch j.Kind {
	case algebra.JoinCrossApply, algebra.JoinOuterApply:
		if !st.features.Apply {
			st.fail(domain.Errorf(domain.ErrUnsupported, j.Kind.Keyword(), "", "correlated derived tables are not supported by %s", st.d.name()))
			return
		}
		keyword, on := st.d.lateral(j.Kind)
		st.w.write(keyword + " ")
		st.table(j.Table)
		if on != "" {
			st.w.write(" ON " + on)
		}
		return
	}
	st.w.write(j.Kind.Keyword() + " ")
	st.table(j.Table)
	if j.Kind == algebra.JoinCross {
		return
	}
	st.w.write(" ON ")
	if j.On == nil {
		st.w.write(st.d.condLiteral(true))
		return
	}
	st.predicate(j.On)
}

func (st *statement) setOperation(n *algebra.SetOperationExpr) {
	for i, op := range n.Operands {
		if i > 0 {
			st.w.newline()
			st.w.write(n.Kind.Keyword())
			st.w.newline()
		}
		st.selectStmt(op)
	}
}

func (st *statement) raw(n *algebra.FromSQLExpr) {
	text, err := params.ExpandRaw(n.SQL, func(i int) (string, error) {
		if i < 0 || i >= len(n.Args) {
			return "", fmt.Errorf("raw sql: placeholder {%d} has no argument", i)
		}
		return st.capture(func() { st.value(n.Args[i]) }), nil
	})
	if err != nil {
		st.fail(err)
		return
	}
	st.w.write(text)
}

// param renders the placeholder of p and records it.
func (st *statement) param(p *algebra.Parameter) {
	switch st.d.placeholders() {
	case positionalPlaceholders:
		st.params = append(st.params, p)
		st.w.write("?")
	case numberedPlaceholders:
		i, ok := st.ordinals[p.Name]
		if !ok {
			i = len(st.params)
			st.ordinals[p.Name] = i
			st.params = append(st.params, p)
		}
		st.w.write("$" + strconv.Itoa(i+1))
	default:
		if _, ok := st.ordinals[p.Name]; !ok {
			st.ordinals[p.Name] = len(st.params)
			st.params = append(st.params, p)
		}
		st.w.write("@" + p.Name)
	}
}
