package translator

import (
	"strconv"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
)

// joined is a child sequence joined into a parent select.
type joined struct {
	shape shape
	// orderings are the child orderings readable from the parent.
	orderings  []algebra.Ordering
	identifier []algebra.SQLExpr
}

func (t *translation) selectMany(n *expr.SelectMany, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	coll, err := t.lambda(n.Collection, outer, q.shape)
	if err != nil {
		return nil, err
	}
	child, err := t.sequence(coll, n.Collection.Body)
	if err != nil {
		return nil, err
	}
	j, err := t.joinCorrelated(q, child, child.defaultIfEmpty)
	if err != nil {
		return nil, err
	}
	if len(j.identifier) == 0 {
		q.sel.Identifier = nil
	} else if q.sel.Identifier != nil {
		q.sel.Identifier = append(q.sel.Identifier, j.identifier...)
	}
	if n.Result == nil {
		q.shape = j.shape
		return q, nil
	}
	if q.shape, err = t.lambda(n.Result, outer, q.shape, j.shape); err != nil {
		return nil, err
	}
	return q, nil
}

// join translates an inner join on keys.
func (t *translation) join(n *expr.Join, outer env) (*query, error) {
	q, err := t.query(n.Outer, outer)
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	inner, err := t.query(n.Inner, outer)
	if err != nil {
		return nil, err
	}
	outerKey, err := t.lambda(n.OuterKey, outer, q.shape)
	if err != nil {
		return nil, err
	}
	table := inner.sel.From()
	if !plain(inner.sel) {
		pd := t.pushdown(inner)
		table = pd.Table
	}
	ik, err := t.lambda(n.InnerKey, outer, inner.shape)
	if err != nil {
		return nil, err
	}
	on, err := keyEquality(outerKey, ik)
	if err != nil {
		return nil, err
	}
	q.sel.AddJoin(algebra.JoinInner, table, on)
	if q.sel.Identifier != nil && inner.sel.Identifier != nil {
		q.sel.Identifier = append(q.sel.Identifier, inner.sel.Identifier...)
	} else {
		q.sel.Identifier = nil
	}
	innerShape := rehome(inner.shape, q.sel, false)
	if q.shape, err = t.lambda(n.Result, outer, q.shape, innerShape); err != nil {
		return nil, err
	}
	return q, nil
}

// groupJoin correlates every outer element with the inner elements whose
// key matches. The group is translated where it is consumed.
func (t *translation) groupJoin(n *expr.GroupJoin, outer env) (*query, error) {
	q, err := t.query(n.Outer, outer)
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	outerKey, err := t.lambda(n.OuterKey, outer, q.shape)
	if err != nil {
		return nil, err
	}
	if n.InnerKey == nil || len(n.InnerKey.Params) != 1 {
		return nil, domain.Errorf(domain.ErrUnsupported, "GroupJoin", "", "expected a one parameter inner key")
	}
	t.nextID++
	key := "$outerKey" + strconv.Itoa(t.nextID)
	match := &expr.Lambda{
		Params: n.InnerKey.Params,
		Body: &expr.Call{Method: joinKeyMethod, Args: []expr.Scalar{
			n.InnerKey.Body, &expr.Param{Name: key},
		}},
	}
	group := &collectionShape{query: &expr.Where{Source: n.Inner, Predicate: match}, env: outer.with(key, outerKey)}
	if q.shape, err = t.lambda(n.Result, outer, q.shape, group); err != nil {
		return nil, err
	}
	return q, nil
}

// plain reports whether s reads one table without any operator applied.
func plain(s *algebra.Select) bool {
	if len(s.Tables) != 1 || s.Predicate != nil || s.IsPaged() || s.Distinct || s.IsGrouped() || s.Having != nil {
		return false
	}
	_, ok := s.From().(*algebra.TableExpr)
	return ok
}

// joinCorrelated joins child into parent. Conjuncts of the child predicate
// that compare a child value with a parent value become the join
// condition. A paged child is ranked per parent. Correlation that cannot
// be lifted into a join condition keeps the child as a lateral join.
func (t *translation) joinCorrelated(parent, child *query, optional bool) (*joined, error) {
	sel := child.sel
	local := localTables(sel)
	var (
		rest          []algebra.SQLExpr
		outerSides    []algebra.SQLExpr
		innerSides    []algebra.SQLExpr
		lateral       bool
		hasCorrelated bool
	)
	for _, c := range conjuncts(sel.Predicate) {
		if !refersOutside(c, local) {
			rest = append(rest, c)
			continue
		}
		hasCorrelated = true
		if in, out, ok := correlation(c, local); ok {
			innerSides = append(innerSides, in)
			outerSides = append(outerSides, out)
			continue
		}
		lateral = true
		rest = append(rest, c)
	}
	if lateral {
		return t.lateral(parent, child, optional), nil
	}
	sel.Predicate = algebra.And(rest...)
	if selectRefersOutside(sel, local) {
		sel.Predicate = algebra.And(append(rest, pairsToPredicates(innerSides, outerSides)...)...)
		return t.lateral(parent, child, optional), nil
	}

	kind := algebra.JoinInner
	if optional {
		kind = algebra.JoinLeft
	}
	on := func(inner []algebra.SQLExpr) algebra.SQLExpr {
		var preds []algebra.SQLExpr
		for i := range inner {
			preds = append(preds, algebra.Equal(outerSides[i], inner[i]))
		}
		if len(preds) == 0 {
			return algebra.True()
		}
		return algebra.And(preds...)
	}

	switch {
	case plain(sel):
		if !hasCorrelated && !optional {
			kind = algebra.JoinCross
		}
		var cond algebra.SQLExpr
		if kind != algebra.JoinCross {
			cond = on(innerSides)
		}
		parent.sel.AddJoin(kind, sel.From(), cond)
		return &joined{
			shape:      rehome(child.shape, parent.sel, optional),
			orderings:  sel.Orderings,
			identifier: nullableAll(sel.Identifier, optional),
		}, nil
	case !sel.IsPaged() || len(innerSides) == 0:
		pd := algebra.PushDown(sel)
		sh := remapOptional(child.shape, pd, optional)
		touch(sh)
		mapped := make([]algebra.SQLExpr, len(innerSides))
		for i, e := range innerSides {
			mapped[i] = pd.Map(e)
		}
		ensureProjection(pd)
		if !hasCorrelated && !optional {
			parent.sel.AddJoin(algebra.JoinCross, pd.Table, nil)
		} else {
			parent.sel.AddJoin(kind, pd.Table, on(mapped))
		}
		return &joined{shape: rehome(sh, parent.sel, optional), orderings: pd.Outer.Orderings, identifier: pd.Outer.Identifier}, nil
	}

	offset, limit := sel.Offset, sel.Limit
	sel.Offset, sel.Limit = nil, nil
	ranked := navigation.Rank(sel, innerSides, offset, limit)
	sh := remap(child.shape, ranked.Pushdown)
	touch(sh)
	mapped := make([]algebra.SQLExpr, len(innerSides))
	for i, e := range innerSides {
		mapped[i] = ranked.Map(e)
	}
	pd := algebra.PushDown(ranked.Outer)
	sh = remapOptional(sh, pd, optional)
	touch(sh)
	for i, e := range mapped {
		mapped[i] = pd.Map(e)
	}
	ensureProjection(pd)
	parent.sel.AddJoin(kind, pd.Table, on(mapped))
	return &joined{shape: rehome(sh, parent.sel, optional), orderings: pd.Outer.Orderings, identifier: pd.Outer.Identifier}, nil
}

// lateral joins child with CROSS APPLY or OUTER APPLY, keeping its
// correlation inside.
func (t *translation) lateral(parent, child *query, optional bool) *joined {
	pd := algebra.PushDown(child.sel)
	sh := remapOptional(child.shape, pd, optional)
	touch(sh)
	ensureProjection(pd)
	kind := algebra.JoinCrossApply
	if optional {
		kind = algebra.JoinOuterApply
	}
	parent.sel.AddJoin(kind, pd.Table, nil)
	return &joined{shape: rehome(sh, parent.sel, optional), orderings: pd.Outer.Orderings, identifier: pd.Outer.Identifier}
}

func ensureProjection(pd *algebra.Pushdown) {
	if len(pd.Inner.Projection) == 0 {
		pd.Inner.AddProjection(&algebra.Constant{Value: 1, Mapping: algebra.IntMapping}, "empty")
	}
}

func pairsToPredicates(inner, outer []algebra.SQLExpr) []algebra.SQLExpr {
	out := make([]algebra.SQLExpr, len(inner))
	for i := range inner {
		out[i] = algebra.Equal(outer[i], inner[i])
	}
	return out
}

func nullableAll(es []algebra.SQLExpr, optional bool) []algebra.SQLExpr {
	if !optional {
		return es
	}
	out := make([]algebra.SQLExpr, len(es))
	for i, e := range es {
		out[i] = nullableIf(e, true)
	}
	return out
}

// conjuncts splits a predicate on AND.
func conjuncts(p algebra.SQLExpr) []algebra.SQLExpr {
	if b, ok := p.(*algebra.Binary); ok && b.Op == algebra.OpAnd {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	if p == nil {
		return nil
	}
	return []algebra.SQLExpr{p}
}

// correlation splits inner = outer into its sides.
func correlation(c algebra.SQLExpr, local map[algebra.TableSource]bool) (inner, outer algebra.SQLExpr, ok bool) {
	b, isBinary := c.(*algebra.Binary)
	if !isBinary || b.Op != algebra.OpEqual {
		return nil, nil, false
	}
	pureInner := func(e algebra.SQLExpr) bool {
		return algebra.ReferencesTables(e) && !refersOutside(e, local)
	}
	pureOuter := func(e algebra.SQLExpr) bool {
		return !refersInside(e, local)
	}
	switch {
	case pureInner(b.Right) && pureOuter(b.Left):
		return b.Right, b.Left, true
	case pureInner(b.Left) && pureOuter(b.Right):
		return b.Left, b.Right, true
	}
	return nil, nil, false
}

// localTables collects the tables declared in s and in every select
// nested in it.
func localTables(s *algebra.Select) map[algebra.TableSource]bool {
	out := make(map[algebra.TableSource]bool)
	var visit func(*algebra.Select)
	visit = func(s *algebra.Select) {
		for _, j := range s.Tables {
			out[j.Table] = true
			for _, sub := range algebra.TableSelects(j.Table) {
				visit(sub)
			}
		}
	}
	visit(s)
	algebra.InspectSelect(s, func(e algebra.SQLExpr) bool {
		_, subs := algebra.Children(e)
		for _, sub := range subs {
			visit(sub)
		}
		return true
	})
	return out
}

func columnsOf(e algebra.SQLExpr, visit func(*algebra.Column) bool) {
	probe := &algebra.Select{Projection: []*algebra.ProjectionItem{{Expr: e}}}
	selectColumns(probe, visit)
}

func selectColumns(s *algebra.Select, visit func(*algebra.Column) bool) {
	done := false
	algebra.InspectSelect(s, func(e algebra.SQLExpr) bool {
		if done {
			return false
		}
		if c, ok := e.(*algebra.Column); ok && !visit(c) {
			done = true
		}
		return !done
	})
}

// refersOutside reports whether e reads a column of a table not in local.
func refersOutside(e algebra.SQLExpr, local map[algebra.TableSource]bool) bool {
	found := false
	columnsOf(e, func(c *algebra.Column) bool {
		found = !local[c.Table]
		return !found
	})
	return found
}

func refersInside(e algebra.SQLExpr, local map[algebra.TableSource]bool) bool {
	found := false
	columnsOf(e, func(c *algebra.Column) bool {
		found = local[c.Table]
		return !found
	})
	return found
}

func selectRefersOutside(s *algebra.Select, local map[algebra.TableSource]bool) bool {
	found := false
	selectColumns(s, func(c *algebra.Column) bool {
		found = !local[c.Table]
		return !found
	})
	return found
}

// rehome moves shapes joined into sel so that further navigations join
// there. Shapes on the optional side of a join read nullable columns.
func rehome(s shape, sel *algebra.Select, optional bool) shape {
	switch n := s.(type) {
	case *entityShape:
		out := *n
		out.sel = sel
		if optional && !n.optional {
			out.optional = true
			inner := n.read
			out.read = func(name string, _ bool, m *algebra.TypeMapping) algebra.SQLExpr {
				return inner(name, true, m)
			}
		}
		return &out
	case *ownedShape:
		if n.owner == nil {
			return n
		}
		out := *n
		out.owner = rehome(n.owner, sel, optional).(*entityShape)
		return &out
	case *recordShape:
		out := &recordShape{names: n.names, members: make([]shape, len(n.members))}
		for i, m := range n.members {
			out.members[i] = rehome(m, sel, optional)
		}
		return out
	case *navCollectionShape:
		return &navCollectionShape{owner: rehome(n.owner, sel, optional).(*entityShape), nav: n.nav}
	case *collectionShape:
		return &collectionShape{query: n.query, env: rehomeEnv(n.env, sel, optional)}
	case *singleShape:
		return &singleShape{query: n.query, env: rehomeEnv(n.env, sel, optional)}
	case *groupingShape:
		return &groupingShape{key: rehome(n.key, sel, optional), element: rehome(n.element, sel, optional), sel: sel}
	}
	return s
}

func rehomeEnv(e env, sel *algebra.Select, optional bool) env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = rehome(v, sel, optional)
	}
	return out
}
