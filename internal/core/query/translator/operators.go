package translator

import (
	"time"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
	"github.com/satishbabariya/relq/internal/core/query/setops"
)

func (t *translation) where(n *expr.Where, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	return q, t.filter(q, n.Predicate, outer)
}

// filter applies a predicate lambda to q. A predicate over a grouping
// becomes HAVING.
func (t *translation) filter(q *query, l *expr.Lambda, outer env) error {
	if g, ok := q.shape.(*groupingShape); ok {
		if err := t.group(g, q.sel); err != nil {
			return err
		}
		pred, err := t.condition(l, outer, g)
		if err != nil {
			return err
		}
		if !isTrue(pred) {
			q.sel.Having = algebra.And(q.sel.Having, pred)
		}
		return nil
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	pred, err := t.condition(l, outer, q.shape)
	if err != nil {
		return err
	}
	addPredicate(q.sel, pred)
	return nil
}

func (t *translation) selectOp(n *expr.Select, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	if g, ok := q.shape.(*groupingShape); ok {
		if err := t.group(g, q.sel); err != nil {
			return nil, err
		}
	}
	sh, err := t.lambda(n.Selector, outer, q.shape)
	if err != nil {
		return nil, err
	}
	q.shape = sh
	return q, nil
}

func (t *translation) orderBy(n *expr.OrderBy, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() {
		if n.ThenBy {
			return nil, domain.Errorf(domain.ErrUnsupported, "ThenBy", "", "ThenBy must directly follow an ordering")
		}
		t.pushdown(q)
	}
	key, err := t.lambda(n.Key, outer, q.shape)
	if err != nil {
		return nil, err
	}
	exprs, err := keyExprs(key)
	if err != nil {
		return nil, err
	}
	if !n.ThenBy {
		q.sel.Orderings = nil
	}
	for _, e := range exprs {
		q.sel.AppendOrdering(algebra.Ordering{Expr: e, Descending: n.Descending})
	}
	return q, nil
}

// count translates the row count of Skip or Take: an int constant stays
// inline and a captured count becomes a parameter.
func (t *translation) count(s expr.Scalar, construct string) (algebra.SQLExpr, error) {
	switch n := s.(type) {
	case *expr.Constant:
		switch v := n.Value.(type) {
		case int:
			return &algebra.Constant{Value: v, Mapping: algebra.IntMapping}, nil
		case int64:
			return &algebra.Constant{Value: int(v), Mapping: algebra.IntMapping}, nil
		}
	case *expr.Captured:
		return t.binder.Paging(n.Name, algebra.IntMapping), nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, construct, "", "the count must be an integer constant or a captured value")
}

func (t *translation) skip(n *expr.Skip, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	c, err := t.count(n.Count, "Skip")
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() {
		t.pushdown(q)
	}
	if len(q.sel.Orderings) == 0 {
		return nil, domain.Errorf(domain.ErrUnorderedSkip, "Skip", entityOf(q.shape), "")
	}
	q.sel.Offset = c
	return q, nil
}

func (t *translation) take(n *expr.Take, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	c, err := t.count(n.Count, "Take")
	if err != nil {
		return nil, err
	}
	if q.sel.Limit != nil {
		t.pushdown(q)
	}
	q.sel.Limit = c
	return q, nil
}

func (t *translation) distinct(n *expr.Distinct, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() {
		t.pushdown(q)
	}
	q.sel.Distinct = true
	q.sel.ClearOrderings()
	q.sel.Identifier = identifierOf(q.shape)
	return q, nil
}

// identifierOf returns the values that identify distinct rows of a shape.
func identifierOf(sh shape) []algebra.SQLExpr {
	switch s := sh.(type) {
	case *scalarShape:
		return []algebra.SQLExpr{s.expr}
	case *entityShape:
		return s.keys()
	case *recordShape:
		var out []algebra.SQLExpr
		for _, m := range s.members {
			ids := identifierOf(m)
			if ids == nil {
				return nil
			}
			out = append(out, ids...)
		}
		return out
	}
	return nil
}

func entityOf(sh shape) string {
	if e, ok := sh.(*entityShape); ok {
		return e.entity.Name
	}
	return ""
}

// ofType narrows an entity sequence to a derived type.
func (t *translation) ofType(n *expr.OfType, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	es, ok := q.shape.(*entityShape)
	if !ok {
		return nil, domain.Errorf(domain.ErrUnsupported, "OfType", "", "OfType over %s", describeShape(q.shape))
	}
	target, err := t.model.Entity(n.Type)
	if err != nil {
		return nil, domain.Errorf(domain.ErrUnknownMember, "OfType", n.Type, "no entity type %s", n.Type)
	}
	switch {
	case target.IsAssignableFrom(es.entity):
		return q, nil
	case target.Root() != es.entity.Root():
		return nil, domain.Errorf(domain.ErrUnsupported, "OfType", es.entity.Name, "%s is not in the hierarchy", target.Name)
	}
	if q.sel.IsPaged() || q.sel.Distinct {
		t.pushdown(q)
		es = q.shape.(*entityShape)
	}
	if !es.entity.IsAssignableFrom(target) {
		addPredicate(q.sel, algebra.False())
	} else if d := target.Discriminator(); d != nil {
		if pred := navigation.DiscriminatorPredicate(target, es.property(d)); pred != nil {
			addPredicate(q.sel, pred)
		}
	}
	narrowed := *es
	narrowed.entity = target
	q.shape = &narrowed
	return q, nil
}

func (t *translation) include(n *expr.Include, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	es, ok := q.shape.(*entityShape)
	if !ok {
		return nil, domain.Errorf(domain.ErrUnsupported, "Include", "", "Include over %s", describeShape(q.shape))
	}
	steps, err := navigation.ParseInclude(n.Path)
	if err != nil {
		return nil, err
	}
	if es.includes == nil {
		es.includes = &navigation.IncludeTree{}
		t.includes = append(t.includes, es.includes)
	}
	if err := es.includes.Add(steps, n.Then); err != nil {
		return nil, err
	}
	return q, nil
}

var temporalModes = map[expr.TemporalMode]algebra.TemporalMode{
	expr.TemporalAsOf:        algebra.AsOf,
	expr.TemporalAll:         algebra.All,
	expr.TemporalBetween:     algebra.Between,
	expr.TemporalFromTo:      algebra.FromTo,
	expr.TemporalContainedIn: algebra.ContainedIn,
}

// temporal scopes the root table of a system-versioned entity.
func (t *translation) temporal(n *expr.Temporal, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	construct := "Temporal" + n.Mode.String()
	es, ok := q.shape.(*entityShape)
	table, isTable := q.sel.From().(*algebra.TableExpr)
	if !ok || !isTable || table.Entity == nil || !table.Entity.IsTemporal() {
		return nil, domain.Errorf(domain.ErrUnsupported, construct, entityOf(q.shape), "the source is not a temporal table")
	}
	scope := &algebra.TemporalScope{Mode: temporalModes[n.Mode]}
	if scope.From, err = t.point(n.From, construct); err != nil {
		return nil, err
	}
	if scope.To, err = t.point(n.To, construct); err != nil {
		return nil, err
	}
	table.Temporal = scope
	if scope.Mode != algebra.AsOf {
		es.versioned = true
	}
	return q, nil
}

func (t *translation) point(s expr.Scalar, construct string) (algebra.SQLExpr, error) {
	switch n := s.(type) {
	case nil:
		return nil, nil
	case *expr.Constant:
		switch v := n.Value.(type) {
		case time.Time:
			return &algebra.Constant{Value: v, Mapping: algebra.DateTimeMapping}, nil
		case string:
			ts, err := model.Coerce(model.KindDateTime, v)
			if err != nil {
				return nil, domain.Errorf(domain.ErrUnsupported, construct, "", "%v", err)
			}
			return &algebra.Constant{Value: ts, Mapping: algebra.DateTimeMapping}, nil
		}
	case *expr.Captured:
		return t.binder.Paging(n.Name, algebra.DateTimeMapping), nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, construct, "", "the point in time must be a constant or a captured value")
}

// setOp combines two sequences. Both sides are projected in the same
// column order first.
func (t *translation) setOp(n *expr.SetOp, outer env) (*query, error) {
	l, err := t.query(n.Left, outer)
	if err != nil {
		return nil, err
	}
	r, err := t.query(n.Right, outer)
	if err != nil {
		return nil, err
	}
	lo, err := t.operand(l, n.Kind.String())
	if err != nil {
		return nil, err
	}
	ro, err := t.operand(r, n.Kind.String())
	if err != nil {
		return nil, err
	}
	res, err := setops.Compose(setops.Kind(n.Kind), lo, ro)
	if err != nil {
		return nil, err
	}
	sh, err := t.setShape(l.shape, r.shape, res)
	if err != nil {
		return nil, err
	}
	return &query{sel: res.Select, shape: sh}, nil
}

// operand projects a set operation side.
func (t *translation) operand(q *query, construct string) (setops.Operand, error) {
	sel := q.sel
	sel.Projection = nil
	switch s := q.shape.(type) {
	case *entityShape:
		root := s.entity.Root()
		for _, p := range root.ColumnProperties() {
			sel.AddProjection(s.property(p), "")
		}
		for _, o := range root.OwnedInHierarchy() {
			owned, err := ownedOf(s, o)
			if err != nil {
				return setops.Operand{}, err
			}
			touchInto(sel, owned)
		}
		if s.includes != nil && !s.includes.Empty() {
			return setops.Operand{}, domain.Errorf(domain.ErrUnsupported, construct, s.entity.Name, "includes must follow the set operation")
		}
		return setops.Operand{Select: sel, Entity: s.entity}, nil
	case *scalarShape:
		sel.AddProjection(s.expr, outputAlias(s.expr, "c"))
		return setops.Operand{Select: sel}, nil
	case *recordShape:
		for i, m := range s.members {
			sc, ok := m.(*scalarShape)
			if !ok {
				return setops.Operand{}, domain.Errorf(domain.ErrUnsupported, construct, "", "member %s is not a scalar", s.names[i])
			}
			sel.AddProjection(sc.expr, outputAlias(sc.expr, s.names[i]))
		}
		return setops.Operand{Select: sel}, nil
	}
	return setops.Operand{}, domain.Errorf(domain.ErrUnsupported, construct, "", "set operation over %s", describeShape(q.shape))
}

// touchInto projects every column an owned value reads.
func touchInto(sel *algebra.Select, sh shape) {
	switch s := sh.(type) {
	case *ownedShape:
		if s.doc != nil {
			sel.AddProjection(s.doc(), "")
			return
		}
		for _, p := range s.typ.Properties {
			sel.AddProjection(s.prop(p), "")
		}
		for _, o := range s.typ.Owned {
			if sub, err := s.sub(o); err == nil {
				touchInto(sel, sub)
			}
		}
	case *ownedCollectionShape:
		sel.AddProjection(s.doc(), "")
	}
}

// outputAlias names computed projections; columns keep their name unless
// the member is named differently.
func outputAlias(e algebra.SQLExpr, name string) string {
	if c, ok := e.(*algebra.Column); ok && c.Name == name {
		return ""
	}
	return name
}

// setShape reads the result of a set operation in the shape of its left
// operand.
func (t *translation) setShape(l, r shape, res *setops.Result) (shape, error) {
	switch s := l.(type) {
	case *entityShape:
		e := s.entity
		if re, ok := r.(*entityShape); ok {
			e = commonBase(s.entity, re.entity)
		}
		byName := make(map[string]*algebra.Column, len(res.Columns))
		for _, c := range res.Columns {
			byName[c.Name] = c
		}
		t.nextID++
		return &entityShape{
			entity: e,
			table:  res.Table,
			sel:    res.Select,
			read: func(name string, nullable bool, m *algebra.TypeMapping) algebra.SQLExpr {
				c, ok := byName[name]
				if !ok {
					return &algebra.Column{Table: res.Table, Name: name, Nullable: nullable, Mapping: m}
				}
				return nullableIf(c, nullable)
			},
			id:        t.nextID,
			path:      t.rootPath(e),
			versioned: s.versioned,
		}, nil
	case *scalarShape:
		return &scalarShape{expr: res.Columns[0]}, nil
	case *recordShape:
		out := &recordShape{names: s.names}
		for i := range s.members {
			out.members = append(out.members, &scalarShape{expr: res.Columns[i]})
		}
		return out, nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, "set operation", "", "result of %s", describeShape(l))
}

// commonBase returns the most derived type both a and b derive from.
func commonBase(a, b *model.EntityType) *model.EntityType {
	for e := a; e != nil; e = e.Base {
		if e.IsAssignableFrom(b) {
			return e
		}
	}
	return a.Root()
}

// groupBy groups a sequence. The select is grouped when the grouping is
// consumed by Select, Where or an aggregate.
func (t *translation) groupBy(n *expr.GroupBy, outer env) (*query, error) {
	q, err := t.query(n.Source, outer)
	if err != nil {
		return nil, err
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	key, err := t.lambda(n.Key, outer, q.shape)
	if err != nil {
		return nil, err
	}
	element := q.shape
	if n.Element != nil {
		if element, err = t.lambda(n.Element, outer, q.shape); err != nil {
			return nil, err
		}
	}
	q.shape = &groupingShape{key: key, element: element, sel: q.sel}
	return q, nil
}

// group applies the GROUP BY of g to sel once.
func (t *translation) group(g *groupingShape, sel *algebra.Select) error {
	if sel.IsGrouped() {
		return nil
	}
	keys, err := keyExprs(g.key)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := k.(*algebra.Constant); ok {
			continue
		}
		sel.GroupBy = append(sel.GroupBy, k)
	}
	if len(sel.GroupBy) == 0 {
		return domain.Errorf(domain.ErrUnsupported, "GroupBy", "", "the grouping key must read a column")
	}
	sel.Orderings = nil
	sel.Identifier = keys
	return nil
}
