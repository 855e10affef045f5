package translator

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
)

// scalarTerminal translates a subquery ending with a terminal operator
// used as a value.
func (t *translation) scalarTerminal(term *expr.Terminal, e env) (shape, error) {
	if g, chain, ok, err := t.groupSource(term.Source, e); err != nil {
		return nil, err
	} else if ok {
		return t.groupAggregate(g, chain, term, e)
	}
	if term.Op.IsElement() {
		return t.elementOf(term, e)
	}

	prev := t.typedJSON
	t.typedJSON = true
	q, err := t.query(term.Source, e)
	t.typedJSON = prev
	if err != nil {
		return nil, err
	}
	switch term.Op {
	case expr.Any:
		if term.Arg != nil {
			if err := t.filter(q, term.Arg, e); err != nil {
				return nil, err
			}
		}
		q.sel.ClearOrderings()
		q.sel.Projection = nil
		return &scalarShape{expr: &algebra.Exists{Subquery: q.sel}}, nil
	case expr.All:
		if err := t.notMatching(q, term.Arg, e); err != nil {
			return nil, err
		}
		q.sel.ClearOrderings()
		q.sel.Projection = nil
		return &scalarShape{expr: &algebra.Exists{Subquery: q.sel, Negated: true}}, nil
	}
	v, err := t.aggregate(q, term.Op, term.Arg, e)
	if err != nil {
		return nil, err
	}
	q.sel.Projection = nil
	q.sel.AddProjection(v, "")
	return &scalarShape{expr: &algebra.ScalarSubquery{Subquery: q.sel, Mapping: algebra.MappingOf(v)}}, nil
}

// notMatching keeps the rows of q failing the predicate of All.
func (t *translation) notMatching(q *query, l *expr.Lambda, e env) error {
	if l == nil {
		return domain.Errorf(domain.ErrUnsupported, "All", "", "All needs a predicate")
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	pred, err := t.condition(l, e, q.shape)
	if err != nil {
		return err
	}
	addPredicate(q.sel, negate(pred))
	return nil
}

// elementOf translates First, Single and their OrDefault forms used as a
// value. Scalars become a one row subquery; entities and records are
// joined where they are consumed.
func (t *translation) elementOf(term *expr.Terminal, e env) (shape, error) {
	q, err := t.query(term.Source, e)
	if err != nil {
		return nil, err
	}
	if _, ok := q.shape.(*scalarShape); !ok {
		return &singleShape{query: term, env: e}, nil
	}
	if err := t.limitToElement(q, term, e); err != nil {
		return nil, err
	}
	v, err := valueOf(q.shape, term.Op.String())
	if err != nil {
		return nil, err
	}
	q.sel.Projection = nil
	q.sel.AddProjection(v, "")
	return &scalarShape{expr: &algebra.ScalarSubquery{Subquery: q.sel, Mapping: algebra.MappingOf(v)}}, nil
}

// groupSource reports whether q reads the elements of a grouping, returning
// the Where and Select operators applied to them innermost first.
func (t *translation) groupSource(q expr.Query, e env) (*groupingShape, []expr.Query, bool, error) {
	var chain []expr.Query
	for {
		switch n := q.(type) {
		case *expr.Where:
			chain = append([]expr.Query{n}, chain...)
			q = n.Source
			continue
		case *expr.Select:
			chain = append([]expr.Query{n}, chain...)
			q = n.Source
			continue
		case *expr.CollectionRef:
			if _, _, ok := expr.Path(n.Collection); !ok {
				return nil, nil, false, nil
			}
			sh, err := t.scalar(n.Collection, e)
			if err != nil {
				return nil, nil, false, err
			}
			g, ok := sh.(*groupingShape)
			return g, chain, ok, nil
		}
		return nil, nil, false, nil
	}
}

// groupAggregate folds the elements of a grouping into an aggregate of the
// grouped select. Filters over the elements become conditional
// aggregation.
func (t *translation) groupAggregate(g *groupingShape, chain []expr.Query, term *expr.Terminal, e env) (shape, error) {
	if err := t.group(g, g.sel); err != nil {
		return nil, err
	}
	cur := g.element
	var pred algebra.SQLExpr
	for _, op := range chain {
		switch n := op.(type) {
		case *expr.Where:
			p, err := t.condition(n.Predicate, e, cur)
			if err != nil {
				return nil, err
			}
			pred = and(pred, p)
		case *expr.Select:
			next, err := t.lambda(n.Selector, e, cur)
			if err != nil {
				return nil, err
			}
			cur = next
		}
	}

	switch term.Op {
	case expr.Count, expr.LongCount, expr.Any, expr.All:
		if term.Arg != nil {
			p, err := t.condition(term.Arg, e, cur)
			if err != nil {
				return nil, err
			}
			if term.Op == expr.All {
				p = negate(p)
			}
			pred = and(pred, p)
		}
		var count algebra.SQLExpr = countStar(term.Op)
		if pred != nil && !isTrue(pred) {
			name := "COUNT"
			if term.Op == expr.LongCount {
				name = "COUNT_BIG"
			}
			count = &algebra.Function{Name: name, Args: []algebra.SQLExpr{when(pred, &algebra.Constant{Value: 1, Mapping: algebra.IntMapping})}, Mapping: countMapping(term.Op)}
		}
		zero := &algebra.Constant{Value: 0, Mapping: algebra.IntMapping}
		switch term.Op {
		case expr.Any:
			return &scalarShape{expr: &algebra.Binary{Op: algebra.OpGreaterThan, Left: count, Right: zero}}, nil
		case expr.All:
			return &scalarShape{expr: &algebra.Binary{Op: algebra.OpEqual, Left: count, Right: zero}}, nil
		}
		return &scalarShape{expr: count}, nil
	case expr.Sum, expr.Min, expr.Max, expr.Average:
		if term.Arg != nil {
			next, err := t.lambda(term.Arg, e, cur)
			if err != nil {
				return nil, err
			}
			cur = next
		}
		v, err := valueOf(cur, term.Op.String())
		if err != nil {
			return nil, err
		}
		if pred != nil && !isTrue(pred) {
			v = when(pred, v)
		}
		return &scalarShape{expr: fold(term.Op, v)}, nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, term.Op.String(), "", "%s over a grouping", term.Op)
}

// aggregate computes the aggregate of q for op.
func (t *translation) aggregate(q *query, op expr.TerminalOp, arg *expr.Lambda, outer env) (algebra.SQLExpr, error) {
	if g, ok := q.shape.(*groupingShape); ok {
		if err := t.group(g, q.sel); err != nil {
			return nil, err
		}
	}
	counting := op == expr.Count || op == expr.LongCount
	if counting && arg != nil {
		if err := t.filter(q, arg, outer); err != nil {
			return nil, err
		}
	}
	if q.sel.IsPaged() || q.sel.Distinct || q.sel.IsGrouped() {
		t.pushdown(q)
	}
	q.sel.ClearOrderings()
	if counting {
		return countStar(op), nil
	}
	sh := q.shape
	if arg != nil {
		var err error
		if sh, err = t.lambda(arg, outer, q.shape); err != nil {
			return nil, err
		}
	}
	v, err := valueOf(sh, op.String())
	if err != nil {
		return nil, err
	}
	return fold(op, v), nil
}

// fold applies the SQL aggregate for op to v. SUM of no rows is zero;
// AVG of integers is computed in floating point.
func fold(op expr.TerminalOp, v algebra.SQLExpr) algebra.SQLExpr {
	m := algebra.MappingOf(v)
	switch op {
	case expr.Sum:
		sum := &algebra.Function{Name: "SUM", Args: []algebra.SQLExpr{v}, Mapping: m, Nullable: true}
		return &algebra.Function{
			Name:    "COALESCE",
			Args:    []algebra.SQLExpr{sum, &algebra.Constant{Value: zeroOf(m), Mapping: m}},
			Mapping: m,
		}
	case expr.Average:
		switch kindOf(m) {
		case model.KindInt, model.KindLong, model.KindShort, model.KindByte:
			v = &algebra.Cast{Operand: v, Mapping: algebra.DoubleMapping}
			m = algebra.DoubleMapping
		}
		return &algebra.Function{Name: "AVG", Args: []algebra.SQLExpr{v}, Mapping: m, Nullable: true}
	case expr.Min:
		return &algebra.Function{Name: "MIN", Args: []algebra.SQLExpr{v}, Mapping: m, Nullable: true}
	}
	return &algebra.Function{Name: "MAX", Args: []algebra.SQLExpr{v}, Mapping: m, Nullable: true}
}

// countStar is COUNT(*), or COUNT_BIG(*) for LongCount.
func countStar(op expr.TerminalOp) *algebra.Function {
	name := "COUNT"
	if op == expr.LongCount {
		name = "COUNT_BIG"
	}
	return &algebra.Function{Name: name, Args: []algebra.SQLExpr{&algebra.Star{}}, Mapping: countMapping(op)}
}

func countMapping(op expr.TerminalOp) *algebra.TypeMapping {
	if op == expr.LongCount {
		return algebra.LongMapping
	}
	return algebra.IntMapping
}

// when is CASE WHEN pred THEN v END.
func when(pred, v algebra.SQLExpr) algebra.SQLExpr {
	return &algebra.Case{Whens: []algebra.When{{Test: pred, Result: v}}, Mapping: algebra.MappingOf(v)}
}
