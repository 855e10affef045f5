package translator

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
)

// lambda translates the body of l with its parameters bound to args.
func (t *translation) lambda(l *expr.Lambda, outer env, args ...shape) (shape, error) {
	if l == nil || len(l.Params) != len(args) {
		return nil, domain.Errorf(domain.ErrUnsupported, "lambda", "", "expected a lambda of %d parameters", len(args))
	}
	e := outer
	for i, p := range l.Params {
		e = e.with(p, args[i])
	}
	return t.scalar(l.Body, e)
}

// condition translates a predicate lambda.
func (t *translation) condition(l *expr.Lambda, outer env, arg shape) (algebra.SQLExpr, error) {
	if l == nil || len(l.Params) != 1 {
		return nil, domain.Errorf(domain.ErrUnsupported, "predicate", "", "expected a one parameter lambda")
	}
	return t.predicate(l.Body, outer.with(l.Params[0], arg))
}

// predicate translates s in predicate position.
func (t *translation) predicate(s expr.Scalar, e env) (algebra.SQLExpr, error) {
	sh, err := t.scalar(s, e)
	if err != nil {
		return nil, err
	}
	v, err := valueOf(sh, "predicate")
	if err != nil {
		return nil, err
	}
	return asPredicate(v), nil
}

// asPredicate turns a boolean value into a condition.
func asPredicate(v algebra.SQLExpr) algebra.SQLExpr {
	if c, ok := v.(*algebra.Constant); ok {
		if b, ok := c.Value.(bool); ok {
			if b {
				return algebra.True()
			}
			return algebra.False()
		}
	}
	return v
}

// valueOf returns the expression of a scalar shape.
func valueOf(sh shape, construct string) (algebra.SQLExpr, error) {
	if s, ok := sh.(*scalarShape); ok {
		return s.expr, nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, construct, "", "%s is not a scalar value", describeShape(sh))
}

func (t *translation) value(s expr.Scalar, e env, construct string) (algebra.SQLExpr, error) {
	sh, err := t.scalar(s, e)
	if err != nil {
		return nil, err
	}
	return valueOf(sh, construct)
}

func (t *translation) scalar(s expr.Scalar, e env) (shape, error) {
	switch n := s.(type) {
	case *expr.Param:
		sh, ok := e[n.Name]
		if !ok {
			return nil, domain.Errorf(domain.ErrUnsupported, n.Name, "", "unbound lambda parameter")
		}
		return sh, nil
	case *expr.Member:
		target, err := t.scalar(n.Target, e)
		if err != nil {
			return nil, err
		}
		return t.memberOf(target, n.Name)
	case *expr.Constant:
		return &scalarShape{expr: t.constant(n.Value, nil)}, nil
	case *expr.Captured:
		return &scalarShape{expr: t.captured(n.Name, nil)}, nil
	case *expr.ContextValue:
		p, err := t.contextValue(n.Name, nil)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: p}, nil
	case *expr.Binary:
		return t.binary(n, e)
	case *expr.Unary:
		return t.unary(n, e)
	case *expr.Conditional:
		return t.conditional(n, e)
	case *expr.Call:
		if q, ok := expr.AsQuery(n); ok {
			return t.subquery(q, e)
		}
		return t.call(n, e)
	case *expr.New:
		rec := &recordShape{}
		for _, m := range n.Members {
			sh, err := t.scalar(m.Value, e)
			if err != nil {
				return nil, err
			}
			rec.names = append(rec.names, m.Name)
			rec.members = append(rec.members, sh)
		}
		return rec, nil
	case *expr.QueryRef:
		return t.subquery(n.Query, e)
	case *expr.Lambda:
		return nil, domain.Errorf(domain.ErrUnsupported, "lambda", "", "a lambda is not a value")
	}
	return nil, domain.Errorf(domain.ErrUnsupported, "expression", "", "node %T", s)
}

// subquery translates a query used as a value.
func (t *translation) subquery(q expr.Query, e env) (shape, error) {
	if term, ok := q.(*expr.Terminal); ok {
		return t.scalarTerminal(term, e)
	}
	return &collectionShape{query: q, env: e}, nil
}

func (t *translation) constant(v any, m *algebra.TypeMapping) algebra.SQLExpr {
	if v == nil {
		return &algebra.Constant{Mapping: m}
	}
	if m == nil {
		m = algebra.MapValue(v)
	}
	return &algebra.Constant{Value: v, Mapping: m}
}

// captured binds a captured value. A value bound to nil at compile time
// becomes a NULL literal so that comparisons against it test for NULL.
func (t *translation) captured(name string, m *algebra.TypeMapping) algebra.SQLExpr {
	v, bound := t.bindings[name]
	if bound && v == nil {
		return &algebra.Constant{Mapping: m}
	}
	if m == nil {
		m = algebra.MapValue(v)
	}
	return t.binder.Captured(name, m, false)
}

// contextValue binds a filter context member. It is only valid inside a
// query filter.
func (t *translation) contextValue(name string, m *algebra.TypeMapping) (algebra.SQLExpr, error) {
	if len(t.frames) == 0 {
		return nil, domain.Errorf(domain.ErrUnsupported, "ctx."+name, "", "context values are only readable in query filters")
	}
	f := t.frames[len(t.frames)-1]
	return t.binder.Filter(f.entity, name, f.scope, m), nil
}

func literal(s expr.Scalar) bool {
	switch s.(type) {
	case *expr.Constant, *expr.Captured, *expr.ContextValue:
		return true
	}
	return false
}

// pair translates the operands of a binary operator. A literal operand is
// mapped like the other side.
func (t *translation) pair(l, r expr.Scalar, e env) (shape, shape, error) {
	if literal(l) && !literal(r) {
		rs, err := t.scalar(r, e)
		if err != nil {
			return nil, nil, err
		}
		ls, err := t.hinted(l, e, rs)
		return ls, rs, err
	}
	ls, err := t.scalar(l, e)
	if err != nil {
		return nil, nil, err
	}
	rs, err := t.hinted(r, e, ls)
	return ls, rs, err
}

// hinted translates a literal with the mapping of the value it meets.
// String constants compared to enum properties are read as member names.
func (t *translation) hinted(s expr.Scalar, e env, other shape) (shape, error) {
	sc, ok := other.(*scalarShape)
	if !ok || !literal(s) {
		return t.scalar(s, e)
	}
	m := algebra.MappingOf(sc.expr)
	if sc.prop != nil && sc.prop.Collection {
		m = nil
	}
	switch n := s.(type) {
	case *expr.Constant:
		v := n.Value
		if name, ok := v.(string); ok && sc.prop != nil && sc.prop.Enum != nil {
			member, ok := sc.prop.Enum.ByName(name)
			if !ok {
				return nil, domain.Errorf(domain.ErrUnknownMember, name, sc.prop.Enum.Name, "no such enum member")
			}
			v = member.Value
		}
		return &scalarShape{expr: t.constant(v, m)}, nil
	case *expr.Captured:
		return &scalarShape{expr: t.captured(n.Name, m)}, nil
	case *expr.ContextValue:
		p, err := t.contextValue(n.Name, m)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: p}, nil
	}
	return t.scalar(s, e)
}

var comparisonOps = map[expr.BinaryOp]algebra.BinaryOp{
	expr.Equal:              algebra.OpEqual,
	expr.NotEqual:           algebra.OpNotEqual,
	expr.LessThan:           algebra.OpLessThan,
	expr.LessThanOrEqual:    algebra.OpLessThanOrEqual,
	expr.GreaterThan:        algebra.OpGreaterThan,
	expr.GreaterThanOrEqual: algebra.OpGreaterThanOrEqual,
}

var arithmeticOps = map[expr.BinaryOp]algebra.BinaryOp{
	expr.Add:      algebra.OpAdd,
	expr.Subtract: algebra.OpSubtract,
	expr.Multiply: algebra.OpMultiply,
	expr.Divide:   algebra.OpDivide,
	expr.Modulo:   algebra.OpModulo,
}

func (t *translation) binary(n *expr.Binary, e env) (shape, error) {
	if n.Op.IsLogical() {
		l, err := t.predicate(n.Left, e)
		if err != nil {
			return nil, err
		}
		r, err := t.predicate(n.Right, e)
		if err != nil {
			return nil, err
		}
		if n.Op == expr.AndAlso {
			return &scalarShape{expr: and(l, r)}, nil
		}
		return &scalarShape{expr: or(l, r)}, nil
	}
	ls, rs, err := t.pair(n.Left, n.Right, e)
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[n.Op]; ok {
		pred, err := compare(op, ls, rs)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: pred}, nil
	}
	l, err := valueOf(ls, n.Op.String())
	if err != nil {
		return nil, err
	}
	r, err := valueOf(rs, n.Op.String())
	if err != nil {
		return nil, err
	}
	if n.Op == expr.Coalesce {
		m := algebra.MappingOf(l)
		if m == nil {
			m = algebra.MappingOf(r)
		}
		return &scalarShape{expr: &algebra.Function{Name: "COALESCE", Args: []algebra.SQLExpr{l, r}, Mapping: m, Nullable: algebra.IsNullable(r)}}, nil
	}
	op := arithmeticOps[n.Op]
	m := algebra.MappingOf(l)
	if op == algebra.OpAdd && (m.IsString() || algebra.MappingOf(r).IsString()) {
		m = wider(m, algebra.MappingOf(r))
	}
	return &scalarShape{expr: &algebra.Binary{Op: op, Left: l, Right: r, Mapping: m}}, nil
}

// wider returns the string mapping of a concatenation.
func wider(a, b *algebra.TypeMapping) *algebra.TypeMapping {
	if !a.IsString() {
		return b
	}
	if !b.IsString() || a.Unbounded {
		return a
	}
	return b
}

// and and or fold constant operands.
func and(l, r algebra.SQLExpr) algebra.SQLExpr {
	switch {
	case isTrue(l):
		return r
	case isTrue(r):
		return l
	case isFalse(l) || isFalse(r):
		return algebra.False()
	}
	return algebra.And(l, r)
}

func or(l, r algebra.SQLExpr) algebra.SQLExpr {
	switch {
	case isFalse(l):
		return r
	case isFalse(r):
		return l
	case isTrue(l) || isTrue(r):
		return algebra.True()
	}
	return algebra.Or(l, r)
}

func isTrue(e algebra.SQLExpr) bool {
	c, ok := e.(*algebra.Constant)
	return ok && c.Mapping == nil && c.Value == true
}

func isFalse(e algebra.SQLExpr) bool {
	c, ok := e.(*algebra.Constant)
	return ok && c.Mapping == nil && c.Value == false
}

func isNull(e algebra.SQLExpr) bool {
	c, ok := e.(*algebra.Constant)
	return ok && c.Value == nil
}

// compare compares two shapes. Entities compare by key and records member
// by member.
func compare(op algebra.BinaryOp, l, r shape) (algebra.SQLExpr, error) {
	if op != algebra.OpEqual && op != algebra.OpNotEqual {
		lv, err := valueOf(l, op.Symbol())
		if err != nil {
			return nil, err
		}
		rv, err := valueOf(r, op.Symbol())
		if err != nil {
			return nil, err
		}
		return compareValues(op, lv, rv), nil
	}
	lk, err := keyExprs(l)
	if err != nil {
		return nil, err
	}
	rk, err := keyExprs(r)
	if err != nil {
		return nil, err
	}
	switch {
	case len(rk) == 1 && isNull(rk[0]) && len(lk) > 0:
		lk = lk[:1]
	case len(lk) == 1 && isNull(lk[0]) && len(rk) > 0:
		rk = rk[:1]
	}
	if len(lk) != len(rk) {
		return nil, domain.Errorf(domain.ErrUnsupported, op.Symbol(), "", "cannot compare %s with %s", describeShape(l), describeShape(r))
	}
	var preds []algebra.SQLExpr
	for i := range lk {
		preds = append(preds, compareValues(op, lk[i], rk[i]))
	}
	if op == algebra.OpNotEqual {
		return algebra.Or(preds...), nil
	}
	return algebra.And(preds...), nil
}

// keyExprs returns the expressions a shape compares by.
func keyExprs(sh shape) ([]algebra.SQLExpr, error) {
	switch s := sh.(type) {
	case *scalarShape:
		return []algebra.SQLExpr{s.expr}, nil
	case *entityShape:
		return s.keys(), nil
	case *recordShape:
		var out []algebra.SQLExpr
		for _, m := range s.members {
			k, err := keyExprs(m)
			if err != nil {
				return nil, err
			}
			out = append(out, k...)
		}
		return out, nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, "comparison", "", "%s cannot be compared", describeShape(sh))
}

// compareValues compares two values with C# null semantics: null equals
// null and a comparison with a nullable operand never yields unknown.
func compareValues(op algebra.BinaryOp, l, r algebra.SQLExpr) algebra.SQLExpr {
	ln, rn := isNull(l), isNull(r)
	switch {
	case ln && rn:
		if op == algebra.OpEqual {
			return algebra.True()
		}
		return algebra.False()
	case rn:
		return nullTest(op, l)
	case ln:
		return nullTest(op, r)
	}
	lnull, rnull := algebra.IsNullable(l), algebra.IsNullable(r)
	switch op {
	case algebra.OpEqual:
		if lnull && rnull {
			return algebra.Or(algebra.Equal(l, r), algebra.And(isNullExpr(l), isNullExpr(r)))
		}
	case algebra.OpNotEqual:
		ne := &algebra.Binary{Op: algebra.OpNotEqual, Left: l, Right: r}
		switch {
		case lnull && rnull:
			return algebra.And(
				algebra.Or(ne, isNullExpr(l), isNullExpr(r)),
				algebra.Or(isNotNullExpr(l), isNotNullExpr(r)),
			)
		case lnull:
			return algebra.Or(ne, isNullExpr(l))
		case rnull:
			return algebra.Or(ne, isNullExpr(r))
		}
	}
	return &algebra.Binary{Op: op, Left: l, Right: r}
}

func nullTest(op algebra.BinaryOp, e algebra.SQLExpr) algebra.SQLExpr {
	switch op {
	case algebra.OpEqual:
		if !algebra.IsNullable(e) {
			return algebra.False()
		}
		return isNullExpr(e)
	case algebra.OpNotEqual:
		if !algebra.IsNullable(e) {
			return algebra.True()
		}
		return isNotNullExpr(e)
	}
	return algebra.False()
}

func isNullExpr(e algebra.SQLExpr) algebra.SQLExpr {
	return &algebra.Unary{Op: algebra.OpIsNull, Operand: e}
}

func isNotNullExpr(e algebra.SQLExpr) algebra.SQLExpr {
	return &algebra.Unary{Op: algebra.OpIsNotNull, Operand: e}
}

// keyEquality is the plain equality of join keys; rows with null keys never
// join.
func keyEquality(l, r shape) (algebra.SQLExpr, error) {
	lk, err := keyExprs(l)
	if err != nil {
		return nil, err
	}
	rk, err := keyExprs(r)
	if err != nil {
		return nil, err
	}
	if len(lk) != len(rk) {
		return nil, domain.Errorf(domain.ErrUnsupported, "Join", "", "join keys have %d and %d parts", len(lk), len(rk))
	}
	var preds []algebra.SQLExpr
	for i := range lk {
		preds = append(preds, algebra.Equal(lk[i], rk[i]))
	}
	return algebra.And(preds...), nil
}

func (t *translation) unary(n *expr.Unary, e env) (shape, error) {
	if n.Op == expr.Not {
		p, err := t.predicate(n.Operand, e)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: negate(p)}, nil
	}
	v, err := t.value(n.Operand, e, "-")
	if err != nil {
		return nil, err
	}
	if c, ok := v.(*algebra.Constant); ok {
		switch x := c.Value.(type) {
		case int:
			return &scalarShape{expr: &algebra.Constant{Value: -x, Mapping: c.Mapping}}, nil
		case int64:
			return &scalarShape{expr: &algebra.Constant{Value: -x, Mapping: c.Mapping}}, nil
		case float64:
			return &scalarShape{expr: &algebra.Constant{Value: -x, Mapping: c.Mapping}}, nil
		}
	}
	return &scalarShape{expr: &algebra.Unary{Op: algebra.OpNegate, Operand: v, Mapping: algebra.MappingOf(v)}}, nil
}

// negate inverts a condition. A boolean value that is not a condition is
// compared to false.
func negate(p algebra.SQLExpr) algebra.SQLExpr {
	switch n := p.(type) {
	case *algebra.Constant:
		if b, ok := n.Value.(bool); ok && n.Mapping == nil {
			if b {
				return algebra.False()
			}
			return algebra.True()
		}
	case *algebra.Exists:
		return &algebra.Exists{Subquery: n.Subquery, Negated: !n.Negated}
	case *algebra.In:
		cp := *n
		cp.Negated = !n.Negated
		return &cp
	case *algebra.Unary:
		switch n.Op {
		case algebra.OpIsNull:
			return isNotNullExpr(n.Operand)
		case algebra.OpIsNotNull:
			return isNullExpr(n.Operand)
		case algebra.OpNot:
			return n.Operand
		}
	}
	if !algebra.IsPredicate(p) {
		return algebra.Equal(p, &algebra.Constant{Value: false, Mapping: algebra.BoolMapping})
	}
	return &algebra.Unary{Op: algebra.OpNot, Operand: p}
}

func (t *translation) conditional(n *expr.Conditional, e env) (shape, error) {
	test, err := t.predicate(n.Test, e)
	if err != nil {
		return nil, err
	}
	ts, es, err := t.pair(n.Then, n.Else, e)
	if err != nil {
		return nil, err
	}
	then, err := valueOf(ts, "?:")
	if err != nil {
		return nil, err
	}
	els, err := valueOf(es, "?:")
	if err != nil {
		return nil, err
	}
	m := algebra.MappingOf(then)
	if m == nil {
		m = algebra.MappingOf(els)
	}
	return &scalarShape{expr: &algebra.Case{Whens: []algebra.When{{Test: test, Result: then}}, Else: els, Mapping: m}}, nil
}

// kindOf returns the value kind a mapping materializes as.
func kindOf(m *algebra.TypeMapping) model.ValueKind {
	if m == nil {
		return model.KindString
	}
	return m.Kind
}
