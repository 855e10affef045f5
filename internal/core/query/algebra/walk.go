package algebra

import "fmt"

// Children returns the direct child expressions and subqueries of e.
func Children(e SQLExpr) (exprs []SQLExpr, selects []*Select) {
	switch n := e.(type) {
	case *Column, *Constant, *Parameter, *Star, *Fragment:
	case *Binary:
		exprs = []SQLExpr{n.Left, n.Right}
	case *Unary:
		exprs = []SQLExpr{n.Operand}
	case *Function:
		exprs = n.Args
	case *Case:
		for _, w := range n.Whens {
			exprs = append(exprs, w.Test, w.Result)
		}
		if n.Else != nil {
			exprs = append(exprs, n.Else)
		}
	case *In:
		exprs = append([]SQLExpr{n.Item}, n.Values...)
		if n.Subquery != nil {
			selects = []*Select{n.Subquery}
		}
	case *Exists:
		selects = []*Select{n.Subquery}
	case *ScalarSubquery:
		selects = []*Select{n.Subquery}
	case *JSONValue:
		exprs = []SQLExpr{n.Doc}
	case *Cast:
		exprs = []SQLExpr{n.Operand}
	case *RowNumber:
		exprs = append(exprs, n.Partitions...)
		for _, o := range n.Orderings {
			exprs = append(exprs, o.Expr)
		}
	case *Like:
		exprs = []SQLExpr{n.Match, n.Pattern}
	default:
		panic(fmt.Sprintf("algebra: unhandled expression %T", e))
	}
	return exprs, selects
}

// Expressions returns every top-level expression of s in clause order:
// join conditions, projection, predicate, group by, having, orderings,
// limit and offset.
func (s *Select) Expressions() []SQLExpr {
	var out []SQLExpr
	for _, j := range s.Tables {
		if j.On != nil {
			out = append(out, j.On)
		}
	}
	for _, p := range s.Projection {
		out = append(out, p.Expr)
	}
	if s.Predicate != nil {
		out = append(out, s.Predicate)
	}
	out = append(out, s.GroupBy...)
	if s.Having != nil {
		out = append(out, s.Having)
	}
	for _, o := range s.Orderings {
		out = append(out, o.Expr)
	}
	if s.Limit != nil {
		out = append(out, s.Limit)
	}
	if s.Offset != nil {
		out = append(out, s.Offset)
	}
	return out
}

// TableSelects returns the selects nested in a table source.
func TableSelects(t TableSource) []*Select {
	switch n := t.(type) {
	case *SubqueryExpr:
		return []*Select{n.Select}
	case *SetOperationExpr:
		return n.Operands
	}
	return nil
}

// TableExprs returns the expressions held by a table source.
func TableExprs(t TableSource) []SQLExpr {
	switch n := t.(type) {
	case *TableExpr:
		if n.Temporal != nil {
			var out []SQLExpr
			if n.Temporal.From != nil {
				out = append(out, n.Temporal.From)
			}
			if n.Temporal.To != nil {
				out = append(out, n.Temporal.To)
			}
			return out
		}
	case *FromSQLExpr:
		return n.Args
	case *JSONTableExpr:
		return []SQLExpr{n.Doc}
	}
	return nil
}

// InspectExpr calls f for e and every expression nested in it, not
// descending into subqueries.
func InspectExpr(e SQLExpr, f func(SQLExpr) bool) {
	if e == nil || !f(e) {
		return
	}
	exprs, _ := Children(e)
	for _, c := range exprs {
		InspectExpr(c, f)
	}
}

// InspectSelect calls f for every expression of s and of every select
// nested in s, in clause order.
func InspectSelect(s *Select, f func(SQLExpr) bool) {
	var visitExpr func(SQLExpr)
	var visitSelect func(*Select)
	visitExpr = func(e SQLExpr) {
		if e == nil || !f(e) {
			return
		}
		exprs, selects := Children(e)
		for _, c := range exprs {
			visitExpr(c)
		}
		for _, sub := range selects {
			visitSelect(sub)
		}
	}
	visitSelect = func(s *Select) {
		for _, j := range s.Tables {
			for _, e := range TableExprs(j.Table) {
				visitExpr(e)
			}
			for _, sub := range TableSelects(j.Table) {
				visitSelect(sub)
			}
		}
		for _, e := range s.Expressions() {
			visitExpr(e)
		}
	}
	visitSelect(s)
}

// ReferencesTables reports whether e reads any column.
func ReferencesTables(e SQLExpr) bool {
	found := false
	InspectExpr(e, func(n SQLExpr) bool {
		switch n.(type) {
		case *Column, *Star:
			found = true
		case *Exists, *ScalarSubquery:
			found = true
		case *In:
			if n.(*In).Subquery != nil {
				found = true
			}
		}
		return !found
	})
	return found
}

// SameExpr reports structural equality of two expressions without subqueries.
func SameExpr(a, b SQLExpr) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *Column:
		y, ok := b.(*Column)
		return ok && x.Table == y.Table && x.Name == y.Name
	case *Constant:
		y, ok := b.(*Constant)
		return ok && ValueEqual(x.Value, y.Value) && x.Mapping.Equal(y.Mapping)
	case *Parameter:
		y, ok := b.(*Parameter)
		return ok && x.Name == y.Name
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && SameExpr(x.Left, y.Left) && SameExpr(x.Right, y.Right)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && SameExpr(x.Operand, y.Operand)
	case *Function:
		y, ok := b.(*Function)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !SameExpr(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case *JSONValue:
		y, ok := b.(*JSONValue)
		if !ok || x.Fragment != y.Fragment || len(x.Path) != len(y.Path) || !SameExpr(x.Doc, y.Doc) {
			return false
		}
		for i := range x.Path {
			if x.Path[i] != y.Path[i] {
				return false
			}
		}
		return x.Mapping.Equal(y.Mapping)
	case *Cast:
		y, ok := b.(*Cast)
		return ok && x.Mapping.Equal(y.Mapping) && SameExpr(x.Operand, y.Operand)
	}
	return false
}

// Transform rebuilds e bottom-up, replacing every node for which f returns
// a non-nil expression. Subqueries are not entered.
func Transform(e SQLExpr, f func(SQLExpr) SQLExpr) SQLExpr {
	if e == nil {
		return nil
	}
	if r := f(e); r != nil {
		return r
	}
	switch n := e.(type) {
	case *Binary:
		l, r := Transform(n.Left, f), Transform(n.Right, f)
		if l == n.Left && r == n.Right {
			return n
		}
		return &Binary{Op: n.Op, Left: l, Right: r, Mapping: n.Mapping}
	case *Unary:
		o := Transform(n.Operand, f)
		if o == n.Operand {
			return n
		}
		return &Unary{Op: n.Op, Operand: o, Mapping: n.Mapping}
	case *Function:
		args, changed := transformAll(n.Args, f)
		if !changed {
			return n
		}
		return &Function{Name: n.Name, Args: args, Mapping: n.Mapping, Nullable: n.Nullable}
	case *Case:
		out := &Case{Mapping: n.Mapping, Else: Transform(n.Else, f)}
		changed := out.Else != n.Else
		for _, w := range n.Whens {
			nw := When{Test: Transform(w.Test, f), Result: Transform(w.Result, f)}
			changed = changed || nw.Test != w.Test || nw.Result != w.Result
			out.Whens = append(out.Whens, nw)
		}
		if !changed {
			return n
		}
		return out
	case *In:
		item := Transform(n.Item, f)
		values, changed := transformAll(n.Values, f)
		if item == n.Item && !changed {
			return n
		}
		return &In{Item: item, Values: values, Subquery: n.Subquery, Negated: n.Negated}
	case *JSONValue:
		doc := Transform(n.Doc, f)
		if doc == n.Doc {
			return n
		}
		return &JSONValue{Doc: doc, Path: n.Path, Fragment: n.Fragment, Mapping: n.Mapping, Nullable: n.Nullable}
	case *Cast:
		o := Transform(n.Operand, f)
		if o == n.Operand {
			return n
		}
		return &Cast{Operand: o, Mapping: n.Mapping}
	case *Like:
		m, p := Transform(n.Match, f), Transform(n.Pattern, f)
		if m == n.Match && p == n.Pattern {
			return n
		}
		return &Like{Match: m, Pattern: p, Escape: n.Escape}
	case *RowNumber:
		parts, changed := transformAll(n.Partitions, f)
		out := &RowNumber{Partitions: parts}
		for _, o := range n.Orderings {
			ne := Transform(o.Expr, f)
			changed = changed || ne != o.Expr
			out.Orderings = append(out.Orderings, Ordering{Expr: ne, Descending: o.Descending})
		}
		if !changed {
			return n
		}
		return out
	}
	return e
}

func transformAll(in []SQLExpr, f func(SQLExpr) SQLExpr) ([]SQLExpr, bool) {
	if len(in) == 0 {
		return in, false
	}
	out := make([]SQLExpr, len(in))
	changed := false
	for i, e := range in {
		out[i] = Transform(e, f)
		changed = changed || out[i] != e
	}
	return out, changed
}
