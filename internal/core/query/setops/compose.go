// Package setops composes selects into set operations: it checks operand
// shapes, unifies output names and nullability and keeps same-kind chains
// in one n-ary node.
package setops

import (
	"strconv"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
)

// Operand is one side of a set operation. Its projection must already be
// applied.
type Operand struct {
	Select *algebra.Select
	// Entity is the projected entity type, or nil for a record or scalar.
	Entity *model.EntityType
}

// Result is the select reading the rows of a set operation.
type Result struct {
	Select *algebra.Select
	Table  *algebra.SetOperationExpr
	// Columns holds the output column of every projection ordinal.
	Columns []*algebra.Column
}

// Kind maps a query set operator to its SQL kind.
func Kind(k expr.SetOpKind) algebra.SetOperationKind {
	switch k {
	case expr.Concat:
		return algebra.SetUnionAll
	case expr.Intersect:
		return algebra.SetIntersect
	case expr.Except:
		return algebra.SetExcept
	}
	return algebra.SetUnion
}

// Compose combines left and right with kind.
func Compose(kind algebra.SetOperationKind, left, right Operand) (*Result, error) {
	construct := kind.Keyword()
	l, r := left.Select, right.Select
	if len(l.Projection) != len(r.Projection) {
		return nil, domain.Errorf(domain.ErrUnsupported, construct, entityName(left, right),
			"operands project %d and %d columns", len(l.Projection), len(r.Projection))
	}
	if (left.Entity == nil) != (right.Entity == nil) ||
		left.Entity != nil && left.Entity.Root() != right.Entity.Root() {
		return nil, domain.Errorf(domain.ErrUnsupported, construct, entityName(left, right),
			"operands project different shapes")
	}
	for i := range l.Projection {
		a, b := algebra.MappingOf(l.Projection[i].Expr), algebra.MappingOf(r.Projection[i].Expr)
		if !compatible(a, b) {
			return nil, domain.Errorf(domain.ErrUnsupported, construct, entityName(left, right),
				"column %d has incompatible types %s and %s", i, a, b)
		}
	}

	names := outputNames(l)
	var operands []*algebra.Select
	for _, s := range []*algebra.Select{l, r} {
		if inner := flattenable(s, kind); inner != nil {
			for _, o := range inner.Operands {
				rename(o, names)
				operands = append(operands, o)
			}
			continue
		}
		s = isolate(s)
		rename(s, names)
		operands = append(operands, s)
	}

	table := &algebra.SetOperationExpr{Kind: kind, Operands: operands}
	res := &Result{Select: algebra.NewSelect(table), Table: table}
	first := operands[0]
	for i, name := range names {
		var m *algebra.TypeMapping
		nullable := false
		for _, o := range operands {
			if m == nil {
				m = algebra.MappingOf(o.Projection[i].Expr)
			}
			nullable = nullable || algebra.IsNullable(o.Projection[i].Expr)
		}
		res.Columns = append(res.Columns, &algebra.Column{Table: table, Name: name, Nullable: nullable, Mapping: m})
	}
	if left.Entity != nil {
		for _, id := range first.Identifier {
			i := ordinalOf(first, id)
			if i < 0 {
				res.Select.Identifier = nil
				break
			}
			res.Select.Identifier = append(res.Select.Identifier, res.Columns[i])
		}
	}
	return res, nil
}

// flattenable returns the set operation s reads when s passes the rows of a
// same-kind set operation through unchanged.
func flattenable(s *algebra.Select, kind algebra.SetOperationKind) *algebra.SetOperationExpr {
	op, ok := s.From().(*algebra.SetOperationExpr)
	if !ok || op.Kind != kind || len(s.Tables) != 1 {
		return nil
	}
	if s.Predicate != nil || s.IsPaged() || s.Distinct || s.IsGrouped() || len(s.Orderings) > 0 {
		return nil
	}
	for i, p := range s.Projection {
		c, ok := p.Expr.(*algebra.Column)
		if !ok || c.Table != op || i >= len(op.Operands[0].Projection) || c.Name != op.Operands[0].Projection[i].Name() {
			return nil
		}
	}
	return op
}

// isolate pushes a paged operand into a derived table and drops the
// orderings of an unpaged one.
func isolate(s *algebra.Select) *algebra.Select {
	if !s.IsPaged() {
		s.ClearOrderings()
		return s
	}
	items := s.Projection
	p := algebra.PushDown(s)
	for _, item := range items {
		p.Outer.AddProjection(p.MapNamed(item.Expr, item.Name()), item.Name())
	}
	p.Outer.Orderings = nil
	return p.Outer
}

func rename(s *algebra.Select, names []string) {
	for i, p := range s.Projection {
		if c, ok := p.Expr.(*algebra.Column); ok && c.Name == names[i] {
			p.Alias = ""
			continue
		}
		p.Alias = names[i]
	}
}

// outputNames returns unique output names for the projection of s.
func outputNames(s *algebra.Select) []string {
	names := make([]string, len(s.Projection))
	used := make(map[string]bool)
	for i, p := range s.Projection {
		name := p.Name()
		if name == "" {
			name = "c"
		}
		base := name
		for n := 0; used[name]; n++ {
			name = base + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func compatible(a, b *algebra.TypeMapping) bool {
	if a == nil || b == nil {
		return true
	}
	if a.Kind == b.Kind {
		return true
	}
	return a.Kind.IsNumeric() && b.Kind.IsNumeric()
}

func ordinalOf(s *algebra.Select, e algebra.SQLExpr) int {
	for i, p := range s.Projection {
		if algebra.SameExpr(p.Expr, e) {
			return i
		}
	}
	return -1
}

func entityName(ops ...Operand) string {
	for _, o := range ops {
		if o.Entity != nil {
			return o.Entity.Name
		}
	}
	return ""
}
