// Package temporal propagates temporal scopes from scoped query roots to
// every table derived from them and validates set-operation operands.
package temporal

import (
	"fmt"
	"time"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Rewrite attaches the scope of each scoped root to the temporal tables
// reached from it by navigation or ownership. Raw SQL roots do not
// propagate. Navigations under a scope other than AsOf and set operations
// over differently scoped operands are errors.
func Rewrite(s *algebra.Select) error {
	r := rewriter{visited: make(map[*algebra.Select]bool)}
	return r.selectExpr(s)
}

type rewriter struct {
	visited map[*algebra.Select]bool
}

func (r *rewriter) selectExpr(s *algebra.Select) error {
	if s == nil || r.visited[s] {
		return nil
	}
	r.visited[s] = true
	for _, j := range s.Tables {
		if err := r.table(j.Table); err != nil {
			return err
		}
	}
	var err error
	for _, e := range append(s.Expressions(), s.Identifier...) {
		algebra.InspectExpr(e, func(n algebra.SQLExpr) bool {
			if err != nil {
				return false
			}
			_, subs := algebra.Children(n)
			for _, sub := range subs {
				if err = r.selectExpr(sub); err != nil {
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *rewriter) table(t algebra.TableSource) error {
	switch n := t.(type) {
	case *algebra.TableExpr:
		if n.Temporal != nil || n.DerivedFrom == nil {
			return nil
		}
		scope := ScopeOf(n.DerivedFrom)
		if scope == nil {
			return nil
		}
		if scope.Mode != algebra.AsOf {
			return domain.Errorf(domain.ErrTemporalNavigation, "Temporal"+scopeName(scope), entityName(n), "")
		}
		if n.Entity != nil && n.Entity.IsTemporal() {
			n.Temporal = scope
		}
	case *algebra.SetOperationExpr:
		if err := CheckOperands(n); err != nil {
			return err
		}
	}
	for _, sub := range algebra.TableSelects(t) {
		if err := r.selectExpr(sub); err != nil {
			return err
		}
	}
	return nil
}

// ScopeOf returns the scope rows of t are read under: a scoped table's own
// scope, the scope inherited along DerivedFrom, or the scope of the first
// table of a derived table or set operation.
func ScopeOf(t algebra.TableSource) *algebra.TemporalScope {
	for depth := 0; t != nil && depth < 64; depth++ {
		switch n := t.(type) {
		case *algebra.TableExpr:
			if n.Temporal != nil {
				return n.Temporal
			}
			t = n.DerivedFrom
		case *algebra.SubqueryExpr:
			t = n.Select.From()
		case *algebra.SetOperationExpr:
			if len(n.Operands) == 0 {
				return nil
			}
			t = n.Operands[0].From()
		case *algebra.JSONTableExpr:
			t = n.DerivedFrom
		default:
			return nil
		}
	}
	return nil
}

// CheckOperands requires every operand of op to read under an equal scope.
func CheckOperands(op *algebra.SetOperationExpr) error {
	if len(op.Operands) < 2 {
		return nil
	}
	first := ScopeOf(op.Operands[0].From())
	for _, o := range op.Operands[1:] {
		if scope := ScopeOf(o.From()); !first.Equal(scope) {
			return domain.Errorf(domain.ErrTemporalScopeMismatch, op.Kind.Keyword(), entityName(op.Operands[0].From()),
				"%s and %s", describe(first), describe(scope))
		}
	}
	return nil
}

// Versioned reports whether rows read under scope may hold several
// versions of one entity, in which case the period start is part of the
// identity key.
func Versioned(scope *algebra.TemporalScope) bool {
	return scope != nil && scope.Mode != algebra.AsOf
}

func scopeName(s *algebra.TemporalScope) string {
	switch s.Mode {
	case algebra.AsOf:
		return "AsOf"
	case algebra.All:
		return "All"
	case algebra.Between:
		return "Between"
	case algebra.FromTo:
		return "FromTo"
	}
	return "ContainedIn"
}

func describe(s *algebra.TemporalScope) string {
	if s == nil {
		return "no temporal scope"
	}
	out := scopeName(s)
	for _, p := range []algebra.SQLExpr{s.From, s.To} {
		switch v := p.(type) {
		case *algebra.Constant:
			out += " " + sqlTime(v.Value)
		case *algebra.Parameter:
			out += " @" + v.Name
		}
	}
	return out
}

func entityName(t algebra.TableSource) string {
	for depth := 0; t != nil && depth < 64; depth++ {
		switch n := t.(type) {
		case *algebra.TableExpr:
			if n.Entity != nil {
				return n.Entity.Name
			}
			return n.Name
		case *algebra.SubqueryExpr:
			t = n.Select.From()
		case *algebra.SetOperationExpr:
			if len(n.Operands) == 0 {
				return ""
			}
			t = n.Operands[0].From()
		case *algebra.FromSQLExpr:
			if n.Entity != nil {
				return n.Entity.Name
			}
			return ""
		default:
			return ""
		}
	}
	return ""
}

func sqlTime(v any) string {
	if t, ok := v.(time.Time); ok {
		return "'" + t.Format("2006-01-02T15:04:05.0000000") + "'"
	}
	return fmt.Sprint(v)
}
