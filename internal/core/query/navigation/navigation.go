// Package navigation expands navigation accesses and include directives
// into joins: join kinds, join conditions, join reuse, include trees,
// top-N-per-parent ranking and hierarchy discriminators.
package navigation

import (
	"strings"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// JoinKind returns the join reaching the target of nav from a table that
// is itself optional when optional is set. Required dependent-to-principal
// references join inner unless reached through an optional table.
func JoinKind(nav *model.Navigation, optional bool) algebra.JoinKind {
	if nav.Dependent && nav.Required && !optional {
		return algebra.JoinInner
	}
	return algebra.JoinLeft
}

// KeyPairs returns the key properties on the owner side and on the target
// side of nav, position by position.
func KeyPairs(nav *model.Navigation) (owner, target []*model.Property) {
	if nav.Dependent {
		return nav.ForeignKey, nav.PrincipalKey
	}
	return nav.PrincipalKey, nav.ForeignKey
}

// Resolver returns the expression reading a property of one join side.
type Resolver func(*model.Property) algebra.SQLExpr

// Predicate builds the join condition of nav: owner and target keys equal,
// ANDed column by column.
func Predicate(nav *model.Navigation, owner, target Resolver) algebra.SQLExpr {
	ownerKeys, targetKeys := KeyPairs(nav)
	var preds []algebra.SQLExpr
	for i := range ownerKeys {
		preds = append(preds, algebra.Equal(owner(ownerKeys[i]), target(targetKeys[i])))
	}
	return algebra.And(preds...)
}

// Columns resolves properties to columns of a table. Optional marks the
// table as the optional side of a join.
func Columns(t algebra.TableSource, optional bool) Resolver {
	return func(p *model.Property) algebra.SQLExpr {
		return algebra.ColumnFor(t, p, optional)
	}
}

// DiscriminatorPredicate restricts rows of e's hierarchy table to e and its
// derived types. It returns nil when e is the hierarchy root, and false when
// e has no concrete type.
func DiscriminatorPredicate(e *model.EntityType, discriminator algebra.SQLExpr) algebra.SQLExpr {
	if e.Base == nil || e.Discriminator() == nil {
		return nil
	}
	values := e.ConcreteDiscriminatorValues()
	switch len(values) {
	case 0:
		return algebra.False()
	case 1:
		return algebra.Equal(discriminator, discriminatorValue(values[0]))
	}
	in := &algebra.In{Item: discriminator}
	for _, v := range values {
		in.Values = append(in.Values, discriminatorValue(v))
	}
	return in
}

func discriminatorValue(v string) *algebra.Constant {
	return &algebra.Constant{Value: v, Mapping: algebra.StringMapping}
}

// Path is a navigation path from a query root, bounded in depth so that
// cyclic navigation graphs terminate.
type Path struct {
	steps []string
	max   int
}

// NewPath creates an empty path allowing at most max steps.
func NewPath(root string, max int) Path {
	if max <= 0 {
		max = domain.DefaultMaxNavigationDepth
	}
	return Path{steps: []string{root}, max: max}
}

// Push returns the path extended by name.
func (p Path) Push(name string) (Path, error) {
	if len(p.steps) > p.max {
		return p, domain.Errorf(domain.ErrNavigationDepth, p.String()+"."+name, "",
			"more than %d navigations", p.max)
	}
	steps := make([]string, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return Path{steps: append(steps, name), max: p.max}, nil
}

// Depth returns the number of navigations in the path.
func (p Path) Depth() int {
	if len(p.steps) == 0 {
		return 0
	}
	return len(p.steps) - 1
}

// String renders the path as root.Nav.Nav.
func (p Path) String() string {
	return strings.Join(p.steps, ".")
}
