package translator

import (
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/core/query/temporal"
)

// scalarRoot translates a query ending with Any, All or an aggregate. Any
// and All select a single CASE WHEN EXISTS value without a FROM clause.
func (t *translation) scalarRoot() (*Result, error) {
	op := t.term.Op
	var (
		sel      *algebra.Select
		v        algebra.SQLExpr
		nullable bool
	)
	switch op {
	case expr.Any, expr.All:
		sh, err := t.scalarTerminal(t.term, nil)
		if err != nil {
			return nil, err
		}
		test, err := valueOf(sh, op.String())
		if err != nil {
			return nil, err
		}
		v = &algebra.Case{
			Whens:   []algebra.When{{Test: test, Result: &algebra.Constant{Value: true, Mapping: algebra.BoolMapping}}},
			Else:    &algebra.Constant{Value: false, Mapping: algebra.BoolMapping},
			Mapping: algebra.BoolMapping,
		}
		sel = &algebra.Select{}
	default:
		q, err := t.query(t.body, nil)
		if err != nil {
			return nil, err
		}
		if v, err = t.aggregate(q, op, t.term.Arg, nil); err != nil {
			return nil, err
		}
		q.sel.Projection = nil
		q.sel.Identifier = nil
		sel = q.sel
		nullable = resultNullable(op, v)
	}
	sel.AddProjection(v, "")
	if err := check(sel); err != nil {
		return nil, err
	}
	return &Result{
		Select: sel,
		Shaper: &shaper.Shaper{
			Root:        &shaper.AggregatePlan{Op: op, Ordinal: 0, Kind: kindOf(algebra.MappingOf(v)), Nullable: nullable},
			Cardinality: shaper.ScalarResult,
		},
	}, nil
}

// resultNullable reports whether an aggregate may return null for a
// non-empty sequence: MIN, MAX and AVG over nullable values.
func resultNullable(op expr.TerminalOp, v algebra.SQLExpr) bool {
	switch op {
	case expr.Min, expr.Max, expr.Average:
		f, ok := v.(*algebra.Function)
		if !ok || len(f.Args) != 1 {
			return algebra.IsNullable(v)
		}
		return algebra.IsNullable(f.Args[0])
	}
	return false
}

// sequenceRoot translates a query returning rows, or one element of them.
func (t *translation) sequenceRoot() (*Result, error) {
	q, err := t.translateRoot()
	if err != nil {
		return nil, err
	}
	if q.defaultIfEmpty {
		return nil, domain.Errorf(domain.ErrUnsupported, "DefaultIfEmpty", "", "DefaultIfEmpty is only supported as the inner sequence of a join")
	}
	card := shaper.Sequence
	if t.term != nil {
		card = shaper.CardinalityOf(t.term.Op)
	}
	return t.finalize(q, card)
}

// check resolves temporal scopes and verifies column scoping of every
// select of a result.
func check(sels ...*algebra.Select) error {
	for _, s := range sels {
		if err := temporal.Rewrite(s); err != nil {
			return err
		}
		if err := algebra.Verify(s); err != nil {
			return err
		}
	}
	return nil
}
