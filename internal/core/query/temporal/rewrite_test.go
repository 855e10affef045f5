package temporal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/temporal"
)

var point = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

func asOf(t time.Time) *algebra.TemporalScope {
	return &algebra.TemporalScope{Mode: algebra.AsOf, From: &algebra.Constant{Value: t, Mapping: algebra.DateTimeMapping}}
}

func gearsWithSquad(scope *algebra.TemporalScope) (*algebra.Select, *algebra.TableExpr, *algebra.TableExpr) {
	gear, squad := modeltest.Entity("Gear"), modeltest.Entity("Squad")
	g := &algebra.TableExpr{Name: gear.Table, Entity: gear, Temporal: scope}
	s := &algebra.TableExpr{Name: squad.Table, Entity: squad, DerivedFrom: g}
	sel := algebra.NewSelect(g)
	sel.AddJoin(algebra.JoinInner, s, algebra.Equal(
		algebra.ColumnFor(g, gear.FindProperty("SquadId"), false),
		algebra.ColumnFor(s, squad.FindProperty("Id"), false)))
	return sel, g, s
}

func TestRewrite_PropagatesAsOf(t *testing.T) {
	scope := asOf(point)
	sel, _, s := gearsWithSquad(scope)

	require.NoError(t, temporal.Rewrite(sel))
	assert.Same(t, scope, s.Temporal)
}

func TestRewrite_PropagatesThroughDerivedTables(t *testing.T) {
	scope := asOf(point)
	gear, squad := modeltest.Entity("Gear"), modeltest.Entity("Squad")
	g := &algebra.TableExpr{Name: gear.Table, Entity: gear, Temporal: scope}
	inner := algebra.NewSelect(g)
	inner.Limit = &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}
	sub := &algebra.SubqueryExpr{Select: inner}

	s := &algebra.TableExpr{Name: squad.Table, Entity: squad, DerivedFrom: sub}
	outer := algebra.NewSelect(sub)
	outer.AddJoin(algebra.JoinLeft, s, algebra.True())

	require.NoError(t, temporal.Rewrite(outer))
	assert.Same(t, scope, s.Temporal)

	members := &algebra.TableExpr{Name: gear.Table, Entity: gear, DerivedFrom: s}
	nested := algebra.NewSelect(members)
	outer.Predicate = &algebra.Exists{Subquery: nested}
	require.NoError(t, temporal.Rewrite(outer))
	assert.Same(t, scope, members.Temporal, "scopes follow chains into subqueries")
}

func TestRewrite_NavigationUnderRangeScope(t *testing.T) {
	for _, mode := range []algebra.TemporalMode{algebra.All, algebra.Between, algebra.FromTo, algebra.ContainedIn} {
		sel, _, _ := gearsWithSquad(&algebra.TemporalScope{Mode: mode})
		err := temporal.Rewrite(sel)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTemporalNavigation)
		assert.Equal(t, "temporal_navigation", domain.KindOf(err))
	}
}

func TestRewrite_FromSQLDoesNotPropagate(t *testing.T) {
	gear, squad := modeltest.Entity("Gear"), modeltest.Entity("Squad")
	raw := &algebra.FromSQLExpr{SQL: "SELECT * FROM [Gears]", Entity: gear}
	s := &algebra.TableExpr{Name: squad.Table, Entity: squad, DerivedFrom: raw}
	sel := algebra.NewSelect(raw)
	sel.AddJoin(algebra.JoinInner, s, algebra.True())

	require.NoError(t, temporal.Rewrite(sel))
	assert.Nil(t, s.Temporal)
}

func TestRewrite_NonTemporalTargetKeepsNoScope(t *testing.T) {
	gear, mission := modeltest.Entity("Gear"), modeltest.Entity("Mission")
	g := &algebra.TableExpr{Name: gear.Table, Entity: gear, Temporal: asOf(point)}
	m := &algebra.TableExpr{Name: mission.Table, Entity: mission, DerivedFrom: g}
	sel := algebra.NewSelect(g)
	sel.AddJoin(algebra.JoinCross, m, nil)

	require.NoError(t, temporal.Rewrite(sel))
	assert.Nil(t, m.Temporal)
}

func TestCheckOperands(t *testing.T) {
	gear := modeltest.Entity("Gear")
	operand := func(scope *algebra.TemporalScope) *algebra.Select {
		return algebra.NewSelect(&algebra.TableExpr{Name: gear.Table, Entity: gear, Temporal: scope})
	}

	tests := []struct {
		name    string
		a, b    *algebra.TemporalScope
		wantErr bool
	}{
		{"both unscoped", nil, nil, false},
		{"same point", asOf(point), asOf(point), false},
		{"different points", asOf(point), asOf(point.AddDate(1, 0, 0)), true},
		{"one unscoped", asOf(point), nil, true},
		{"different modes", asOf(point), &algebra.TemporalScope{Mode: algebra.All}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &algebra.SetOperationExpr{Kind: algebra.SetUnion, Operands: []*algebra.Select{operand(tt.a), operand(tt.b)}}
			err := temporal.CheckOperands(op)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrTemporalScopeMismatch)
			assert.Contains(t, err.Error(), "Gear")
		})
	}
}

func TestRewrite_ChecksNestedSetOperations(t *testing.T) {
	gear := modeltest.Entity("Gear")
	op := &algebra.SetOperationExpr{Kind: algebra.SetUnionAll, Operands: []*algebra.Select{
		algebra.NewSelect(&algebra.TableExpr{Name: gear.Table, Entity: gear, Temporal: asOf(point)}),
		algebra.NewSelect(&algebra.TableExpr{Name: gear.Table, Entity: gear}),
	}}
	err := temporal.Rewrite(algebra.NewSelect(op))
	assert.ErrorIs(t, err, domain.ErrTemporalScopeMismatch)
}

func TestVersioned(t *testing.T) {
	assert.False(t, temporal.Versioned(nil))
	assert.False(t, temporal.Versioned(asOf(point)))
	assert.True(t, temporal.Versioned(&algebra.TemporalScope{Mode: algebra.All}))
}
