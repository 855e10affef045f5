package algebra_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

func customers() (*algebra.TableExpr, *model.EntityType) {
	e := modeltest.Entity("Customer")
	return &algebra.TableExpr{Name: e.Table, Entity: e}, e
}

func TestMapProperty(t *testing.T) {
	c := modeltest.Entity("Customer")
	o := modeltest.Entity("Order")
	coll := modeltest.Entity("Collections")

	tests := []struct {
		name  string
		prop  *model.Property
		store string
		size  int
	}{
		{"fixed unicode", c.FindProperty("CustomerID"), "nchar(5)", 5},
		{"bounded unicode", c.FindProperty("City"), "nvarchar(15)", 15},
		{"decimal", o.FindProperty("Freight"), "decimal(19,4)", 0},
		{"int", o.FindProperty("OrderID"), "int", 0},
		{"datetime", o.FindProperty("OrderDate"), "datetime2", 0},
		{"non unicode", coll.FindProperty("Code"), "varchar(10)", 10},
		{"primitive collection", coll.FindProperty("Ints"), "nvarchar(max)", algebra.UnicodeParameterSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.prop)
			m := algebra.MapProperty(tt.prop)
			assert.Equal(t, tt.store, m.StoreType)
			assert.Equal(t, tt.size, m.Size)
		})
	}
}

func TestProjectUnique(t *testing.T) {
	table, e := customers()
	s := algebra.NewSelect(table)
	city := algebra.ColumnFor(table, e.FindProperty("City"), false)

	first := s.ProjectUnique(city, "City")
	again := s.ProjectUnique(&algebra.Column{Table: table, Name: "City"}, "City")
	assert.Same(t, first, again)

	upper := &algebra.Function{Name: "UPPER", Args: []algebra.SQLExpr{city}, Mapping: city.Mapping}
	second := s.ProjectUnique(upper, "City")
	assert.Equal(t, "City0", second.Name())
	third := s.ProjectUnique(&algebra.Function{Name: "LOWER", Args: []algebra.SQLExpr{city}}, "City")
	assert.Equal(t, "City1", third.Name())
	assert.Len(t, s.Projection, 3)
}

func TestPushDown(t *testing.T) {
	table, e := customers()
	s := algebra.NewSelect(table)
	id := algebra.ColumnFor(table, e.FindProperty("CustomerID"), false)
	city := algebra.ColumnFor(table, e.FindProperty("City"), false)
	s.Orderings = []algebra.Ordering{{Expr: city}}
	s.Limit = &algebra.Constant{Value: 10, Mapping: algebra.IntMapping}
	s.Identifier = []algebra.SQLExpr{id}

	p := algebra.PushDown(s)

	require.Len(t, p.Outer.Orderings, 1)
	outerCity, ok := p.Outer.Orderings[0].Expr.(*algebra.Column)
	require.True(t, ok)
	assert.Same(t, p.Table, outerCity.Table)
	assert.Equal(t, "City", outerCity.Name)
	assert.True(t, outerCity.Nullable)
	assert.Len(t, s.Orderings, 1, "a paged select keeps its orderings")

	require.Len(t, p.Outer.Identifier, 1)
	assert.Equal(t, "CustomerID", p.Outer.Identifier[0].(*algebra.Column).Name)

	assert.Same(t, outerCity, p.Map(city), "mapping is memoized")
	constant := &algebra.Constant{Value: 1}
	assert.Same(t, constant, p.Map(constant), "expressions without columns pass through")

	named := p.MapNamed(&algebra.Function{Name: "UPPER", Args: []algebra.SQLExpr{city}}, "Upper")
	assert.Equal(t, "Upper", named.(*algebra.Column).Name)
	assert.Len(t, s.Projection, 3)
	require.NoError(t, algebra.Verify(p.Outer))
}

func TestPushDown_UnpagedDropsInnerOrdering(t *testing.T) {
	table, e := customers()
	s := algebra.NewSelect(table)
	s.Orderings = []algebra.Ordering{{Expr: algebra.ColumnFor(table, e.FindProperty("City"), false), Descending: true}}

	p := algebra.PushDown(s)
	assert.Empty(t, s.Orderings)
	require.Len(t, p.Outer.Orderings, 1)
	assert.True(t, p.Outer.Orderings[0].Descending)
}

func TestTemporalScopeEqual(t *testing.T) {
	d1 := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(v any) *algebra.TemporalScope {
		return &algebra.TemporalScope{Mode: algebra.AsOf, From: &algebra.Constant{Value: v, Mapping: algebra.DateTimeMapping}}
	}
	param := func(name string) *algebra.TemporalScope {
		return &algebra.TemporalScope{Mode: algebra.AsOf, From: &algebra.Parameter{Name: "__p_0", Source: algebra.ParameterSource{Name: name}}}
	}

	assert.True(t, at(d1).Equal(at(d1)))
	assert.False(t, at(d1).Equal(at(d2)))
	assert.True(t, param("date").Equal(param("date")))
	assert.False(t, param("date").Equal(param("other")))
	assert.False(t, at(d1).Equal(param("date")))
	assert.False(t, at(d1).Equal(&algebra.TemporalScope{Mode: algebra.All}))
	assert.True(t, (*algebra.TemporalScope)(nil).Equal(nil))
	assert.False(t, at(d1).Equal(nil))
}

func TestVerify(t *testing.T) {
	table, e := customers()
	other := &algebra.TableExpr{Name: "Orders", Entity: modeltest.Entity("Order")}

	s := algebra.NewSelect(table)
	s.AddProjection(algebra.ColumnFor(table, e.FindProperty("City"), false), "")
	require.NoError(t, algebra.Verify(s))

	s.AddPredicate(algebra.Equal(&algebra.Column{Table: other, Name: "OrderID"}, &algebra.Constant{Value: 1}))
	err := algebra.Verify(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Contains(t, err.Error(), "Orders")
}

func TestVerify_CorrelatedSubquery(t *testing.T) {
	table, e := customers()
	orders := &algebra.TableExpr{Name: "Orders", Entity: modeltest.Entity("Order")}
	sub := algebra.NewSelect(orders)
	sub.AddProjection(&algebra.Fragment{SQL: "1"}, "")
	sub.AddPredicate(algebra.Equal(
		algebra.ColumnFor(table, e.FindProperty("CustomerID"), false),
		&algebra.Column{Table: orders, Name: "CustomerID"},
	))

	s := algebra.NewSelect(table)
	s.AddPredicate(&algebra.Exists{Subquery: sub})
	assert.NoError(t, algebra.Verify(s))
}

func TestTransform(t *testing.T) {
	table, e := customers()
	city := algebra.ColumnFor(table, e.FindProperty("City"), false)
	pred := algebra.And(
		algebra.Equal(city, &algebra.Constant{Value: "London"}),
		&algebra.Unary{Op: algebra.OpIsNotNull, Operand: city},
	)
	replacement := &algebra.Column{Table: table, Name: "Country"}

	out := algebra.Transform(pred, func(n algebra.SQLExpr) algebra.SQLExpr {
		if n == city {
			return replacement
		}
		return nil
	})

	and := out.(*algebra.Binary)
	assert.Same(t, replacement, and.Left.(*algebra.Binary).Left)
	assert.Same(t, replacement, and.Right.(*algebra.Unary).Operand)
	assert.Same(t, city, pred.(*algebra.Binary).Left.(*algebra.Binary).Left, "the input is not mutated")

	same := algebra.Transform(pred, func(algebra.SQLExpr) algebra.SQLExpr { return nil })
	assert.Same(t, pred, same)
}

func TestHints(t *testing.T) {
	table, _ := customers()
	assert.Equal(t, "c", table.Hint())
	assert.Equal(t, "s", (&algebra.SubqueryExpr{}).Hint())
	assert.Equal(t, "c", (&algebra.SubqueryExpr{Select: algebra.NewSelect(table)}).Hint())
	joined := algebra.NewSelect(table)
	joined.AddJoin(algebra.JoinLeft, &algebra.TableExpr{Name: "Orders"}, algebra.True())
	assert.Equal(t, "s", (&algebra.SubqueryExpr{Select: joined}).Hint())
	assert.Equal(t, "t", (&algebra.SubqueryExpr{Alias: "t"}).Hint())
	assert.Equal(t, "u", (&algebra.SetOperationExpr{Kind: algebra.SetUnionAll}).Hint())
	assert.Equal(t, "e", (&algebra.SetOperationExpr{Kind: algebra.SetExcept}).Hint())
	assert.Equal(t, "m", (&algebra.FromSQLExpr{}).Hint())
	assert.Equal(t, "i", (&algebra.JSONTableExpr{Name: "__ids_0"}).Hint())
}
