package navigation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/linq"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
)

func TestJoinKind(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		nav      string
		optional bool
		want     algebra.JoinKind
	}{
		{"required reference", "OrderDetail", "Order", false, algebra.JoinInner},
		{"required through optional", "OrderDetail", "Order", true, algebra.JoinLeft},
		{"optional reference", "Order", "Customer", false, algebra.JoinLeft},
		{"collection", "Customer", "Orders", false, algebra.JoinLeft},
		{"principal side reference", "Tenant", "Members", false, algebra.JoinLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := modeltest.Entity(tt.owner).FindNavigation(tt.nav)
			require.NotNil(t, nav)
			assert.Equal(t, tt.want, navigation.JoinKind(nav, tt.optional))
		})
	}
}

func TestPredicate(t *testing.T) {
	customer := modeltest.Entity("Customer")
	order := modeltest.Entity("Order")
	c := &algebra.TableExpr{Name: customer.Table, Entity: customer}
	o := &algebra.TableExpr{Name: order.Table, Entity: order}

	pred := navigation.Predicate(customer.FindNavigation("Orders"), navigation.Columns(c, false), navigation.Columns(o, true))
	eq, ok := pred.(*algebra.Binary)
	require.True(t, ok)
	assert.Equal(t, algebra.OpEqual, eq.Op)
	left := eq.Left.(*algebra.Column)
	right := eq.Right.(*algebra.Column)
	assert.Same(t, c, left.Table)
	assert.Equal(t, "CustomerID", left.Name)
	assert.Same(t, o, right.Table)
	assert.True(t, right.Nullable)

	detail := modeltest.Entity("OrderDetail")
	d := &algebra.TableExpr{Name: detail.Table, Entity: detail}
	pred = navigation.Predicate(detail.FindNavigation("Order"), navigation.Columns(d, false), navigation.Columns(o, false))
	assert.Equal(t, "OrderID", pred.(*algebra.Binary).Right.(*algebra.Column).Name)
}

func TestDiscriminatorPredicate(t *testing.T) {
	animals := &algebra.TableExpr{Name: "Animals"}
	disc := &algebra.Column{Table: animals, Name: "Discriminator", Mapping: algebra.StringMapping}

	assert.Nil(t, navigation.DiscriminatorPredicate(modeltest.Entity("Animal"), disc), "the root covers the whole hierarchy")

	eq, ok := navigation.DiscriminatorPredicate(modeltest.Entity("Kiwi"), disc).(*algebra.Binary)
	require.True(t, ok)
	assert.Equal(t, "Kiwi", eq.Right.(*algebra.Constant).Value)

	in, ok := navigation.DiscriminatorPredicate(modeltest.Entity("Bird"), disc).(*algebra.In)
	require.True(t, ok)
	var values []any
	for _, v := range in.Values {
		values = append(values, v.(*algebra.Constant).Value)
	}
	assert.Equal(t, []any{"Bird", "Kiwi", "Eagle"}, values)
}

func TestPath(t *testing.T) {
	p := navigation.NewPath("e", 2)
	p, err := p.Push("Manager")
	require.NoError(t, err)
	p, err = p.Push("Manager")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Depth())
	assert.Equal(t, "e.Manager.Manager", p.String())

	_, err = p.Push("Manager")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNavigationDepth)
	assert.Contains(t, err.Error(), "e.Manager.Manager.Manager")
}

func TestMemo(t *testing.T) {
	m := navigation.NewMemo[*algebra.Join]()
	t1 := &algebra.TableExpr{Name: "Orders"}
	t2 := &algebra.TableExpr{Name: "Orders"}
	j := &algebra.Join{Kind: algebra.JoinLeft}

	m.Put(t1, "Customer", j)
	got, ok := m.Get(t1, "Customer")
	assert.True(t, ok)
	assert.Same(t, j, got)

	_, ok = m.Get(t2, "Customer")
	assert.False(t, ok, "memo entries are per table instance")
	assert.Equal(t, 1, m.Len())
}

func TestParseInclude(t *testing.T) {
	steps, err := navigation.ParseInclude(mustLambda(t, `o => o.Customer.Orders`))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "Customer", steps[0].Name)
	assert.Nil(t, steps[1].Filter)

	steps, err = navigation.ParseInclude(mustLambda(t, `c => c.Orders.Where(o => o.Freight > 10).OrderBy(o => o.OrderDate).Take(1)`))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	take, ok := steps[0].Filter.(*expr.Take)
	require.True(t, ok)
	assert.Equal(t, &expr.Constant{Value: 1}, take.Count)

	_, err = navigation.ParseInclude(mustLambda(t, `c => c.Orders.Select(o => o.Customer)`))
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestIncludeTree(t *testing.T) {
	var tree navigation.IncludeTree
	assert.True(t, tree.Empty())

	add := func(text string, then bool) {
		steps, err := navigation.ParseInclude(mustLambda(t, text))
		require.NoError(t, err)
		require.NoError(t, tree.Add(steps, then))
	}
	add(`c => c.Orders`, false)
	add(`o => o.OrderDetails`, true)
	add(`d => d.Product`, true)
	add(`c => c.Orders`, false)
	add(`o => o.Employee`, true)

	assert.Equal(t, "[Orders[OrderDetails[Product] Employee]]", tree.String())

	var fresh navigation.IncludeTree
	assert.ErrorIs(t, fresh.Add([]navigation.Step{{Name: "Orders"}}, true), domain.ErrUnsupported)
}

func TestRank(t *testing.T) {
	order := modeltest.Entity("Order")
	o := &algebra.TableExpr{Name: order.Table, Entity: order}
	child := algebra.NewSelect(o)
	fk := algebra.ColumnFor(o, order.FindProperty("CustomerID"), false)
	date := algebra.ColumnFor(o, order.FindProperty("OrderDate"), false)
	child.Orderings = []algebra.Ordering{{Expr: date}}

	r := navigation.Rank(child, []algebra.SQLExpr{fk}, nil, &algebra.Constant{Value: 1, Mapping: algebra.IntMapping})

	row := r.Row.(*algebra.Column)
	assert.Equal(t, navigation.RowColumn, row.Name)
	filter := r.Outer.Predicate.(*algebra.Binary)
	assert.Equal(t, algebra.OpLessThanOrEqual, filter.Op)
	assert.Same(t, row, filter.Left)

	var number *algebra.RowNumber
	for _, p := range r.Inner.Projection {
		if n, ok := p.Expr.(*algebra.RowNumber); ok {
			number = n
		}
	}
	require.NotNil(t, number)
	assert.Len(t, number.Partitions, 1)
	assert.Same(t, date, number.Orderings[0].Expr)
	assert.Empty(t, r.Inner.Orderings)
	require.NoError(t, algebra.Verify(r.Outer))
}

func TestRankFilter(t *testing.T) {
	row := &algebra.Column{Name: "row"}
	skip := &algebra.Parameter{Name: "__p_0"}
	take := &algebra.Parameter{Name: "__p_1"}

	assert.Nil(t, navigation.RankFilter(row, nil, nil))
	lower := navigation.RankFilter(row, skip, nil).(*algebra.Binary)
	assert.Equal(t, algebra.OpLessThan, lower.Op)
	assert.Same(t, skip, lower.Left)

	both := navigation.RankFilter(row, skip, take).(*algebra.Binary)
	assert.Equal(t, algebra.OpAnd, both.Op)
	upper := both.Right.(*algebra.Binary).Right.(*algebra.Binary)
	assert.Equal(t, algebra.OpAdd, upper.Op)
}

func mustLambda(t *testing.T, text string) *expr.Lambda {
	t.Helper()
	l, err := linq.ParseLambda(text)
	require.NoError(t, err)
	return l
}
