package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/query/expr"
)

func whereCity(captured string) expr.Query {
	return &expr.Where{
		Source: &expr.Source{Name: "Customers"},
		Predicate: expr.Lambda1("c", &expr.Binary{
			Op:    expr.Equal,
			Left:  &expr.Member{Target: &expr.Param{Name: "c"}, Name: "City"},
			Right: &expr.Captured{Name: captured},
		}),
	}
}

func TestHash_Structural(t *testing.T) {
	a := expr.Hash(whereCity("city"))
	b := expr.Hash(whereCity("city"))
	c := expr.Hash(whereCity("town"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), 32)
}

func TestHash_ConstantsAreStructure(t *testing.T) {
	take := func(n int) expr.Query {
		return &expr.Take{Source: &expr.Source{Name: "Customers"}, Count: &expr.Constant{Value: n}}
	}
	assert.Equal(t, expr.Hash(take(5)), expr.Hash(take(5)))
	assert.NotEqual(t, expr.Hash(take(5)), expr.Hash(take(6)))
}

func TestApplyMethod(t *testing.T) {
	src := &expr.Source{Name: "Orders"}
	pred := expr.Lambda1("o", &expr.Constant{Value: true})

	tests := []struct {
		method string
		args   []expr.Scalar
		check  func(t *testing.T, q expr.Query)
	}{
		{"Where", []expr.Scalar{pred}, func(t *testing.T, q expr.Query) {
			assert.IsType(t, &expr.Where{}, q)
		}},
		{"OrderByDescending", []expr.Scalar{pred}, func(t *testing.T, q expr.Query) {
			o := q.(*expr.OrderBy)
			assert.True(t, o.Descending)
			assert.False(t, o.ThenBy)
		}},
		{"ThenBy", []expr.Scalar{pred}, func(t *testing.T, q expr.Query) {
			assert.True(t, q.(*expr.OrderBy).ThenBy)
		}},
		{"Count", nil, func(t *testing.T, q expr.Query) {
			assert.Equal(t, expr.Count, q.(*expr.Terminal).Op)
		}},
		{"TemporalAsOf", []expr.Scalar{&expr.Captured{Name: "d"}}, func(t *testing.T, q expr.Query) {
			assert.Equal(t, expr.TemporalAsOf, q.(*expr.Temporal).Mode)
		}},
		{"Union", []expr.Scalar{&expr.QueryRef{Query: &expr.Source{Name: "Orders"}}}, func(t *testing.T, q expr.Query) {
			assert.Equal(t, expr.Union, q.(*expr.SetOp).Kind)
		}},
		{"OfType", []expr.Scalar{&expr.QueryRef{Query: &expr.Source{Name: "Kiwi"}}}, func(t *testing.T, q expr.Query) {
			assert.Equal(t, "Kiwi", q.(*expr.OfType).Type)
		}},
		{"FromSql", []expr.Scalar{&expr.Constant{Value: "SELECT * FROM Orders"}}, func(t *testing.T, q expr.Query) {
			assert.Equal(t, "SELECT * FROM Orders", q.(*expr.FromSQL).SQL)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			q, err := expr.ApplyMethod(src, tt.method, tt.args)
			require.NoError(t, err)
			tt.check(t, q)
		})
	}

	_, err := expr.ApplyMethod(src, "Frobnicate", nil)
	assert.ErrorIs(t, err, expr.ErrUnknownOperator)

	_, err = expr.ApplyMethod(src, "All", nil)
	assert.Error(t, err)
}

func TestAsQuery(t *testing.T) {
	orders := &expr.Member{Target: &expr.Param{Name: "c"}, Name: "Orders"}
	call := &expr.Call{
		Target: &expr.Call{Target: orders, Method: "Where", Args: []expr.Scalar{expr.Lambda1("o", &expr.Constant{Value: true})}},
		Method: "Count",
	}

	q, ok := expr.AsQuery(call)
	require.True(t, ok)
	term := q.(*expr.Terminal)
	assert.Equal(t, expr.Count, term.Op)
	where := term.Source.(*expr.Where)
	assert.Same(t, orders, where.Source.(*expr.CollectionRef).Collection)

	_, ok = expr.AsQuery(&expr.Call{Target: orders, Method: "StartsWith"})
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	var q expr.Query = &expr.Source{Name: "Customers"}
	q = &expr.Option{Source: q, Kind: expr.AsSplitQuery}
	q = &expr.Option{Source: q, Kind: expr.AsSingleQuery}
	q = &expr.Option{Source: q, Kind: expr.IgnoreQueryFilters}

	opts := expr.Options(q)
	assert.True(t, opts[expr.AsSingleQuery])
	assert.False(t, opts[expr.AsSplitQuery])
	assert.True(t, opts[expr.IgnoreQueryFilters])
}

func TestCapturedNames(t *testing.T) {
	q := &expr.Take{Source: whereCity("city"), Count: &expr.Captured{Name: "n"}}
	assert.Equal(t, []string{"city", "n"}, expr.CapturedNames(q))

	root, path, ok := expr.Path(&expr.Member{Target: &expr.Member{Target: &expr.Param{Name: "o"}, Name: "Customer"}, Name: "City"})
	require.True(t, ok)
	assert.Equal(t, "o", root)
	assert.Equal(t, []string{"Customer", "City"}, path)
}
