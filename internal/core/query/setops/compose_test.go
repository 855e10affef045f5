package setops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/setops"
)

func customers(country string) setops.Operand {
	c := modeltest.Entity("Customer")
	t := &algebra.TableExpr{Name: c.Table, Entity: c}
	s := algebra.NewSelect(t)
	key := algebra.ColumnFor(t, c.FindProperty("CustomerID"), false)
	s.AddProjection(key, "")
	s.AddProjection(algebra.ColumnFor(t, c.FindProperty("City"), false), "")
	s.AddPredicate(algebra.Equal(algebra.ColumnFor(t, c.FindProperty("Country"), false), &algebra.Constant{Value: country, Mapping: algebra.StringMapping}))
	s.Identifier = []algebra.SQLExpr{key}
	return setops.Operand{Select: s, Entity: c}
}

func record(city algebra.SQLExpr) setops.Operand {
	c := modeltest.Entity("Customer")
	t := &algebra.TableExpr{Name: c.Table, Entity: c}
	s := algebra.NewSelect(t)
	s.AddProjection(algebra.ColumnFor(t, c.FindProperty("CustomerID"), false), "")
	s.AddProjection(city, "")
	return setops.Operand{Select: s}
}

func TestKind(t *testing.T) {
	assert.Equal(t, algebra.SetUnion, setops.Kind(expr.Union))
	assert.Equal(t, algebra.SetUnionAll, setops.Kind(expr.Concat))
	assert.Equal(t, algebra.SetIntersect, setops.Kind(expr.Intersect))
	assert.Equal(t, algebra.SetExcept, setops.Kind(expr.Except))
}

func TestCompose_Entities(t *testing.T) {
	res, err := setops.Compose(algebra.SetUnion, customers("Germany"), customers("France"))
	require.NoError(t, err)

	require.Len(t, res.Table.Operands, 2)
	require.Len(t, res.Columns, 2)
	assert.Equal(t, "CustomerID", res.Columns[0].Name)
	assert.True(t, res.Columns[1].Nullable)
	require.Len(t, res.Select.Identifier, 1)
	assert.Same(t, res.Columns[0], res.Select.Identifier[0])
	assert.Equal(t, "u", res.Table.Hint())
}

func TestCompose_RecordsHaveNoIdentifier(t *testing.T) {
	c := modeltest.Entity("Customer")
	res, err := setops.Compose(algebra.SetUnionAll, record(&algebra.Constant{Value: "x", Mapping: algebra.StringMapping}),
		record(algebra.ColumnFor(&algebra.TableExpr{Name: c.Table, Entity: c}, c.FindProperty("City"), false)))
	require.NoError(t, err)
	assert.Empty(t, res.Select.Identifier)
}

func TestCompose_RenamesToFirstOperand(t *testing.T) {
	c := modeltest.Entity("Customer")
	left := record(nil)
	lt := left.Select.From()
	left.Select.Projection[1].Expr = algebra.ColumnFor(lt, c.FindProperty("City"), false)
	right := record(&algebra.Constant{Value: "x", Mapping: algebra.StringMapping})

	res, err := setops.Compose(algebra.SetUnion, left, right)
	require.NoError(t, err)

	second := res.Table.Operands[1]
	assert.Equal(t, "", second.Projection[0].Alias, "matching column names keep no alias")
	assert.Equal(t, "City", second.Projection[1].Alias)
	assert.True(t, res.Columns[1].Nullable)
}

func TestCompose_Flattens(t *testing.T) {
	first, err := setops.Compose(algebra.SetUnion, customers("Germany"), customers("France"))
	require.NoError(t, err)
	passThrough := first.Select
	for _, c := range first.Columns {
		passThrough.AddProjection(c, "")
	}

	res, err := setops.Compose(algebra.SetUnion, setops.Operand{Select: passThrough, Entity: modeltest.Entity("Customer")}, customers("Spain"))
	require.NoError(t, err)
	assert.Len(t, res.Table.Operands, 3)
	for _, c := range res.Columns {
		res.Select.AddProjection(c, "")
	}

	mixed, err := setops.Compose(algebra.SetExcept, setops.Operand{Select: res.Select, Entity: modeltest.Entity("Customer")}, customers("Italy"))
	require.NoError(t, err)
	assert.Len(t, mixed.Table.Operands, 2)
}

func TestCompose_PagedOperandIsPushedDown(t *testing.T) {
	left := customers("Germany")
	left.Select.Limit = &algebra.Constant{Value: 5, Mapping: algebra.IntMapping}
	left.Select.Orderings = []algebra.Ordering{{Expr: left.Select.Projection[1].Expr}}
	right := customers("France")
	right.Select.Orderings = []algebra.Ordering{{Expr: right.Select.Projection[1].Expr}}

	res, err := setops.Compose(algebra.SetUnion, left, right)
	require.NoError(t, err)

	pushed := res.Table.Operands[0]
	_, ok := pushed.From().(*algebra.SubqueryExpr)
	assert.True(t, ok)
	assert.Empty(t, pushed.Orderings)
	assert.Len(t, pushed.Projection, 2)
	assert.Empty(t, res.Table.Operands[1].Orderings, "unpaged orderings are dropped")
	require.NoError(t, algebra.Verify(pushed))
}

func TestCompose_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		left  setops.Operand
		right setops.Operand
	}{
		{"arity", customers("Germany"), func() setops.Operand {
			o := customers("France")
			o.Select.Projection = o.Select.Projection[:1]
			return o
		}()},
		{"entity against record", customers("Germany"), record(&algebra.Constant{Value: "x", Mapping: algebra.StringMapping})},
		{"kind", record(&algebra.Constant{Value: "x", Mapping: algebra.StringMapping}), record(&algebra.Constant{Value: true, Mapping: algebra.BoolMapping})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := setops.Compose(algebra.SetUnion, tt.left, tt.right)
			assert.ErrorIs(t, err, domain.ErrUnsupported)
		})
	}
}
