package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/adapters/database/memory"
	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/compiler"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/executor"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/diagnostics"
)

const cityQuery = `Customers.Where(c => c.City == @city).Select(c => c.CustomerID)`

func compile(t *testing.T, opts domain.Options, query string, bindings domain.Bindings) *compiler.CompiledQuery {
	t.Helper()
	c, err := compiler.New(modeltest.Northwind(), opts)
	require.NoError(t, err)
	q, err := c.CompileText(context.Background(), query, bindings)
	require.NoError(t, err)
	return q
}

func ids(values ...string) [][]any {
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	return rows
}

// entityRow lays out values by the property ordinals of plan.
func entityRow(width int, plan *shaper.EntityPlan, values map[string]any) []any {
	row := make([]any, width)
	for _, slots := range [][]shaper.PropertySlot{plan.Key, plan.Properties} {
		for _, slot := range slots {
			row[slot.Ordinal] = values[slot.Property.Name]
		}
	}
	return row
}

func TestSession_Execute(t *testing.T) {
	q := compile(t, domain.DefaultOptions(), cityQuery, domain.Bindings{"city": "London"})
	conn := memory.New(domain.Capabilities{}).Push(memory.Result{Columns: []string{"CustomerID"}, Rows: ids("AROUT", "BSBEV")})
	rec := diagnostics.NewRecorder()
	s := executor.NewSession(conn, rec.Logger())

	got, err := s.Execute(context.Background(), executor.Request{Query: q, Bindings: domain.Bindings{"city": "London"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"AROUT", "BSBEV"}, got)

	executed := conn.Executed()
	require.Len(t, executed, 1)
	assert.Equal(t, q.Main.SQL, executed[0].SQL)
	require.Len(t, executed[0].Params, 1)
	assert.Equal(t, "London", executed[0].Params[0].Value)

	assert.Equal(t, []string{q.Main.SQL}, rec.SQL())
	events := rec.Named(diagnostics.EventCommandExecuting)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Attrs["query_string"], "-- @__city_0='London' (Size = 15)")
	assert.Zero(t, conn.Open())
}

func TestSession_Cardinality(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		rows    [][]any
		want    any
		wantErr error
	}{
		{name: "count", query: `Customers.Count()`, rows: [][]any{{int64(91)}}, want: int64(91)},
		{name: "first", query: `Customers.OrderBy(c => c.CustomerID).Select(c => c.CustomerID).First()`, rows: ids("ALFKI"), want: "ALFKI"},
		{name: "first empty", query: `Customers.OrderBy(c => c.CustomerID).Select(c => c.CustomerID).First()`, wantErr: domain.ErrNoElements},
		{name: "first or default empty", query: `Customers.OrderBy(c => c.CustomerID).Select(c => c.CustomerID).FirstOrDefault()`, want: nil},
		{name: "single", query: `Customers.Select(c => c.CustomerID).Single()`, rows: ids("ALFKI", "ANATR"), wantErr: domain.ErrMoreThanOneElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compile(t, domain.DefaultOptions(), tt.query, nil)
			conn := memory.New(domain.Capabilities{}).Push(memory.Result{Rows: tt.rows})
			got, err := executor.NewSession(conn, nil).Execute(context.Background(), executor.Request{Query: q})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_ConcurrentCursor(t *testing.T) {
	q := compile(t, domain.DefaultOptions(), cityQuery, domain.Bindings{"city": "London"})
	bindings := domain.Bindings{"city": "London"}
	ctx := context.Background()

	conn := memory.New(domain.Capabilities{}).Respond(func(string, []domain.BoundParameter) memory.Result {
		return memory.Result{Rows: ids("AROUT")}
	})
	s := executor.NewSession(conn, nil)
	first, err := s.Enumerate(ctx, executor.Request{Query: q, Bindings: bindings})
	require.NoError(t, err)
	_, err = s.Enumerate(ctx, executor.Request{Query: q, Bindings: bindings})
	assert.ErrorIs(t, err, domain.ErrConcurrentCursor)

	require.NoError(t, first.Close())
	second, err := s.Enumerate(ctx, executor.Request{Query: q, Bindings: bindings})
	require.NoError(t, err)
	require.NoError(t, second.Close())

	mars := memory.New(domain.Capabilities{SupportsMultipleCursors: true}).Respond(func(string, []domain.BoundParameter) memory.Result {
		return memory.Result{Rows: ids("AROUT")}
	})
	s = executor.NewSession(mars, nil)
	a, err := s.Enumerate(ctx, executor.Request{Query: q, Bindings: bindings})
	require.NoError(t, err)
	b, err := s.Enumerate(ctx, executor.Request{Query: q, Bindings: bindings})
	require.NoError(t, err)
	assert.Equal(t, 2, mars.Open())
	a.Close()
	b.Close()
	assert.Zero(t, mars.Open())
}

func TestSession_Disposed(t *testing.T) {
	q := compile(t, domain.DefaultOptions(), cityQuery, domain.Bindings{"city": "London"})
	conn := memory.New(domain.Capabilities{}).Push(memory.Result{Rows: ids("AROUT", "BSBEV")})
	s := executor.NewSession(conn, nil)
	ctx := context.Background()

	e, err := s.Enumerate(ctx, executor.Request{Query: q, Bindings: domain.Bindings{"city": "London"}})
	require.NoError(t, err)
	require.True(t, e.Next(ctx))
	assert.Equal(t, "AROUT", e.Value())

	require.NoError(t, s.Close())
	assert.False(t, e.Next(ctx))
	assert.ErrorIs(t, e.Err(), domain.ErrDisposed)
	assert.Zero(t, conn.Open())

	_, err = s.Enumerate(ctx, executor.Request{Query: q, Bindings: domain.Bindings{"city": "London"}})
	assert.ErrorIs(t, err, domain.ErrDisposed)
}

func TestSession_Cancellation(t *testing.T) {
	q := compile(t, domain.DefaultOptions(), cityQuery, domain.Bindings{"city": "London"})
	conn := memory.New(domain.Capabilities{}).Push(memory.Result{Rows: ids("AROUT", "BSBEV", "CONSH")})
	s := executor.NewSession(conn, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := s.Enumerate(ctx, executor.Request{Query: q, Bindings: domain.Bindings{"city": "London"}})
	require.NoError(t, err)
	require.True(t, e.Next(ctx))
	cancel()
	assert.False(t, e.Next(ctx))
	assert.ErrorIs(t, e.Err(), context.Canceled)
	assert.Zero(t, conn.Open())
}

func TestSession_MissingBinding(t *testing.T) {
	q := compile(t, domain.DefaultOptions(), cityQuery, domain.Bindings{"city": "London"})
	conn := memory.New(domain.Capabilities{})
	_, err := executor.NewSession(conn, nil).Execute(context.Background(), executor.Request{Query: q})
	require.Error(t, err)
	assert.Empty(t, conn.Executed())
}

func TestSession_SplitQuery(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.Splitting = domain.SplitQuery
	q := compile(t, opts, `Customers.OrderBy(c => c.CustomerID).Include(c => c.Orders)`, nil)
	require.Len(t, q.Splits, 1)

	root := q.Shaper.Root.(*shaper.EntityPlan)
	split := q.Shaper.Splits[0]
	order := split.Element.(*shaper.EntityPlan)
	width := len(q.Select.Projection)
	splitWidth := len(q.SplitSelects[0].Projection)

	customer := func(id string) []any {
		return entityRow(width, root, map[string]any{"CustomerID": id, "CompanyName": id + " Ltd"})
	}
	orderRow := func(customerID string, orderID int64) []any {
		row := entityRow(splitWidth, order, map[string]any{"OrderID": orderID, "CustomerID": customerID})
		row[split.ParentKey[0]] = customerID
		return row
	}

	conn := memory.New(domain.Capabilities{}).Push(
		memory.Result{Rows: [][]any{customer("ALFKI"), customer("ANATR"), customer("AROUT")}},
		memory.Result{Rows: [][]any{orderRow("ALFKI", 10643), orderRow("ALFKI", 10692), orderRow("AROUT", 10355)}},
	)
	got, err := executor.NewSession(conn, nil).Execute(context.Background(), executor.Request{Query: q})
	require.NoError(t, err)
	assert.Len(t, conn.Executed(), 2)

	results := got.([]any)
	require.Len(t, results, 3)
	counts := make([]int, len(results))
	for i, r := range results {
		counts[i] = len(r.(*shaper.Object).Collection("Orders"))
	}
	assert.Equal(t, []int{2, 0, 1}, counts)
	assert.Zero(t, conn.Open())
}

func TestSession_SplitQueryOrdering(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.Splitting = domain.SplitQuery
	q := compile(t, opts, `Customers.OrderBy(c => c.CustomerID).Include(c => c.Orders)`, nil)

	root := q.Shaper.Root.(*shaper.EntityPlan)
	split := q.Shaper.Splits[0]
	order := split.Element.(*shaper.EntityPlan)
	width := len(q.Select.Projection)
	splitWidth := len(q.SplitSelects[0].Projection)
	orderRow := func(customerID string, orderID int64) []any {
		row := entityRow(splitWidth, order, map[string]any{"OrderID": orderID, "CustomerID": customerID})
		row[split.ParentKey[0]] = customerID
		return row
	}

	conn := memory.New(domain.Capabilities{}).Push(
		memory.Result{Rows: [][]any{
			entityRow(width, root, map[string]any{"CustomerID": "ALFKI", "CompanyName": "A"}),
			entityRow(width, root, map[string]any{"CustomerID": "ANATR", "CompanyName": "B"}),
		}},
		memory.Result{Rows: [][]any{orderRow("ANATR", 1), orderRow("ALFKI", 2)}},
	)
	_, err := executor.NewSession(conn, nil).Execute(context.Background(), executor.Request{Query: q})
	assert.ErrorIs(t, err, domain.ErrSplitQueryOrdering)
	assert.Zero(t, conn.Open())
}

func TestSession_Tracking(t *testing.T) {
	q := compile(t, domain.DefaultOptions(), `Customers.Where(c => c.City == 'London')`, nil)
	root := q.Shaper.Root.(*shaper.EntityPlan)
	width := len(q.Select.Projection)
	row := entityRow(width, root, map[string]any{"CustomerID": "AROUT", "CompanyName": "Around the Horn"})

	conn := memory.New(domain.Capabilities{}).Respond(func(string, []domain.BoundParameter) memory.Result {
		return memory.Result{Rows: [][]any{row}}
	})
	s := executor.NewSession(conn, nil)
	identities := shaper.NewIdentityMap()

	first, err := s.Execute(context.Background(), executor.Request{Query: q, Identities: identities})
	require.NoError(t, err)
	second, err := s.Execute(context.Background(), executor.Request{Query: q, Identities: identities})
	require.NoError(t, err)
	assert.Same(t, first.([]any)[0], second.([]any)[0])
	assert.Equal(t, 1, identities.Len())

	noTracking := compile(t, domain.DefaultOptions(), `Customers.Where(c => c.City == 'London').AsNoTracking()`, nil)
	third, err := s.Execute(context.Background(), executor.Request{Query: noTracking, Identities: identities})
	require.NoError(t, err)
	assert.NotSame(t, first.([]any)[0], third.([]any)[0])
}
