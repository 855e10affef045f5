package compiler_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/compiler"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/diagnostics"
)

func newCompiler(t *testing.T, opts domain.Options) (*compiler.Compiler, *diagnostics.Recorder) {
	t.Helper()
	rec := diagnostics.NewRecorder()
	opts.Logger = rec.Logger()
	c, err := compiler.New(modeltest.Northwind(), opts)
	require.NoError(t, err)
	return c, rec
}

func TestCompile_ReusesCompiledQuery(t *testing.T) {
	c, rec := newCompiler(t, domain.DefaultOptions())
	ctx := context.Background()
	query := `Customers.Where(c => c.City == @city).Select(c => c.CustomerID)`

	first, err := c.CompileText(ctx, query, domain.Bindings{"city": "London"})
	require.NoError(t, err)
	second, err := c.CompileText(ctx, query, domain.Bindings{"city": "Paris"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, rec.Named(diagnostics.EventQueryCompiled), 1)
	assert.Len(t, rec.Named(diagnostics.EventCompiledQueryReuse), 1)
	assert.Equal(t, int64(1), c.Stats().Hits)

	bound, err := second.Bind(domain.Bindings{"city": "Paris"}, nil)
	require.NoError(t, err)
	require.Len(t, bound, 1)
	require.Len(t, bound[0], 1)
	assert.Equal(t, "__city_0", bound[0][0].Name)
	assert.Equal(t, "Paris", bound[0][0].Value)
	assert.Equal(t, 15, bound[0][0].Size)
}

func TestCompile_NullBindingChangesShape(t *testing.T) {
	c, _ := newCompiler(t, domain.DefaultOptions())
	ctx := context.Background()
	query := `Customers.Where(c => c.City == @city).Select(c => c.CustomerID)`

	bound, err := c.CompileText(ctx, query, domain.Bindings{"city": "London"})
	require.NoError(t, err)
	null, err := c.CompileText(ctx, query, domain.Bindings{"city": nil})
	require.NoError(t, err)

	assert.NotEqual(t, bound.Key, null.Key)
	assert.Contains(t, bound.Main.SQL, "= @__city_0")
	assert.Contains(t, null.Main.SQL, "IS NULL")
	assert.Empty(t, null.Main.Parameters)
}

func TestCompile_InlinedCollectionsKeyOnValues(t *testing.T) {
	query := `Customers.Where(c => @ids.Contains(c.CustomerID)).Select(c => c.CustomerID)`
	a := domain.Bindings{"ids": []string{"ALFKI"}}
	b := domain.Bindings{"ids": []string{"ANATR"}}

	c, _ := newCompiler(t, domain.DefaultOptions())
	q, err := c.CompileText(context.Background(), query, a)
	require.NoError(t, err)
	assert.Equal(t, q.Key, c.Key(q.Query, b))

	old, _ := newCompiler(t, domain.Options{Dialect: domain.SQLServer, ServerVersion: "12.0"})
	q, err = old.CompileText(context.Background(), query, a)
	require.NoError(t, err)
	assert.NotEqual(t, q.Key, old.Key(q.Query, b))
	assert.Contains(t, q.Main.SQL, "IN (N'ALFKI')")
	assert.Equal(t, []string{"ids"}, q.Inlined)
}

func TestCompile_TranslationFailure(t *testing.T) {
	c, rec := newCompiler(t, domain.DefaultOptions())

	_, err := c.CompileText(context.Background(), `Customers.Skip(3)`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnorderedSkip)

	failures := rec.Named(diagnostics.EventTranslationFailed)
	require.Len(t, failures, 1)
	assert.Equal(t, "unordered_skip", failures[0].Attrs["kind"])
	assert.Zero(t, c.Stats().Size)
}

func TestCompile_ParseFailure(t *testing.T) {
	c, _ := newCompiler(t, domain.DefaultOptions())
	_, err := c.CompileText(context.Background(), `Customers.Where(`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing query")
}

func TestCompile_SplitCommands(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.Splitting = domain.SplitQuery
	c, _ := newCompiler(t, opts)

	q, err := c.CompileText(context.Background(), `Customers.Include(c => c.Orders)`, nil)
	require.NoError(t, err)
	require.Len(t, q.Splits, 1)
	assert.Len(t, q.Commands(), 2)
	assert.Contains(t, q.Splits[0].SQL, "FROM [Customers] AS [c]")
	assert.Contains(t, q.Splits[0].SQL, "[Orders] AS [o]")

	explain := q.Explain()
	assert.Contains(t, explain, "### Main")
	assert.Contains(t, explain, "### Split 1")
	assert.Contains(t, explain, "from split 0")
}

func TestCompile_IgnoredInclude(t *testing.T) {
	c, rec := newCompiler(t, domain.DefaultOptions())
	q, err := c.CompileText(context.Background(), `Customers.Include(c => c.Orders).Select(c => c.CustomerID)`, nil)
	require.NoError(t, err)
	assert.NotContains(t, q.Main.SQL, "JOIN")

	ignored := rec.Named(diagnostics.EventIncludeIgnored)
	require.Len(t, ignored, 1)
	assert.Equal(t, "Orders", ignored[0].Attrs["navigation"])
}

func TestCompile_Concurrent(t *testing.T) {
	c, rec := newCompiler(t, domain.DefaultOptions())
	query := `Orders.Where(o => o.CustomerID == @id).Select(o => o.OrderID)`

	const workers = 8
	results := make([]*compiler.CompiledQuery, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := c.CompileText(context.Background(), query, domain.Bindings{"id": "ALFKI"})
			assert.NoError(t, err)
			results[i] = q
		}(i)
	}
	wg.Wait()

	for _, q := range results[1:] {
		assert.Same(t, results[0], q)
	}
	assert.Len(t, rec.Named(diagnostics.EventQueryCompiled), 1)
}
