package translator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/filters"
	"github.com/satishbabariya/relq/internal/core/query/linq"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
	"github.com/satishbabariya/relq/internal/core/query/translator"
)

func newTranslator(t *testing.T, opts domain.Options) *translator.Translator {
	t.Helper()
	m := modeltest.Northwind()
	f, err := filters.Build(m)
	require.NoError(t, err)
	return translator.New(m, f, opts)
}

func translate(t *testing.T, opts domain.Options, query string, bindings domain.Bindings) (*translator.Result, string) {
	t.Helper()
	res, err := newTranslator(t, opts).Translate(linq.MustParse(query), bindings)
	require.NoError(t, err)
	g, err := sqlgen.NewGenerator(opts.Normalize().Dialect, opts.ServerVersion)
	require.NoError(t, err)
	cmd, err := g.Generate(res.Select)
	require.NoError(t, err)
	return res, cmd.SQL
}

func translateErr(t *testing.T, query string, bindings domain.Bindings) error {
	t.Helper()
	_, err := newTranslator(t, domain.DefaultOptions()).Translate(linq.MustParse(query), bindings)
	require.Error(t, err)
	return err
}

func parameterNames(ps []*algebra.Parameter) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestTranslate_CapturedComparison(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		bindings domain.Bindings
		want     string
		params   []string
	}{
		{
			name:     "equality",
			query:    `Customers.Where(c => c.City == @city).Select(c => c.CustomerID)`,
			bindings: domain.Bindings{"city": "London"},
			want:     "SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nWHERE [c].[City] = @__city_0",
			params:   []string{"__city_0"},
		},
		{
			name:     "null binding",
			query:    `Customers.Where(c => c.City == @city).Select(c => c.CustomerID)`,
			bindings: domain.Bindings{"city": nil},
			want:     "SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nWHERE [c].[City] IS NULL",
			params:   []string{},
		},
		{
			name:     "inequality on nullable column",
			query:    `Customers.Where(c => c.City != @city).Select(c => c.CustomerID)`,
			bindings: domain.Bindings{"city": "London"},
			want:     "SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nWHERE [c].[City] <> @__city_0 OR [c].[City] IS NULL",
			params:   []string{"__city_0"},
		},
		{
			name:     "non nullable column against null",
			query:    `Customers.Where(c => c.CompanyName == null).Select(c => c.CustomerID)`,
			bindings: nil,
			want:     "SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nWHERE 0 = 1",
			params:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, sql := translate(t, domain.DefaultOptions(), tt.query, tt.bindings)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, tt.params, parameterNames(res.Parameters))
		})
	}
}

func TestTranslate_Paging(t *testing.T) {
	res, sql := translate(t, domain.DefaultOptions(),
		`Customers.OrderBy(c => c.CustomerID).Skip(@skip).Take(@take).Select(c => c.CustomerID)`,
		domain.Bindings{"skip": 10, "take": 5})
	assert.Contains(t, sql, "ORDER BY [c].[CustomerID]\nOFFSET @__p_0 ROWS FETCH NEXT @__p_1 ROWS ONLY")
	assert.Equal(t, []string{"__p_0", "__p_1"}, parameterNames(res.Parameters))

	_, sql = translate(t, domain.Options{Dialect: domain.SQLite},
		`Customers.OrderBy(c => c.CustomerID).Take(3).Select(c => c.CustomerID)`, nil)
	assert.Contains(t, sql, "ORDER BY \"c\".\"CustomerID\"\nLIMIT 3")
}

func TestTranslate_SkipRequiresOrdering(t *testing.T) {
	err := translateErr(t, `Customers.Skip(5)`, nil)
	assert.ErrorIs(t, err, domain.ErrUnorderedSkip)
	assert.True(t, domain.IsTranslationError(err))
}

func TestTranslate_UnknownSet(t *testing.T) {
	err := translateErr(t, `Suppliers.Where(s => s.Id == 1)`, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownMember)
}

func TestTranslate_QueryFilter(t *testing.T) {
	res, sql := translate(t, domain.DefaultOptions(), `Tenants.Select(t => t.Name)`, nil)
	assert.Contains(t, sql, "WHERE [t].[TenantId] = @__ef_filter__TenantId_0")
	require.Len(t, res.Parameters, 1)
	assert.Equal(t, algebra.FilterParameter, res.Parameters[0].Source.Kind)
	assert.Equal(t, "TenantId", res.Parameters[0].Source.Name)

	res, sql = translate(t, domain.DefaultOptions(), `Tenants.IgnoreQueryFilters().Select(t => t.Name)`, nil)
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, res.Parameters)
}

func TestTranslate_AnySubquery(t *testing.T) {
	_, sql := translate(t, domain.DefaultOptions(), `Customers.Where(c => c.Orders.Any()).Select(c => c.CustomerID)`, nil)
	assert.Contains(t, sql, "WHERE EXISTS (\n    SELECT 1\n    FROM [Orders] AS [o]\n")
	assert.Contains(t, sql, "[c].[CustomerID] = [o].[CustomerID]")
}

func TestTranslate_CapturedCollection(t *testing.T) {
	bindings := domain.Bindings{"ids": []string{"ALFKI", "ANATR"}}
	query := `Customers.Where(c => @ids.Contains(c.CustomerID)).Select(c => c.CustomerID)`

	res, sql := translate(t, domain.DefaultOptions(), query, bindings)
	assert.Contains(t, sql, "OPENJSON(@__ids_0)")
	require.Len(t, res.Parameters, 1)
	assert.True(t, res.Parameters[0].Collection)
	assert.Empty(t, res.Inlined)

	old := domain.Options{Dialect: domain.SQLServer, ServerVersion: "12.0"}
	assert.True(t, newTranslator(t, old).InlinesCollections())
	res, sql = translate(t, old, query, bindings)
	assert.Contains(t, sql, "IN (N'ALFKI', N'ANATR')")
	assert.Equal(t, []string{"ids"}, res.Inlined)
}

func TestTranslate_Include(t *testing.T) {
	res, sql := translate(t, domain.DefaultOptions(), `Customers.Include(c => c.Orders)`, nil)
	assert.Contains(t, sql, "LEFT JOIN [Orders] AS [o] ON [c].[CustomerID] = [o].[CustomerID]")
	assert.Contains(t, sql, "ORDER BY [c].[CustomerID]")
	assert.Empty(t, res.Splits)
	assert.NotEmpty(t, res.Shaper.Group)

	split := domain.DefaultOptions()
	split.Splitting = domain.SplitQuery
	res, sql = translate(t, split, `Customers.Include(c => c.Orders)`, nil)
	assert.NotContains(t, sql, "JOIN")
	require.Len(t, res.Splits, 1)
	require.Len(t, res.Shaper.Splits, 1)
	assert.Equal(t, -1, res.Shaper.Splits[0].Parent)

	res, _ = translate(t, split, `Customers.Include(c => c.Orders).AsSingleQuery()`, nil)
	assert.Empty(t, res.Splits)
}

func TestTranslate_Terminals(t *testing.T) {
	res, sql := translate(t, domain.DefaultOptions(), `Customers.Count()`, nil)
	assert.Contains(t, sql, "COUNT(*)")
	assert.Equal(t, shaper.ScalarResult, res.Shaper.Cardinality)

	res, sql = translate(t, domain.DefaultOptions(), `Customers.Where(c => c.City == 'Berlin').Single()`, nil)
	assert.Contains(t, sql, "SELECT TOP(2)")
	assert.Equal(t, shaper.SingleResult, res.Shaper.Cardinality)

	res, sql = translate(t, domain.DefaultOptions(), `Customers.OrderBy(c => c.City).FirstOrDefault()`, nil)
	assert.Contains(t, sql, "SELECT TOP(1)")
	assert.Equal(t, shaper.FirstOrDefaultResult, res.Shaper.Cardinality)
}

func TestTranslate_Temporal(t *testing.T) {
	res, sql := translate(t, domain.DefaultOptions(), `Gears.TemporalAsOf(@when).Select(g => g.Nickname)`, domain.Bindings{"when": "2010-01-01"})
	assert.Contains(t, sql, "FROM [Gears] FOR SYSTEM_TIME AS OF @__p_0 AS [g]")
	assert.Equal(t, []string{"__p_0"}, parameterNames(res.Parameters))

	err := translateErr(t, `Missions.TemporalAll()`, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestTranslate_EnumConstant(t *testing.T) {
	_, sql := translate(t, domain.DefaultOptions(), `Gears.Where(g => g.Rank == 'General').Select(g => g.Nickname)`, nil)
	assert.Contains(t, sql, "WHERE [g].[Rank] = 10")

	err := translateErr(t, `Gears.Where(g => g.Rank == 'Admiral')`, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownMember)
}

func TestTranslate_ContextOutsideFilter(t *testing.T) {
	err := translateErr(t, `Customers.Where(c => c.City == ctx.City)`, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}
