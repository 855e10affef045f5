package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/config"
	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/version"
)

func TestParseQueryFile(t *testing.T) {
	f, err := ParseQueryFile([]byte(`
queries:
  - name: london
    query: Customers.Where(c => c.City == @city)
    bindings:
      city: London
  - query: Orders.Where(o => o.OrderID > @id)
    bindings:
      id: 10248
      ids: [1, 2.5]
filter:
  Tenant: 1
`))
	require.NoError(t, err)
	require.Len(t, f.Queries, 2)
	assert.Equal(t, "london", f.Queries[0].Name)
	assert.Equal(t, "query 2", f.Queries[1].Name)
	assert.Equal(t, domain.Bindings{"city": "London"}, f.Queries[0].BindingsOf())
	assert.Equal(t, domain.Bindings{"id": int64(10248), "ids": []any{int64(1), 2.5}}, f.Queries[1].BindingsOf())
	assert.Equal(t, domain.FilterContext{"Tenant": int64(1)}, f.FilterContext())
}

func TestParseQueryFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", "queries:\n  - query: Customers\n    limit: 3\n"},
		{"missing text", "queries:\n  - name: empty\n"},
		{"not yaml", "queries: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueryFile([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestSelectQueries(t *testing.T) {
	f, err := selectQueries("Customers", map[string]string{"city": "London"}, "")
	require.NoError(t, err)
	require.Len(t, f.Queries, 1)
	assert.Equal(t, domain.Bindings{"city": "London"}, f.Queries[0].BindingsOf())

	_, err = selectQueries("Customers", nil, "queries.yaml")
	assert.Error(t, err)
	_, err = selectQueries("", nil, "")
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	tests := map[string]domain.Dialect{
		"sqlserver":  domain.SQLServer,
		"mssql":      domain.SQLServer,
		"SQLite":     domain.SQLite,
		"postgresql": domain.PostgreSQL,
		"pgx":        domain.PostgreSQL,
		"mysql":      domain.MySQL,
	}
	for in, want := range tests {
		got, err := parseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDialect("oracle")
	assert.Error(t, err)
}

func TestTranslateAll(t *testing.T) {
	cfg = &config.Config{Dialect: "sqlite", Query: config.QueryConfig{Tracking: true, CacheSize: 8, MaxNavigationDepth: 16}}
	c, err := newCompiler(modeltest.Northwind(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.SQLite, c.Options().Dialect)

	ok := &QueryFile{Queries: []Query{{Name: "ok", Query: `Customers.Select(c => c.CustomerID)`}}}
	assert.NoError(t, translateAll(context.Background(), c, ok, true))

	bad := &QueryFile{Queries: []Query{
		{Name: "ok", Query: `Customers.Select(c => c.CustomerID)`},
		{Name: "bad", Query: `Customers.Skip(1)`},
	}}
	err = translateAll(context.Background(), c, bad, false)
	assert.EqualError(t, err, "1 of 2 queries failed")
}

func TestEntityTable(t *testing.T) {
	headers, rows := entityTable(modeltest.Northwind())
	assert.Equal(t, "Entity", headers[0])
	require.NotEmpty(t, rows)

	var customers []string
	for _, r := range rows {
		if r[0] == "Customer" {
			customers = r
		}
	}
	require.NotNil(t, customers)
	assert.Equal(t, "Customers", customers[1])
	assert.Equal(t, "CustomerID", customers[2])
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--require", ">= 0.0.1"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		versionRequire = ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "relq version "+version.Version)

	rootCmd.SetArgs([]string{"version", "--require", ">= 99"})
	assert.Error(t, rootCmd.Execute())
}
