package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/adapters/database"
	"github.com/satishbabariya/relq/internal/adapters/database/sqlite"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

func connect(t *testing.T) *database.Conn {
	t.Helper()
	conn, err := sqlite.Connect(context.Background(), database.Config{URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnect(t *testing.T) {
	conn := connect(t)
	caps := conn.Capabilities()
	assert.Equal(t, domain.SQLite, caps.Dialect)
	assert.NotEmpty(t, caps.ServerVersion)
	assert.False(t, caps.SupportsMultipleCursors)
}

func TestQueryNamedParameters(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()

	_, err := conn.ExecuteNonQuery(ctx, `CREATE TABLE "Customers" ("CustomerID" TEXT PRIMARY KEY, "City" TEXT)`, nil)
	require.NoError(t, err)
	n, err := conn.ExecuteNonQuery(ctx, `INSERT INTO "Customers" VALUES ('ALFKI', 'Berlin'), ('AROUT', 'London'), ('BSBEV', 'London')`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	city := []domain.BoundParameter{{Name: "__city_0", Value: "London"}}
	rows, err := conn.Query(ctx, `SELECT "c"."CustomerID" FROM "Customers" AS "c" WHERE "c"."City" = @__city_0 ORDER BY "c"."CustomerID"`, city)
	require.NoError(t, err)
	defer rows.Close()
	assert.Equal(t, []string{"CustomerID"}, rows.Columns())

	var got []any
	for rows.Next(ctx) {
		got = append(got, rows.Values()[0])
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []any{"AROUT", "BSBEV"}, got)

	count, err := conn.ExecuteScalar(ctx, `SELECT COUNT(*) FROM "Customers" WHERE "City" = @__city_0`, city)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	both := []domain.BoundParameter{
		{Name: "__ef_filter__City_0", Value: "London"},
		{Name: "__id_1", Value: "AROUT"},
	}
	count, err = conn.ExecuteScalar(ctx,
		`SELECT COUNT(*) FROM "Customers" WHERE "City" = @__ef_filter__City_0 AND "CustomerID" <> @__id_1 AND '@__id_1' <> ''`, both)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProviderErrors(t *testing.T) {
	conn := connect(t)
	_, err := conn.Query(context.Background(), `SELECT * FROM "Missing"`, nil)
	require.Error(t, err)
	code, ok := domain.ProviderCode(err)
	assert.True(t, ok)
	assert.Equal(t, 1, code)
}

func TestClosed(t *testing.T) {
	conn := connect(t)
	require.NoError(t, conn.Close())
	_, err := conn.Query(context.Background(), `SELECT 1`, nil)
	assert.ErrorIs(t, err, database.ErrNotConnected)
}
