package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/relq/internal/adapters/database"
)

func TestParamName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"city", "city"},
		{"__city_0", "p__city_0"},
		{"__ef_filter__Tenant_0", "p__ef_filter__Tenant_0"},
		{"0", "p0"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.ParamName(tt.name))
		})
	}
}

func TestRewriteNamed(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "binder names",
			query: `SELECT "c"."Id" FROM "Customers" AS "c" WHERE "c"."City" = @__city_1 AND "c"."Tenant" = @__ef_filter__Tenant_0`,
			want:  `SELECT "c"."Id" FROM "Customers" AS "c" WHERE "c"."City" = @p__city_1 AND "c"."Tenant" = @p__ef_filter__Tenant_0`,
		},
		{
			name:  "letter names unchanged",
			query: `SELECT @city`,
			want:  `SELECT @city`,
		},
		{
			name:  "string literal",
			query: `SELECT '@__x ''@__y''' WHERE [a@__b] = @__x_0`,
			want:  `SELECT '@__x ''@__y''' WHERE [a@__b] = @p__x_0`,
		},
		{
			name:  "quoted identifier",
			query: `SELECT "@__col" FROM t WHERE x = @__x_0`,
			want:  `SELECT "@__col" FROM t WHERE x = @p__x_0`,
		},
		{
			name:  "comment and variables",
			query: "-- @__x_0='1'\nSELECT @@ROWCOUNT, @__x_0",
			want:  "-- @__x_0='1'\nSELECT @@ROWCOUNT, @p__x_0",
		},
		{
			name:  "no placeholders",
			query: `SELECT 1`,
			want:  `SELECT 1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.RewriteNamed(tt.query))
		})
	}
}
