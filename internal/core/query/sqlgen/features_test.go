package sqlgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
)

func TestFeaturesOf(t *testing.T) {
	tests := []struct {
		name    string
		dialect domain.Dialect
		version string
		want    sqlgen.Features
	}{
		{"sqlserver current", domain.SQLServer, "", sqlgen.Features{JSONTables: true, Apply: true, Temporal: true}},
		{"sqlserver 2014", domain.SQLServer, "12.0", sqlgen.Features{Apply: true}},
		{"sqlserver compat level", domain.SQLServer, "130", sqlgen.Features{JSONTables: true, Apply: true, Temporal: true}},
		{"sqlserver old compat level", domain.SQLServer, "110", sqlgen.Features{Apply: true}},
		{"sqlserver unparsable", domain.SQLServer, "latest", sqlgen.Features{JSONTables: true, Apply: true, Temporal: true}},
		{"sqlite", domain.SQLite, "3.45.1", sqlgen.Features{JSONTables: true}},
		{"sqlite without json1", domain.SQLite, "3.8.0", sqlgen.Features{}},
		{"postgres", domain.PostgreSQL, "16.2", sqlgen.Features{JSONTables: true, Apply: true}},
		{"postgres 9.3", domain.PostgreSQL, "9.3", sqlgen.Features{Apply: true}},
		{"mysql lateral", domain.MySQL, "8.0.14", sqlgen.Features{JSONTables: true, Apply: true}},
		{"mysql without lateral", domain.MySQL, "8.0.13", sqlgen.Features{JSONTables: true}},
		{"mysql 5.7", domain.MySQL, "5.7.44", sqlgen.Features{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlgen.FeaturesOf(tt.dialect, tt.version))
		})
	}
}

func TestGeneratorFeatures(t *testing.T) {
	g, err := sqlgen.NewGenerator(domain.PostgreSQL, "9.2")
	assert.NoError(t, err)
	assert.Equal(t, domain.PostgreSQL, g.Dialect())
	assert.False(t, g.Features().Apply)
	assert.False(t, g.Features().JSONTables)
}
