package database_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/relq/internal/adapters/database/mysql"
	"github.com/satishbabariya/relq/internal/adapters/database/postgres"
	"github.com/satishbabariya/relq/internal/adapters/database/sqlserver"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

func TestDrivers(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dialect domain.Dialect
	}{
		{"sqlserver", sqlserver.Driver.Name, sqlserver.Driver.Dialect},
		{"postgres", postgres.PQ.Name, postgres.PQ.Dialect},
		{"pgx", postgres.PGX.Name, postgres.PGX.Dialect},
		{"mysql", mysql.Driver.Name, mysql.Driver.Dialect},
	}
	registered := sql.Drivers()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, registered, tt.driver)
			assert.NotEmpty(t, tt.dialect)
		})
	}
}
