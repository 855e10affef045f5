// Package sqlserver implements the SQL Server database adapter.
package sqlserver

import (
	"context"
	"errors"
	"net/url"

	mssql "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/satishbabariya/relq/internal/adapters/database"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Driver describes the go-mssqldb driver.
var Driver = database.Driver{
	Name:           "sqlserver",
	Dialect:        domain.SQLServer,
	Params:         database.NamedParams,
	VersionQuery:   "SELECT CAST(SERVERPROPERTY('ProductVersion') AS nvarchar(128))",
	TranslateError: translateError,
}

// Connect opens a SQL Server database. config.URL is a sqlserver:// URL;
// MultipleActiveResultSets=true in its query enables multiple cursors.
func Connect(ctx context.Context, config database.Config) (*database.Conn, error) {
	if u, err := url.Parse(config.URL); err == nil && u.Query().Get("MultipleActiveResultSets") == "true" {
		config.MultipleCursors = true
	}
	return database.Open(ctx, Driver, config)
}

func translateError(err error) error {
	var se mssql.Error
	if errors.As(err, &se) {
		return &domain.ProviderError{Code: int(se.Number), Message: se.Message, Cause: err}
	}
	return err
}
