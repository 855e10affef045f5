// Package mysql implements the MySQL database adapter.
package mysql

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/satishbabariya/relq/internal/adapters/database"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Driver describes the go-sql-driver/mysql driver.
var Driver = database.Driver{
	Name:           "mysql",
	Dialect:        domain.MySQL,
	Params:         database.PositionalParams,
	VersionQuery:   "SELECT VERSION()",
	TranslateError: translateError,
}

// Connect opens a MySQL database. config.URL is a driver DSN such as
// user:pass@tcp(host:3306)/db; parseTime=true is added when missing.
func Connect(ctx context.Context, config database.Config) (*database.Conn, error) {
	cfg, err := mysql.ParseDSN(config.URL)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	config.URL = cfg.FormatDSN()
	return database.Open(ctx, Driver, config)
}

func translateError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return &domain.ProviderError{Code: int(me.Number), Message: me.Message, Cause: err}
	}
	return err
}
