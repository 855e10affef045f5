// Package postgres implements the PostgreSQL database adapter over lib/pq
// or the pgx stdlib driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/lib/pq"                 // PostgreSQL driver

	"github.com/satishbabariya/relq/internal/adapters/database"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

const versionQuery = "SELECT split_part(current_setting('server_version'), ' ', 1)"

// PQ describes the lib/pq driver.
var PQ = database.Driver{
	Name:           "postgres",
	Dialect:        domain.PostgreSQL,
	Params:         database.PositionalParams,
	VersionQuery:   versionQuery,
	TranslateError: translateError,
}

// PGX describes the pgx stdlib driver.
var PGX = database.Driver{
	Name:           "pgx",
	Dialect:        domain.PostgreSQL,
	Params:         database.PositionalParams,
	VersionQuery:   versionQuery,
	TranslateError: translateError,
}

// Connect opens a PostgreSQL database with driver, "postgres" or "pgx".
func Connect(ctx context.Context, driver string, config database.Config) (*database.Conn, error) {
	switch driver {
	case "", PQ.Name:
		return database.Open(ctx, PQ, config)
	case PGX.Name:
		return database.Open(ctx, PGX, config)
	}
	return nil, fmt.Errorf("unknown postgres driver %q", driver)
}

// translateError maps SQLSTATE errors to provider errors. Codes with only
// digits keep their numeric value; others are reported with code 0.
func translateError(err error) error {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return providerError(string(pe.Code), pe.Message, err)
	}
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return providerError(pg.Code, pg.Message, err)
	}
	return err
}

func providerError(state, message string, cause error) error {
	code, _ := strconv.Atoi(state)
	return &domain.ProviderError{Code: code, Message: state + ": " + message, Cause: cause}
}
