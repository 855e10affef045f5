// Package sqlite implements the SQLite database adapter.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/satishbabariya/relq/internal/adapters/database"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Driver describes the go-sqlite3 driver.
var Driver = database.Driver{
	Name:           "sqlite3",
	Dialect:        domain.SQLite,
	Params:         database.NamedParams,
	VersionQuery:   "SELECT sqlite_version()",
	Setup:          setup,
	TranslateError: translateError,
}

// Connect opens the SQLite database at config.URL, a file path or
// ":memory:".
func Connect(ctx context.Context, config database.Config) (*database.Conn, error) {
	return database.Open(ctx, Driver, config)
}

func setup(ctx context.Context, db *sql.DB) error {
	// A single connection keeps in-memory databases shared and serializes writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

func translateError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return &domain.ProviderError{Code: int(se.ExtendedCode), Message: se.Error(), Cause: err}
	}
	return err
}
