// Package domain holds the contracts shared by the query pipeline: the
// execution collaborator, bound parameters, options and the error taxonomy.
package domain

import (
	"context"
)

// Dialect names a SQL dialect.
type Dialect string

const (
	// SQLServer is the reference dialect.
	SQLServer Dialect = "sqlserver"
	// SQLite dialect.
	SQLite Dialect = "sqlite"
	// PostgreSQL dialect.
	PostgreSQL Dialect = "postgres"
	// MySQL dialect.
	MySQL Dialect = "mysql"
)

// BoundParameter is a parameter value resolved for one execution.
type BoundParameter struct {
	Name      string
	Value     any
	StoreType string
	Size      int
	Precision int
	Scale     int
	Nullable  bool
}

// RowStream iterates over the rows of one result set.
type RowStream interface {
	// Columns returns the result column names.
	Columns() []string
	// Next advances to the next row.
	Next(ctx context.Context) bool
	// Values returns the current row. The slice is only valid until the next call to Next.
	Values() []any
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the result set.
	Close() error
}

// Connection is the external execution collaborator. It owns connection
// lifetime, transactions and retries.
type Connection interface {
	// Query executes a command returning rows.
	Query(ctx context.Context, sql string, params []BoundParameter) (RowStream, error)
	// ExecuteScalar executes a command returning a single value.
	ExecuteScalar(ctx context.Context, sql string, params []BoundParameter) (any, error)
	// ExecuteNonQuery executes a command returning the affected row count.
	ExecuteNonQuery(ctx context.Context, sql string, params []BoundParameter) (int64, error)
	// Capabilities describes the connection.
	Capabilities() Capabilities
}

// Capabilities describes what a connection supports.
type Capabilities struct {
	Dialect Dialect
	// SupportsMultipleCursors allows several result sets to be open at once.
	SupportsMultipleCursors bool
	// ServerVersion gates dialect features, e.g. "13.0" for JSON functions on SQL Server.
	ServerVersion string
}
