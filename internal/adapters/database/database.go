// Package database adapts database/sql drivers to the execution contract
// of the query pipeline.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// ErrNotConnected is returned when a closed connection is used.
var ErrNotConnected = errors.New("database not connected")

// Config holds database connection configuration.
type Config struct {
	URL string
	// ServerVersion overrides the version reported by the server.
	ServerVersion string
	// MultipleCursors reports that several result sets may be open at once.
	MultipleCursors bool
	MaxIdleTime     int // seconds
	ConnectTimeout  int // seconds
}

// ParamStyle selects how bound parameters are passed to the driver.
type ParamStyle int

const (
	// NamedParams passes sql.Named arguments.
	NamedParams ParamStyle = iota
	// PositionalParams passes values in placeholder order.
	PositionalParams
)

// Driver describes one database/sql driver.
type Driver struct {
	Name    string
	Dialect domain.Dialect
	Params  ParamStyle
	// VersionQuery returns the server version as its only value.
	VersionQuery string
	// Setup runs once after the connection is opened.
	Setup func(ctx context.Context, db *sql.DB) error
	// TranslateError maps driver errors to provider errors. Nil passes them through.
	TranslateError func(error) error
}

// Conn is a domain.Connection over a *sql.DB.
type Conn struct {
	db     *sql.DB
	driver Driver
	caps   domain.Capabilities
}

// Open connects with d and cfg and resolves the server version.
func Open(ctx context.Context, d Driver, cfg Config) (*Conn, error) {
	db, err := sql.Open(d.Name, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Second)
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ConnectTimeout)*time.Second)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if d.Setup != nil {
		if err := d.Setup(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	c, err := Wrap(ctx, db, d, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Wrap adapts an open database. The server version is queried unless cfg
// sets it.
func Wrap(ctx context.Context, db *sql.DB, d Driver, cfg Config) (*Conn, error) {
	c := &Conn{
		db:     db,
		driver: d,
		caps: domain.Capabilities{
			Dialect:                 d.Dialect,
			SupportsMultipleCursors: cfg.MultipleCursors,
			ServerVersion:           cfg.ServerVersion,
		},
	}
	if c.caps.ServerVersion == "" && d.VersionQuery != "" {
		var v sql.NullString
		if err := db.QueryRowContext(ctx, d.VersionQuery).Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to read server version: %w", c.translate(err))
		}
		c.caps.ServerVersion = v.String
	}
	return c, nil
}

// DB returns the underlying database.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Close closes the database.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Capabilities implements domain.Connection.
func (c *Conn) Capabilities() domain.Capabilities {
	return c.caps
}

// Args converts bound parameters to driver arguments. Named parameters
// are renamed with ParamName.
func (c *Conn) Args(params []domain.BoundParameter) []any {
	args := make([]any, len(params))
	for i, p := range params {
		if c.driver.Params == NamedParams {
			args[i] = sql.Named(ParamName(p.Name), p.Value)
		} else {
			args[i] = p.Value
		}
	}
	return args
}

// Query implements domain.Connection.
func (c *Conn) Query(ctx context.Context, query string, params []domain.BoundParameter) (domain.RowStream, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	query, args := c.command(query, params)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.translate(err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, c.translate(err)
	}
	return &Rows{rows: rows, cols: cols, conn: c}, nil
}

// ExecuteScalar implements domain.Connection.
func (c *Conn) ExecuteScalar(ctx context.Context, query string, params []domain.BoundParameter) (any, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	query, args := c.command(query, params)
	var v any
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, c.translate(err)
	}
	return normalize(v), nil
}

// ExecuteNonQuery implements domain.Connection.
func (c *Conn) ExecuteNonQuery(ctx context.Context, query string, params []domain.BoundParameter) (int64, error) {
	if c.db == nil {
		return 0, ErrNotConnected
	}
	query, args := c.command(query, params)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.translate(err)
	}
	return res.RowsAffected()
}

func (c *Conn) translate(err error) error {
	if err == nil || c.driver.TranslateError == nil {
		return err
	}
	return c.driver.TranslateError(err)
}

// Rows is a domain.RowStream over *sql.Rows.
type Rows struct {
	rows   *sql.Rows
	cols   []string
	conn   *Conn
	values []any
	err    error
}

// Columns implements domain.RowStream.
func (r *Rows) Columns() []string {
	return r.cols
}

// Next implements domain.RowStream.
func (r *Rows) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if !r.rows.Next() {
		return false
	}
	raw := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = r.conn.translate(err)
		return false
	}
	for i, v := range raw {
		raw[i] = normalize(v)
	}
	r.values = raw
	return true
}

// Values implements domain.RowStream.
func (r *Rows) Values() []any {
	return r.values
}

// Err implements domain.RowStream.
func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.conn.translate(r.rows.Err())
}

// Close implements domain.RowStream.
func (r *Rows) Close() error {
	return r.rows.Close()
}

// normalize copies driver-owned byte slices.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}

// Ensure Conn implements domain.Connection.
var _ domain.Connection = (*Conn)(nil)
