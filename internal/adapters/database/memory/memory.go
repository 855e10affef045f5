// Package memory provides a scripted in-memory connection. Each command
// is answered by the next queued result, or by a responder function.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// ErrNoResult is returned when a command arrives with nothing queued.
var ErrNoResult = errors.New("memory: no result queued for command")

// Result answers one command.
type Result struct {
	Columns []string
	Rows    [][]any
	// Err fails the command itself.
	Err error
	// RowErr fails iteration after the rows have been read.
	RowErr error
}

// Command is an executed command as seen by the connection.
type Command struct {
	SQL    string
	Params []domain.BoundParameter
}

// Responder computes the result of a command.
type Responder func(sql string, params []domain.BoundParameter) Result

// Conn is an in-memory domain.Connection.
type Conn struct {
	mu       sync.Mutex
	caps     domain.Capabilities
	queue    []Result
	respond  Responder
	executed []Command
	open     int
}

// New creates a connection reporting caps.
func New(caps domain.Capabilities) *Conn {
	if caps.Dialect == "" {
		caps.Dialect = domain.SQLServer
	}
	return &Conn{caps: caps}
}

// Push queues results answered in order.
func (c *Conn) Push(results ...Result) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, results...)
	return c
}

// Respond answers every command with f once the queue is empty.
func (c *Conn) Respond(f Responder) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.respond = f
	return c
}

// Executed returns the commands run so far.
func (c *Conn) Executed() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.executed...)
}

// Open returns the number of row streams not yet closed.
func (c *Conn) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Capabilities implements domain.Connection.
func (c *Conn) Capabilities() domain.Capabilities {
	return c.caps
}

func (c *Conn) next(sql string, params []domain.BoundParameter) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executed = append(c.executed, Command{SQL: sql, Params: append([]domain.BoundParameter(nil), params...)})
	if len(c.queue) > 0 {
		r := c.queue[0]
		c.queue = c.queue[1:]
		return r, r.Err
	}
	if c.respond != nil {
		r := c.respond(sql, params)
		return r, r.Err
	}
	return Result{}, fmt.Errorf("%w: %s", ErrNoResult, sql)
}

// Query implements domain.Connection.
func (c *Conn) Query(ctx context.Context, sql string, params []domain.BoundParameter) (domain.RowStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := c.next(sql, params)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.open++
	c.mu.Unlock()
	return &rows{conn: c, result: r, pos: -1}, nil
}

// ExecuteScalar implements domain.Connection. It returns the first
// column of the first row, or nil.
func (c *Conn) ExecuteScalar(ctx context.Context, sql string, params []domain.BoundParameter) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := c.next(sql, params)
	if err != nil {
		return nil, err
	}
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return nil, nil
	}
	return r.Rows[0][0], nil
}

// ExecuteNonQuery implements domain.Connection. It reports the number of
// rows of the result.
func (c *Conn) ExecuteNonQuery(ctx context.Context, sql string, params []domain.BoundParameter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r, err := c.next(sql, params)
	if err != nil {
		return 0, err
	}
	return int64(len(r.Rows)), nil
}

type rows struct {
	conn   *Conn
	result Result
	pos    int
	closed bool
}

func (r *rows) Columns() []string { return r.result.Columns }

func (r *rows) Next(ctx context.Context) bool {
	if r.closed || ctx.Err() != nil {
		return false
	}
	r.pos++
	return r.pos < len(r.result.Rows)
}

func (r *rows) Values() []any { return r.result.Rows[r.pos] }

func (r *rows) Err() error {
	if r.pos >= len(r.result.Rows) {
		return r.result.RowErr
	}
	return nil
}

func (r *rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.conn.mu.Lock()
	r.conn.open--
	r.conn.mu.Unlock()
	return nil
}
