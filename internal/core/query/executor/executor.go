// Package executor runs compiled queries over a connection and feeds the
// rows to the shaper.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satishbabariya/relq/internal/core/query/compiler"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
	"github.com/satishbabariya/relq/internal/diagnostics"
)

// Session executes queries over one connection. Only one result set may
// be open at a time unless the connection supports multiple cursors.
type Session struct {
	conn   domain.Connection
	logger *slog.Logger

	mu      sync.Mutex
	cursors int
	closed  bool
}

// NewSession creates a session over conn. A nil logger uses the global
// diagnostics logger.
func NewSession(conn domain.Connection, logger *slog.Logger) *Session {
	if logger == nil {
		logger = diagnostics.Logger()
	}
	return &Session{conn: conn, logger: logger}
}

// Connection returns the connection of the session.
func (s *Session) Connection() domain.Connection {
	return s.conn
}

// Close disposes the session. Open enumerations fail on their next read.
// The connection itself is not closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// acquire reserves a cursor.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrDisposed
	}
	if s.cursors > 0 && !s.conn.Capabilities().SupportsMultipleCursors {
		return domain.ErrConcurrentCursor
	}
	s.cursors++
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors--
}

// Request is one execution of a compiled query.
type Request struct {
	Query    *compiler.CompiledQuery
	Bindings domain.Bindings
	Filter   domain.FilterContext
	// Identities resolves entities across queries when the query tracks.
	// Nil resolves identity within the execution only.
	Identities *shaper.IdentityMap
}

// Execute runs req and returns its result shaped by the query's
// cardinality: a []any for sequences, a single value otherwise.
func (s *Session) Execute(ctx context.Context, req Request) (any, error) {
	e, err := s.Enumerate(ctx, req)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	var results []any
	for e.Next(ctx) {
		results = append(results, e.Value())
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return shaper.Finish(req.Query.Shaper, results)
}

// Enumerate starts req. Results stream from the main command; queries with
// split commands are buffered until every command has been read.
func (s *Session) Enumerate(ctx context.Context, req Request) (*Enumerator, error) {
	bound, err := req.Query.Bind(req.Bindings, req.Filter)
	if err != nil {
		return nil, err
	}
	ids := req.Identities
	if !req.Query.Shaper.Tracking {
		ids = nil
	}
	e := &Enumerator{
		s:     s,
		q:     req.Query,
		bound: bound,
		pass:  shaper.NewPass(ctx, req.Query.Shaper, ids, s.logger),
	}
	if e.rows, err = s.open(ctx, req.Query.Main, bound[0], 0); err != nil {
		return nil, err
	}
	if len(req.Query.Splits) > 0 {
		if err := e.buffer(ctx); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// open executes cmd and returns its rows with a cursor reserved.
func (s *Session) open(ctx context.Context, cmd *sqlgen.Command, bound []domain.BoundParameter, index int) (domain.RowStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	diagnostics.Event(ctx, s.logger, slog.LevelInfo, diagnostics.EventCommandExecuting,
		"sql", cmd.SQL,
		"command", index,
		"parameters", len(bound),
		"query_string", sqlgen.ToQueryString(cmd.SQL, bound))
	rows, err := s.conn.Query(ctx, cmd.SQL, bound)
	if err != nil {
		s.release()
		return nil, err
	}
	return rows, nil
}

// Enumerator yields the results of one execution. It is not safe for
// concurrent use.
type Enumerator struct {
	s     *Session
	q     *compiler.CompiledQuery
	bound [][]domain.BoundParameter
	pass  *shaper.Pass
	rows  domain.RowStream

	buffered []any
	fromBuf  bool
	current  any
	err      error
	done     bool
}

// Next advances to the next result. It returns false when the results are
// exhausted or reading failed; Err tells which.
func (e *Enumerator) Next(ctx context.Context) bool {
	if e.done {
		return false
	}
	if e.s.disposed() {
		return e.fail(domain.ErrDisposed)
	}
	if e.fromBuf {
		if len(e.buffered) == 0 {
			e.done = true
			return false
		}
		e.current, e.buffered = e.buffered[0], e.buffered[1:]
		return true
	}
	v, ok, err := e.read(ctx)
	if err != nil {
		return e.fail(err)
	}
	if !ok {
		e.done = true
		return false
	}
	e.current = v
	return true
}

// read returns the next result of the main command.
func (e *Enumerator) read(ctx context.Context) (any, bool, error) {
	for e.rows != nil {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !e.rows.Next(ctx) {
			err := e.rows.Err()
			if err == nil {
				err = ctx.Err()
			}
			e.closeRows()
			if err != nil {
				return nil, false, err
			}
			v, ok := e.pass.Flush()
			return v, ok, nil
		}
		v, ok, err := e.pass.Row(copyRow(e.rows.Values()))
		if err != nil || ok {
			return v, ok, err
		}
	}
	return nil, false, nil
}

// Value returns the current result.
func (e *Enumerator) Value() any {
	return e.current
}

// Err returns the error that stopped the enumeration, if any.
func (e *Enumerator) Err() error {
	return e.err
}

// Close releases the open result set, if any.
func (e *Enumerator) Close() error {
	e.done = true
	return e.closeRows()
}

func (e *Enumerator) closeRows() error {
	if e.rows == nil {
		return nil
	}
	err := e.rows.Close()
	e.rows = nil
	e.s.release()
	return err
}

func (e *Enumerator) fail(err error) bool {
	e.err = err
	e.closeRows()
	e.done = true
	return false
}

// buffer reads the main command to the end, then every split command in
// order, so that split rows find their owners.
func (e *Enumerator) buffer(ctx context.Context) error {
	var results []any
	for {
		v, ok, err := e.read(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		results = append(results, v)
	}
	for k, cmd := range e.q.Splits {
		if err := e.split(ctx, k, cmd); err != nil {
			return err
		}
	}
	e.buffered, e.fromBuf = results, true
	return nil
}

func (e *Enumerator) split(ctx context.Context, k int, cmd *sqlgen.Command) error {
	rows, err := e.s.open(ctx, cmd, e.bound[k+1], k+1)
	if err != nil {
		return err
	}
	defer func() {
		rows.Close()
		e.s.release()
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.s.disposed() {
			return domain.ErrDisposed
		}
		if !rows.Next(ctx) {
			break
		}
		if err := e.pass.SplitRow(k, copyRow(rows.Values())); err != nil {
			return fmt.Errorf("split command %d: %w", k+1, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func copyRow(values []any) []any {
	out := make([]any, len(values))
	copy(out, values)
	return out
}
