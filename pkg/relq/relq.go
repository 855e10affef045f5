// Package relq compiles queries over an entity model to SQL, runs them
// and materializes the results as entity graphs.
//
//	m, _ := relq.LoadModel("shop.relq")
//	client, _ := relq.Open(ctx, m, relq.WithDatabaseURL("file:shop.db"))
//	defer client.Close()
//	customers, _ := client.Query(ctx, `Customers.Include(c => c.Orders).Where(c => c.City == @city)`,
//		relq.Bindings{"city": "London"})
package relq

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/satishbabariya/relq/internal/adapters/database"
	"github.com/satishbabariya/relq/internal/adapters/database/mysql"
	"github.com/satishbabariya/relq/internal/adapters/database/postgres"
	"github.com/satishbabariya/relq/internal/adapters/database/sqlite"
	"github.com/satishbabariya/relq/internal/adapters/database/sqlserver"
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/model/schema"
	"github.com/satishbabariya/relq/internal/core/query/cache"
	"github.com/satishbabariya/relq/internal/core/query/compiler"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/executor"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
)

type (
	// Model is a finalized entity model.
	Model = model.Model
	// Bindings supplies captured values by name.
	Bindings = domain.Bindings
	// FilterContext supplies the ctx members referenced by query filters.
	FilterContext = domain.FilterContext
	// Connection executes commands. Adapters for the supported databases
	// are selected by Open; New accepts any implementation.
	Connection = domain.Connection
	// Object is a materialized entity.
	Object = shaper.Object
	// Record is a materialized anonymous projection.
	Record = shaper.Record
	// CompiledQuery is a query ready for execution.
	CompiledQuery = compiler.CompiledQuery
	// CacheStats are compiled-query cache statistics.
	CacheStats = cache.Stats
)

// LoadModel reads and finalizes a schema file.
func LoadModel(path string) (*Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return schema.Load(path, string(src))
}

// ParseModel finalizes a schema given as source text.
func ParseModel(filename, src string) (*Model, error) {
	return schema.Load(filename, src)
}

// Client runs queries against one database. Queries may be compiled
// concurrently; executions share one connection and follow its cursor
// rules.
type Client struct {
	cfg        *Config
	compiler   *compiler.Compiler
	session    *executor.Session
	closer     io.Closer
	identities *shaper.IdentityMap
	filter     FilterContext
	derived    bool
}

// Open connects to the database named by the configuration and creates a
// client that owns the connection.
func Open(ctx context.Context, m *Model, opts ...Option) (*Client, error) {
	cfg := ApplyOptions(DefaultConfig(), opts...)
	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := newClient(m, conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.closer = conn
	return c, nil
}

// New creates a client over conn. The dialect and server version come
// from conn unless WithServerVersion overrides the version. Close does not
// close conn.
func New(m *Model, conn Connection, opts ...Option) (*Client, error) {
	return newClient(m, conn, ApplyOptions(DefaultConfig(), opts...))
}

func newClient(m *Model, conn Connection, cfg *Config) (*Client, error) {
	caps := conn.Capabilities()
	version := cfg.ServerVersion
	if version == "" {
		version = caps.ServerVersion
	}
	comp, err := compiler.New(m, cfg.queryOptions(caps.Dialect, version))
	if err != nil {
		return nil, err
	}
	if cfg.QueryTimeout > 0 {
		cfg.Middleware = append([]Middleware{TimeoutMiddleware(cfg.QueryTimeout)}, cfg.Middleware...)
	}
	return &Client{
		cfg:        cfg,
		compiler:   comp,
		session:    executor.NewSession(conn, comp.Logger()),
		identities: shaper.NewIdentityMap(),
		filter:     cfg.Filter,
	}, nil
}

func connect(ctx context.Context, cfg *Config) (*database.Conn, error) {
	dc := database.Config{
		URL:            cfg.DatabaseURL,
		ServerVersion:  cfg.ServerVersion,
		ConnectTimeout: int(cfg.ConnectTimeout / time.Second),
		MaxIdleTime:    int(cfg.MaxIdleTime / time.Second),
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		return sqlite.Connect(ctx, dc)
	case "postgres", "postgresql":
		return postgres.Connect(ctx, postgres.PQ.Name, dc)
	case "pgx":
		return postgres.Connect(ctx, postgres.PGX.Name, dc)
	case "mysql":
		return mysql.Connect(ctx, dc)
	case "sqlserver", "mssql":
		return sqlserver.Connect(ctx, dc)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
}

// WithFilter returns a client sharing the connection, compiled queries and
// tracked entities of c whose queries see fctx in their filters. Closing
// it has no effect; close c instead.
func (c *Client) WithFilter(fctx FilterContext) *Client {
	cp := *c
	cp.filter = fctx
	cp.closer = nil
	cp.derived = true
	return &cp
}

// Dialect returns the SQL dialect of the database.
func (c *Client) Dialect() domain.Dialect {
	return c.compiler.Options().Dialect
}

// Model returns the model queries are compiled against.
func (c *Client) Model() *Model {
	return c.compiler.Model()
}

// Compile compiles a query without running it.
func (c *Client) Compile(ctx context.Context, text string, bindings Bindings) (*CompiledQuery, error) {
	return c.compiler.CompileText(ctx, text, bindings)
}

// ToQueryString returns the commands of a query with their parameter
// values as comments, separated by blank lines.
func (c *Client) ToQueryString(ctx context.Context, text string, bindings Bindings) (string, error) {
	q, err := c.Compile(ctx, text, bindings)
	if err != nil {
		return "", err
	}
	bound, err := q.Bind(bindings, c.filter)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(bound))
	for i, cmd := range q.Commands() {
		parts = append(parts, sqlgen.ToQueryString(cmd.SQL, bound[i]))
	}
	return strings.Join(parts, "\n\n"), nil
}

// Query runs a query. Sequences are returned as []any holding *Object,
// *Record or scalar values; First, Single and aggregates return one value.
func (c *Client) Query(ctx context.Context, text string, bindings Bindings) (any, error) {
	params := QueryParams{Text: text, Bindings: bindings, StartTime: time.Now()}
	run := chain(c.cfg.Middleware, params, func(ctx context.Context) QueryResult {
		data, err := c.execute(ctx, text, bindings)
		return QueryResult{Data: data, Error: err, Duration: time.Since(params.StartTime)}
	})
	result := run(ctx)
	return result.Data, result.Error
}

func (c *Client) execute(ctx context.Context, text string, bindings Bindings) (any, error) {
	q, err := c.Compile(ctx, text, bindings)
	if err != nil {
		return nil, err
	}
	return c.session.Execute(ctx, c.request(q, bindings))
}

// Each runs a sequence query and calls fn with every result as it is
// materialized. Returning an error from fn stops the enumeration.
func (c *Client) Each(ctx context.Context, text string, bindings Bindings, fn func(any) error) error {
	q, err := c.Compile(ctx, text, bindings)
	if err != nil {
		return err
	}
	e, err := c.session.Enumerate(ctx, c.request(q, bindings))
	if err != nil {
		return err
	}
	defer e.Close()
	for e.Next(ctx) {
		if err := fn(e.Value()); err != nil {
			return err
		}
	}
	return e.Err()
}

func (c *Client) request(q *CompiledQuery, bindings Bindings) executor.Request {
	return executor.Request{
		Query:      q,
		Bindings:   bindings,
		Filter:     c.filter,
		Identities: c.identities,
	}
}

// Tracked returns the number of entities resolved by identity.
func (c *Client) Tracked() int {
	return c.identities.Len()
}

// ClearTracked forgets every tracked entity.
func (c *Client) ClearTracked() {
	c.identities.Clear()
}

// Stats returns compiled-query cache statistics.
func (c *Client) Stats() CacheStats {
	return c.compiler.Stats()
}

// Close disposes the client and closes a connection made by Open.
func (c *Client) Close() error {
	if c.derived {
		return nil
	}
	if err := c.session.Close(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
