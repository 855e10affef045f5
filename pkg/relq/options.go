package relq

import (
	"log/slog"
	"time"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Config holds client configuration.
type Config struct {
	// Driver selects the database adapter: sqlite3, postgres, pgx, mysql or sqlserver.
	Driver      string
	DatabaseURL string
	// ServerVersion overrides the version reported by the server.
	ServerVersion string

	// SplitQueries loads collection includes with one command each unless
	// a query says AsSingleQuery.
	SplitQueries bool
	// NoTracking disables identity resolution across queries unless a
	// query says AsTracking.
	NoTracking         bool
	MaxNavigationDepth int
	CacheSize          int

	// Filter supplies the ctx members referenced by query filters.
	Filter FilterContext

	ConnectTimeout time.Duration
	MaxIdleTime    time.Duration
	QueryTimeout   time.Duration

	Logger     *slog.Logger
	Middleware []Middleware
}

// Option configures a client.
type Option func(*Config)

// WithDriver sets the database adapter.
func WithDriver(driver string) Option {
	return func(c *Config) {
		c.Driver = driver
	}
}

// WithDatabaseURL sets the connection string.
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

// WithServerVersion sets the server version used for feature gates.
func WithServerVersion(v string) Option {
	return func(c *Config) {
		c.ServerVersion = v
	}
}

// WithSplitQueries makes split loading the default for collection includes.
func WithSplitQueries() Option {
	return func(c *Config) {
		c.SplitQueries = true
	}
}

// WithNoTracking makes untracked queries the default.
func WithNoTracking() Option {
	return func(c *Config) {
		c.NoTracking = true
	}
}

// WithMaxNavigationDepth bounds navigation paths.
func WithMaxNavigationDepth(n int) Option {
	return func(c *Config) {
		c.MaxNavigationDepth = n
	}
}

// WithCacheSize sets the number of compiled queries kept.
func WithCacheSize(n int) Option {
	return func(c *Config) {
		c.CacheSize = n
	}
}

// WithFilterContext sets the values referenced by query filters.
func WithFilterContext(fctx FilterContext) Option {
	return func(c *Config) {
		c.Filter = fctx
	}
}

// WithConnectTimeout bounds the initial connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithQueryTimeout bounds every query.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// WithLogger sets the logger pipeline events are written to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMiddleware appends middleware to the query chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Config) {
		c.Middleware = append(c.Middleware, mw...)
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:             "sqlite3",
		MaxNavigationDepth: domain.DefaultMaxNavigationDepth,
		CacheSize:          256,
		ConnectTimeout:     10 * time.Second,
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(cfg *Config, opts ...Option) *Config {
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// queryOptions converts the config for dialect d.
func (c *Config) queryOptions(d domain.Dialect, serverVersion string) domain.Options {
	opts := domain.Options{
		Dialect:            d,
		ServerVersion:      serverVersion,
		NoTracking:         c.NoTracking,
		MaxNavigationDepth: c.MaxNavigationDepth,
		CacheSize:          c.CacheSize,
		Logger:             c.Logger,
	}
	if c.SplitQueries {
		opts.Splitting = domain.SplitQuery
	}
	return opts
}
