package domain

import (
	"log/slog"
)

// SplittingBehavior selects how collection includes are loaded.
type SplittingBehavior int

const (
	// SingleQuery loads collections with LEFT JOINs in one command.
	SingleQuery SplittingBehavior = iota
	// SplitQuery loads every collection with its own command.
	SplitQuery
)

func (s SplittingBehavior) String() string {
	if s == SplitQuery {
		return "split"
	}
	return "single"
}

// DefaultMaxNavigationDepth bounds navigation paths.
const DefaultMaxNavigationDepth = 16

// Options configures compilation and execution.
type Options struct {
	Dialect Dialect
	// ServerVersion gates dialect features.
	ServerVersion string
	// Splitting is the default for queries without AsSplitQuery or AsSingleQuery.
	Splitting SplittingBehavior
	// NoTracking is the default for queries without AsTracking or AsNoTracking.
	NoTracking bool
	// MaxNavigationDepth bounds navigation paths. Zero means DefaultMaxNavigationDepth.
	MaxNavigationDepth int
	// CacheSize is the number of compiled queries kept. Zero means 256.
	CacheSize int
	// Logger receives pipeline events. Nil means the global diagnostics logger.
	Logger *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Dialect:            SQLServer,
		Splitting:          SingleQuery,
		MaxNavigationDepth: DefaultMaxNavigationDepth,
		CacheSize:          256,
	}
}

// Normalize fills zero fields with defaults.
func (o Options) Normalize() Options {
	d := DefaultOptions()
	if o.Dialect == "" {
		o.Dialect = d.Dialect
	}
	if o.MaxNavigationDepth <= 0 {
		o.MaxNavigationDepth = d.MaxNavigationDepth
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	return o
}

// Bindings supplies captured values by name for one execution.
type Bindings map[string]any

// FilterContext supplies the values of ctx members referenced by query filters.
type FilterContext map[string]any
