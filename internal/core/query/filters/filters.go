// Package filters holds the query filters declared on entity types and the
// guard that keeps a self-referencing filter from expanding itself again.
package filters

import (
	"fmt"
	"sort"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/linq"
)

// Filter is the predicate applied to every query over a hierarchy.
type Filter struct {
	// Entity is the hierarchy root declaring the filter.
	Entity *model.EntityType
	Lambda *expr.Lambda
	// Members lists the filter context members read by the predicate.
	Members []string
}

// Table maps hierarchy roots to their filters. It is read-only once built
// and safe for concurrent use.
type Table struct {
	byRoot map[*model.EntityType]*Filter
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byRoot: make(map[*model.EntityType]*Filter)}
}

// Build parses the filter declared on every hierarchy root of m.
func Build(m *model.Model) (*Table, error) {
	t := NewTable()
	for _, e := range m.Entities() {
		if e.Base != nil || e.Filter == "" {
			continue
		}
		l, err := linq.ParseLambda(e.Filter)
		if err != nil {
			return nil, fmt.Errorf("filter of %s: %w", e.Name, err)
		}
		if err := t.Add(e, l); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers the filter of hierarchy root e.
func (t *Table) Add(e *model.EntityType, l *expr.Lambda) error {
	if e.Base != nil {
		return fmt.Errorf("filter of %s: filters are declared on the hierarchy root %s", e.Name, e.Root().Name)
	}
	if len(l.Params) != 1 {
		return fmt.Errorf("filter of %s: predicate must take one parameter", e.Name)
	}
	t.byRoot[e] = &Filter{Entity: e, Lambda: l, Members: contextMembers(l)}
	return nil
}

// For returns the filter applying to e, or nil.
func (t *Table) For(e *model.EntityType) *Filter {
	if t == nil || e == nil {
		return nil
	}
	return t.byRoot[e.Root()]
}

// Len returns the number of filtered hierarchies.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byRoot)
}

// Members returns every filter context member read by any filter, sorted.
func (t *Table) Members() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range t.byRoot {
		for _, m := range f.Members {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

func contextMembers(l *expr.Lambda) []string {
	var out []string
	seen := make(map[string]bool)
	expr.Inspect(l, func(n any) bool {
		if c, ok := n.(*expr.ContextValue); ok && !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
		return true
	})
	return out
}
