package filters

import "github.com/satishbabariya/relq/internal/core/model"

// Guard tracks the hierarchies whose filter is being expanded. A query
// nested in a filter over its own hierarchy is not filtered again.
type Guard struct {
	stack    []*model.EntityType
	disabled bool
}

// NewGuard creates a guard. A disabled guard applies no filter at all.
func NewGuard(disabled bool) *Guard {
	return &Guard{disabled: disabled}
}

// Applies reports whether the filter of e must be applied at this point.
func (g *Guard) Applies(t *Table, e *model.EntityType) *Filter {
	if g.disabled {
		return nil
	}
	f := t.For(e)
	if f == nil || g.Active(e) {
		return nil
	}
	return f
}

// Active reports whether the filter of e's hierarchy is being expanded.
func (g *Guard) Active(e *model.EntityType) bool {
	root := e.Root()
	for _, s := range g.stack {
		if s == root {
			return true
		}
	}
	return false
}

// Enter marks the filter of e's hierarchy as being expanded. The returned
// function undoes it.
func (g *Guard) Enter(e *model.EntityType) func() {
	g.stack = append(g.stack, e.Root())
	n := len(g.stack)
	return func() { g.stack = g.stack[:n-1] }
}

// Depth returns the number of filters being expanded.
func (g *Guard) Depth() int {
	return len(g.stack)
}
