package model

import (
	"sort"
)

// EntityType is a mapped entity with identity.
type EntityType struct {
	Name    string
	Table   string
	Schema  string
	SetName string

	Base     *EntityType
	Derived  []*EntityType
	Abstract bool
	// DiscriminatorColumn is set on the hierarchy root.
	DiscriminatorColumn string
	DiscriminatorValue  string

	// Key is declared on the hierarchy root.
	Key         []*Property
	Properties  []*Property
	Navigations []*Navigation
	Owned       []*OwnedNavigation

	// Temporal and Filter are declared on the hierarchy root.
	Temporal *Temporal
	Filter   string

	discriminator *Property
	periodStart   *Property
	periodEnd     *Property
}

// Root returns the top of the inheritance hierarchy.
func (e *EntityType) Root() *EntityType {
	r := e
	for r.Base != nil {
		r = r.Base
	}
	return r
}

// KeyProperties returns the primary key of the hierarchy.
func (e *EntityType) KeyProperties() []*Property {
	return e.Root().Key
}

// IsKeyless reports whether the type has no primary key.
func (e *EntityType) IsKeyless() bool {
	return len(e.Root().Key) == 0
}

// IsTemporal reports whether the hierarchy is system-versioned.
func (e *EntityType) IsTemporal() bool {
	return e.Root().Temporal != nil
}

// QueryFilter returns the predicate text filtering every query over the hierarchy.
func (e *EntityType) QueryFilter() string {
	return e.Root().Filter
}

// Discriminator returns the shadow discriminator property, or nil.
func (e *EntityType) Discriminator() *Property {
	return e.Root().discriminator
}

// PeriodStart returns the shadow period-start property of a temporal type.
func (e *EntityType) PeriodStart() *Property {
	return e.Root().periodStart
}

// PeriodEnd returns the shadow period-end property of a temporal type.
func (e *EntityType) PeriodEnd() *Property {
	return e.Root().periodEnd
}

// IsAssignableFrom reports whether other is e or derives from it.
func (e *EntityType) IsAssignableFrom(other *EntityType) bool {
	for t := other; t != nil; t = t.Base {
		if t == e {
			return true
		}
	}
	return false
}

// Subtree returns e followed by every type deriving from it, depth first.
func (e *EntityType) Subtree() []*EntityType {
	out := []*EntityType{e}
	for _, d := range e.Derived {
		out = append(out, d.Subtree()...)
	}
	return out
}

// ConcreteDiscriminatorValues lists the values of every non-abstract type in the subtree.
func (e *EntityType) ConcreteDiscriminatorValues() []string {
	var out []string
	for _, t := range e.Subtree() {
		if !t.Abstract {
			out = append(out, t.DiscriminatorValue)
		}
	}
	return out
}

// ByDiscriminator finds the concrete type in the subtree with the given value.
func (e *EntityType) ByDiscriminator(value string) *EntityType {
	for _, t := range e.Subtree() {
		if !t.Abstract && t.DiscriminatorValue == value {
			return t
		}
	}
	return nil
}

// FindProperty looks up a property on e and its base types.
func (e *EntityType) FindProperty(name string) *Property {
	for t := e; t != nil; t = t.Base {
		for _, p := range t.Properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// FindNavigation looks up a navigation on e and its base types.
func (e *EntityType) FindNavigation(name string) *Navigation {
	for t := e; t != nil; t = t.Base {
		for _, n := range t.Navigations {
			if n.Name == name {
				return n
			}
		}
	}
	return nil
}

// FindOwned looks up an owned navigation on e and its base types.
func (e *EntityType) FindOwned(name string) *OwnedNavigation {
	for t := e; t != nil; t = t.Base {
		for _, n := range t.Owned {
			if n.Name == name {
				return n
			}
		}
	}
	return nil
}

// DeclaringType returns the type in e's subtree or ancestry that declares p.
func (e *EntityType) DeclaringType(p *Property) *EntityType {
	for _, t := range append(e.ancestors(), e.Subtree()...) {
		for _, q := range t.Properties {
			if q == p {
				return t
			}
		}
	}
	return nil
}

func (e *EntityType) ancestors() []*EntityType {
	var out []*EntityType
	for t := e.Base; t != nil; t = t.Base {
		out = append([]*EntityType{t}, out...)
	}
	return out
}

// ColumnProperties returns the properties read when e is projected: the
// ancestry of e, then e, then its derived types. Within each type key
// properties come first and the rest follow ordered by name.
func (e *EntityType) ColumnProperties() []*Property {
	var out []*Property
	for _, t := range append(e.ancestors(), e.Subtree()...) {
		out = append(out, t.orderedProperties()...)
	}
	return out
}

// OwnedInHierarchy returns the owned navigations of e's ancestry, e and its derived types.
func (e *EntityType) OwnedInHierarchy() []*OwnedNavigation {
	var out []*OwnedNavigation
	for _, t := range append(e.ancestors(), e.Subtree()...) {
		out = append(out, t.Owned...)
	}
	return out
}

func (e *EntityType) orderedProperties() []*Property {
	var keys, rest []*Property
	isKey := make(map[*Property]bool, len(e.Key))
	for _, k := range e.Key {
		isKey[k] = true
		keys = append(keys, k)
	}
	for _, p := range e.Properties {
		if !isKey[p] {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	return append(keys, rest...)
}
