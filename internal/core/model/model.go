package model

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEntity is returned when a name does not resolve to an entity type or set.
var ErrUnknownEntity = errors.New("unknown entity type")

// DefaultDiscriminatorColumn names the discriminator column of a hierarchy unless overridden.
const DefaultDiscriminatorColumn = "Discriminator"

// Model is a registry of entity, owned and enum types. It is safe for
// concurrent reads once Finalize has returned.
type Model struct {
	mu       sync.RWMutex
	entities map[string]*EntityType
	sets     map[string]*EntityType
	enums    map[string]*EnumType
	owned    map[string]*OwnedType
	order    []*EntityType
	final    bool
}

// New creates an empty model.
func New() *Model {
	return &Model{
		entities: make(map[string]*EntityType),
		sets:     make(map[string]*EntityType),
		enums:    make(map[string]*EnumType),
		owned:    make(map[string]*OwnedType),
	}
}

// AddEntity registers an entity type.
func (m *Model) AddEntity(e *EntityType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.entities[e.Name]; dup {
		return fmt.Errorf("entity %s declared twice", e.Name)
	}
	m.entities[e.Name] = e
	m.order = append(m.order, e)
	return nil
}

// AddEnum registers an enum type.
func (m *Model) AddEnum(e *EnumType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.enums[e.Name]; dup {
		return fmt.Errorf("enum %s declared twice", e.Name)
	}
	m.enums[e.Name] = e
	return nil
}

// AddOwnedType registers an owned type.
func (m *Model) AddOwnedType(o *OwnedType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.owned[o.Name]; dup {
		return fmt.Errorf("type %s declared twice", o.Name)
	}
	m.owned[o.Name] = o
	return nil
}

// Entity returns the entity type with the given name.
func (m *Model) Entity(name string) (*EntityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// EntitySet resolves a query root name: a set name first, then an entity name.
func (m *Model) EntitySet(name string) (*EntityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sets[name]; ok {
		return e, nil
	}
	if e, ok := m.entities[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
}

// IsEntitySet reports whether name resolves as a query root.
func (m *Model) IsEntitySet(name string) bool {
	_, err := m.EntitySet(name)
	return err == nil
}

// Enum returns the enum type with the given name, or nil.
func (m *Model) Enum(name string) *EnumType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enums[name]
}

// OwnedType returns the owned type with the given name, or nil.
func (m *Model) OwnedType(name string) *OwnedType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owned[name]
}

// Entities returns entity types in declaration order.
func (m *Model) Entities() []*EntityType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*EntityType, len(m.order))
	copy(out, m.order)
	return out
}

// Finalize links hierarchies and relationships, adds shadow properties and
// validates the model. It must be called once after every type is added.
func (m *Model) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.final {
		return nil
	}

	for _, e := range m.order {
		if e.Base != nil {
			e.Base.Derived = append(e.Base.Derived, e)
		}
	}

	for _, e := range m.order {
		if e.Base != nil {
			if e.Table == "" {
				e.Table = e.Root().Table
			}
			if e.Table != e.Root().Table {
				return fmt.Errorf("entity %s: derived types share the table of %s", e.Name, e.Root().Name)
			}
			if len(e.Key) > 0 {
				return fmt.Errorf("entity %s: key must be declared on %s", e.Name, e.Root().Name)
			}
			if e.Temporal != nil || e.Filter != "" {
				return fmt.Errorf("entity %s: temporal and filter settings belong to %s", e.Name, e.Root().Name)
			}
		} else if e.Table == "" {
			e.Table = e.Name
		}
		switch {
		case e.SetName != "":
		case e.Base != nil:
			e.SetName = e.Name
		default:
			e.SetName = e.Table
		}
		if other, dup := m.sets[e.SetName]; dup && other != e {
			return fmt.Errorf("entity %s: set name %s already used by %s", e.Name, e.SetName, other.Name)
		}
		m.sets[e.SetName] = e
		if e.DiscriminatorValue == "" {
			e.DiscriminatorValue = e.Name
		}
	}

	for _, e := range m.order {
		if e.Base != nil {
			continue
		}
		if len(e.Derived) > 0 || e.DiscriminatorColumn != "" {
			if e.DiscriminatorColumn == "" {
				e.DiscriminatorColumn = DefaultDiscriminatorColumn
			}
			e.discriminator = &Property{Name: e.DiscriminatorColumn, Column: e.DiscriminatorColumn, Kind: KindString, Shadow: true}
			e.Properties = append(e.Properties, e.discriminator)
		}
		if t := e.Temporal; t != nil {
			if t.PeriodStart == "" {
				t.PeriodStart = "PeriodStart"
			}
			if t.PeriodEnd == "" {
				t.PeriodEnd = "PeriodEnd"
			}
			if t.HistoryTable == "" {
				t.HistoryTable = e.Table + "History"
			}
			e.periodStart = &Property{Name: t.PeriodStart, Column: t.PeriodStart, Kind: KindDateTime, Shadow: true}
			e.periodEnd = &Property{Name: t.PeriodEnd, Column: t.PeriodEnd, Kind: KindDateTime, Shadow: true}
			e.Properties = append(e.Properties, e.periodStart, e.periodEnd)
		}
	}

	for _, e := range m.order {
		for _, n := range e.Navigations {
			if err := m.linkNavigation(n); err != nil {
				return err
			}
		}
	}

	m.final = true
	return nil
}

func (m *Model) linkNavigation(n *Navigation) error {
	if n.Dependent {
		if len(n.ForeignKey) == 0 || len(n.ForeignKey) != len(n.PrincipalKey) {
			return fmt.Errorf("navigation %s: foreign key and principal key must have the same arity", n)
		}
		if n.Inverse == nil {
			n.Inverse = findInverse(n)
		}
		return nil
	}

	dep := findInverse(n)
	if dep == nil || !dep.Dependent {
		return fmt.Errorf("navigation %s: no matching relation on %s", n, n.Target.Name)
	}
	n.Inverse = dep
	dep.Inverse = n
	n.ForeignKey = dep.ForeignKey
	n.PrincipalKey = dep.PrincipalKey
	n.Required = dep.Required
	return nil
}

func findInverse(n *Navigation) *Navigation {
	var found *Navigation
	for t := n.Target; t != nil; t = t.Base {
		for _, cand := range t.Navigations {
			if cand == n || cand.Target == nil || !cand.Target.IsAssignableFrom(n.Declaring) && !n.Declaring.IsAssignableFrom(cand.Target) {
				continue
			}
			if cand.Dependent == n.Dependent {
				continue
			}
			if cand.RelationName != n.RelationName {
				continue
			}
			if found == nil {
				found = cand
			}
		}
	}
	return found
}
