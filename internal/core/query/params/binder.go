// Package params hoists captured and filter context values into named,
// typed parameters and resolves their values per execution.
package params

import (
	"strconv"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Parameter name hints.
const (
	// PagingHint names captured Skip, Take and temporal values.
	PagingHint = "p"
	// FilterHintPrefix prefixes the member name of a filter context value.
	FilterHintPrefix = "ef_filter__"
)

// Binder mints parameters for one statement. Names use a single counter
// shared by every hint, so a statement never carries two parameters
// with the same name.
type Binder struct {
	next   int
	params []*algebra.Parameter
	byKey  map[string]*algebra.Parameter
	colls  map[string]*algebra.Parameter
	raw    map[int]*algebra.Parameter
}

// NewBinder creates an empty binder.
func NewBinder() *Binder {
	return &Binder{
		byKey: make(map[string]*algebra.Parameter),
		colls: make(map[string]*algebra.Parameter),
		raw:   make(map[int]*algebra.Parameter),
	}
}

// Name formats a parameter name from a hint and an ordinal. The dialect
// prefix is added by the generator.
func Name(hint string, n int) string {
	return "__" + hint + "_" + strconv.Itoa(n)
}

// Captured binds a captured value compared against a value of mapping m.
func (b *Binder) Captured(name string, m *algebra.TypeMapping, nullable bool) *algebra.Parameter {
	return b.bind(algebra.ParameterSource{Kind: algebra.CapturedParameter, Name: name}, name, m, nullable)
}

// Paging binds a captured Skip, Take or temporal point.
func (b *Binder) Paging(name string, m *algebra.TypeMapping) *algebra.Parameter {
	return b.bind(algebra.ParameterSource{Kind: algebra.CapturedParameter, Name: name}, PagingHint, m, false)
}

// Filter binds a filter context member read by the filter of entity. A
// different scope mints a different parameter.
func (b *Binder) Filter(entity, member, scope string, m *algebra.TypeMapping) *algebra.Parameter {
	src := algebra.ParameterSource{Kind: algebra.FilterParameter, Name: member, Entity: entity, Scope: scope}
	return b.bind(src, FilterHintPrefix+member, m, true)
}

func (b *Binder) bind(src algebra.ParameterSource, hint string, m *algebra.TypeMapping, nullable bool) *algebra.Parameter {
	if m == nil {
		m = algebra.StringMapping
	}
	key := src.Key() + "|" + m.StoreType
	if p, ok := b.byKey[key]; ok {
		return p
	}
	p := &algebra.Parameter{Name: b.mint(hint), Source: src, Mapping: m, Nullable: nullable}
	b.byKey[key] = p
	b.params = append(b.params, p)
	return p
}

// Collection binds a captured primitive collection whose elements are
// compared against values of mapping element. Binding the same
// collection against two different store types fails.
func (b *Binder) Collection(name string, element *algebra.TypeMapping) (*algebra.Parameter, error) {
	if element == nil {
		element = algebra.StringMapping
	}
	src := algebra.ParameterSource{Kind: algebra.CapturedParameter, Name: name}
	if p, ok := b.colls[src.Key()]; ok {
		if !p.Element.Equal(element) {
			return nil, domain.Errorf(domain.ErrConflictingCollectionType, "@"+name, "",
				"elements compared as both %s and %s", p.Element, element)
		}
		return p, nil
	}
	p := &algebra.Parameter{
		Name:       b.mint(name),
		Source:     src,
		Mapping:    algebra.JSONMapping,
		Collection: true,
		Element:    element,
	}
	b.colls[src.Key()] = p
	b.params = append(b.params, p)
	return p, nil
}

// Raw binds the positional argument i of raw SQL. A captured argument reads
// the captured value; otherwise value is fixed.
func (b *Binder) Raw(i int, captured string, value any) *algebra.Parameter {
	if p, ok := b.raw[i]; ok {
		return p
	}
	m := algebra.MapValue(value)
	if m == nil {
		m = algebra.StringMapping
	}
	p := &algebra.Parameter{
		Name:     "p" + strconv.Itoa(i),
		Source:   algebra.ParameterSource{Kind: algebra.RawParameter, Name: captured, Index: i},
		Mapping:  m,
		Nullable: true,
		Value:    value,
	}
	b.raw[i] = p
	b.params = append(b.params, p)
	return p
}

func (b *Binder) mint(hint string) string {
	n := b.next
	b.next++
	return Name(hint, n)
}

// Parameters returns the minted parameters in creation order.
func (b *Binder) Parameters() []*algebra.Parameter {
	out := make([]*algebra.Parameter, len(b.params))
	copy(out, b.params)
	return out
}

// Len returns the number of minted parameters.
func (b *Binder) Len() int {
	return len(b.params)
}
