package shaper

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/model"
)

// Object is a materialized entity. Values holds scalar properties by name,
// owned values as map[string]any or []map[string]any, references as
// *Object and collections as []*Object.
type Object struct {
	Type   *model.EntityType
	Values map[string]any
}

// Get returns the value of a member.
func (o *Object) Get(name string) any {
	if o == nil {
		return nil
	}
	return o.Values[name]
}

// Collection returns the elements of a collection navigation.
func (o *Object) Collection(name string) []*Object {
	out, _ := o.Get(name).([]*Object)
	return out
}

// Reference returns the entity of a reference navigation.
func (o *Object) Reference(name string) *Object {
	out, _ := o.Get(name).(*Object)
	return out
}

// String renders the object with its scalar members sorted by name.
func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	names := make([]string, 0, len(o.Values))
	for n, v := range o.Values {
		switch v.(type) {
		case *Object, []*Object:
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString(o.Type.Name)
	sb.WriteString("{")
	for i, n := range names {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s:%v", n, o.Values[n])
	}
	sb.WriteString("}")
	return sb.String()
}

// Record is an anonymous projection with ordered members.
type Record struct {
	Names  []string
	Values []any
}

// Get returns the named member, or nil.
func (r *Record) Get(name string) any {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i]
		}
	}
	return nil
}

// Map returns the members as a map.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.Names))
	for i, n := range r.Names {
		out[n] = r.Values[i]
	}
	return out
}

// IdentityMap resolves entities by hierarchy and key. It is safe for
// concurrent use.
type IdentityMap struct {
	mu      sync.Mutex
	objects map[string]*Object
}

// NewIdentityMap creates an empty identity map.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{objects: make(map[string]*Object)}
}

// lookup returns the entity stored under key, or stores the one created by
// create. created reports whether create ran.
func (m *IdentityMap) lookup(key string, create func() *Object) (o *Object, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects[key]; ok {
		return o, false
	}
	o = create()
	m.objects[key] = o
	return o, true
}

// Len returns the number of entities held.
func (m *IdentityMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Clear forgets every entity.
func (m *IdentityMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = make(map[string]*Object)
}

// identityKey encodes a hierarchy root and key values.
func identityKey(root *model.EntityType, values []any) string {
	var sb strings.Builder
	sb.WriteString(root.Name)
	for _, v := range values {
		sb.WriteByte(0)
		writeKeyValue(&sb, v)
	}
	return sb.String()
}

func writeKeyValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case time.Time:
		sb.WriteString(x.UTC().Format(time.RFC3339Nano))
	case uuid.UUID:
		sb.WriteString(x.String())
	case []byte:
		fmt.Fprintf(sb, "%x", x)
	default:
		fmt.Fprintf(sb, "%T:%v", v, v)
	}
}

func rowKey(values []any) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(0)
		}
		writeKeyValue(&sb, v)
	}
	return sb.String()
}
