package shaper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
)

// Pass materializes the results of one execution. Rows of the main
// command go through Row and Flush; rows of split commands through
// SplitRow once the main command is exhausted. A Pass is not safe for
// concurrent use.
type Pass struct {
	s      *Shaper
	ids    *IdentityMap
	reader *jsonmap.Reader

	current    any
	currentKey string
	hasCurrent bool

	colls      map[collKey]map[string]int
	parents    [][]parentRef
	registered []map[*Object]bool
	splitPos   []int
}

type collKey struct {
	owner any
	plan  any
}

type parentRef struct {
	key   string
	owner *Object
	plan  *EntityPlan
	slot  *CollectionSlot
}

// NewPass starts a materialization pass. ids holds the entities of a
// tracking client; nil resolves identity within this pass only.
func NewPass(ctx context.Context, s *Shaper, ids *IdentityMap, logger *slog.Logger) *Pass {
	if ids == nil {
		ids = NewIdentityMap()
	}
	p := &Pass{
		s:          s,
		ids:        ids,
		reader:     jsonmap.NewReader(ctx, logger),
		colls:      make(map[collKey]map[string]int),
		parents:    make([][]parentRef, len(s.Splits)),
		registered: make([]map[*Object]bool, len(s.Splits)),
		splitPos:   make([]int, len(s.Splits)),
	}
	for i := range p.registered {
		p.registered[i] = make(map[*Object]bool)
	}
	return p
}

// Reader returns the JSON reader of the pass.
func (p *Pass) Reader() *jsonmap.Reader {
	return p.reader
}

// Row consumes one row of the main command. It returns a result when the
// row completes the previous one.
func (p *Pass) Row(values []any) (any, bool, error) {
	if len(p.s.Group) == 0 {
		v, err := p.build(values, p.s.Root, nil, nil)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	key := rowKey(pick(values, p.s.Group))
	if p.hasCurrent && key == p.currentKey {
		v, err := p.build(values, p.s.Root, p.current, nil)
		if err != nil {
			return nil, false, err
		}
		p.current = v
		return nil, false, nil
	}
	prev, had := p.current, p.hasCurrent
	v, err := p.build(values, p.s.Root, nil, nil)
	if err != nil {
		return nil, false, err
	}
	p.current, p.currentKey, p.hasCurrent = v, key, true
	return prev, had, nil
}

// Flush returns the result still being built, if any.
func (p *Pass) Flush() (any, bool) {
	if !p.hasCurrent {
		return nil, false
	}
	v := p.current
	p.current, p.hasCurrent = nil, false
	return v, true
}

// SplitRow consumes one row of split command k. Rows must be ordered like
// their owners; a row whose owner is not at or after the current one
// fails with ErrSplitQueryOrdering.
func (p *Pass) SplitRow(k int, values []any) error {
	sp := p.s.Splits[k]
	parents := p.parents[k]
	pos := p.splitPos[k]
	if pos >= len(parents) {
		return fmt.Errorf("%w: split command %d has rows after its last owner", domain.ErrSplitQueryOrdering, k)
	}
	key, err := p.parentKey(parents[pos].plan, sp, values)
	if err != nil {
		return err
	}
	for pos < len(parents) && parents[pos].key != key {
		pos++
	}
	if pos == len(parents) {
		return fmt.Errorf("%w: no owner with key %q at or after position %d", domain.ErrSplitQueryOrdering, key, p.splitPos[k])
	}
	p.splitPos[k] = pos
	ref := parents[pos]
	return p.addElement(values, ref.owner, ref.slot, sp.Element, sp.Key)
}

func (p *Pass) parentKey(owner *EntityPlan, sp *Split, values []any) (string, error) {
	if len(sp.ParentKey) != len(owner.Key) {
		return "", fmt.Errorf("%w: split key has %d columns, owner key %d", domain.ErrSplitQueryOrdering, len(sp.ParentKey), len(owner.Key))
	}
	keyVals := make([]any, len(owner.Key))
	for i, slot := range owner.Key {
		v, err := model.Coerce(slot.Property.Kind, values[sp.ParentKey[i]])
		if err != nil {
			return "", err
		}
		keyVals[i] = v
	}
	return identityKey(owner.Entity.Root(), keyVals), nil
}

// Finish applies the cardinality of the query to the collected results.
func Finish(s *Shaper, results []any) (any, error) {
	switch s.Cardinality {
	case FirstResult:
		if len(results) == 0 {
			return nil, domain.ErrNoElements
		}
		return results[0], nil
	case FirstOrDefaultResult, ScalarResult:
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	case SingleResult, SingleOrDefaultResult:
		switch {
		case len(results) > 1:
			return nil, domain.ErrMoreThanOneElement
		case len(results) == 1:
			return results[0], nil
		case s.Cardinality == SingleResult:
			return nil, domain.ErrNoElements
		}
		return nil, nil
	}
	return results, nil
}

func (p *Pass) build(values []any, plan Plan, existing any, owner any) (any, error) {
	switch n := plan.(type) {
	case *ScalarPlan:
		if existing != nil {
			return existing, nil
		}
		return model.Coerce(n.Kind, values[n.Ordinal])
	case *ConstantPlan:
		return n.Value, nil
	case *AggregatePlan:
		return aggregate(n, values[n.Ordinal])
	case *DocumentPlan:
		if existing != nil {
			return existing, nil
		}
		return p.document(n, values[n.Ordinal])
	case *EntityPlan:
		o, err := p.entity(values, n)
		if o == nil || err != nil {
			return nil, err
		}
		return o, nil
	case *RecordPlan:
		rec, _ := existing.(*Record)
		if rec == nil {
			rec = &Record{Names: n.Names, Values: make([]any, len(n.Members))}
		}
		for i, m := range n.Members {
			v, err := p.build(values, m, rec.Values[i], rec)
			if err != nil {
				return nil, err
			}
			rec.Values[i] = v
		}
		return rec, nil
	case *CollectionPlan:
		list, _ := existing.([]any)
		if list == nil {
			list = []any{}
		}
		if n.Split >= 0 {
			return list, nil
		}
		key := pick(values, n.Key)
		if allNil(key) {
			return list, nil
		}
		state := p.state(owner, n)
		k := rowKey(key)
		if i, ok := state[k]; ok {
			v, err := p.build(values, n.Element, list[i], nil)
			if err != nil {
				return nil, err
			}
			list[i] = v
			return list, nil
		}
		v, err := p.build(values, n.Element, nil, nil)
		if err != nil {
			return nil, err
		}
		state[k] = len(list)
		return append(list, v), nil
	case nil:
		return nil, nil
	}
	panic(fmt.Sprintf("shaper: unhandled plan %T", plan))
}

func (p *Pass) state(owner, plan any) map[string]int {
	k := collKey{owner: owner, plan: plan}
	s, ok := p.colls[k]
	if !ok {
		s = make(map[string]int)
		p.colls[k] = s
	}
	return s
}

func (p *Pass) entity(values []any, plan *EntityPlan) (*Object, error) {
	keyVals := make([]any, 0, len(plan.Key)+1)
	for _, slot := range plan.Key {
		v, err := model.Coerce(slot.Property.Kind, values[slot.Ordinal])
		if err != nil {
			return nil, fmt.Errorf("key %s.%s: %w", plan.Entity.Name, slot.Property.Name, err)
		}
		if v == nil {
			return nil, nil
		}
		keyVals = append(keyVals, v)
	}

	concrete := plan.Entity
	if plan.Discriminator >= 0 {
		raw, err := model.Coerce(model.KindString, values[plan.Discriminator])
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		if concrete = plan.Entity.ByDiscriminator(raw.(string)); concrete == nil {
			return nil, fmt.Errorf("%w: %q for %s", domain.ErrUnknownDiscriminator, raw, plan.Entity.Name)
		}
	}
	if plan.Version >= 0 {
		v, err := model.Coerce(model.KindDateTime, values[plan.Version])
		if err != nil {
			return nil, err
		}
		keyVals = append(keyVals, v)
	}

	var ferr error
	obj, created := p.ids.lookup(identityKey(plan.Entity.Root(), keyVals), func() *Object {
		o := &Object{Type: concrete, Values: make(map[string]any)}
		ferr = p.fill(o, values, plan)
		return o
	})
	if ferr != nil {
		return nil, ferr
	}
	if created {
		for _, slot := range plan.Collections {
			if _, ok := obj.Values[slot.Name]; !ok {
				obj.Values[slot.Name] = []*Object{}
			}
		}
	}
	for _, slot := range plan.Collections {
		if slot.Split >= 0 && !p.registered[slot.Split][obj] {
			p.registered[slot.Split][obj] = true
			p.parents[slot.Split] = append(p.parents[slot.Split], parentRef{
				key: identityKey(plan.Entity.Root(), keyVals[:len(plan.Key)]), owner: obj, plan: plan, slot: slot,
			})
		}
	}

	for _, ref := range plan.References {
		v, err := p.entity(values, ref.Entity)
		if err != nil {
			return nil, err
		}
		if cur, ok := obj.Values[ref.Name].(*Object); !ok || cur == nil {
			obj.Values[ref.Name] = v
		}
	}
	for _, slot := range plan.Collections {
		if slot.Split >= 0 {
			continue
		}
		if err := p.addElement(values, obj, slot, slot.Element, slot.Key); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (p *Pass) addElement(values []any, owner *Object, slot *CollectionSlot, element Plan, key []int) error {
	if len(key) > 0 && allNil(pick(values, key)) {
		return nil
	}
	v, err := p.build(values, element, nil, owner)
	if err != nil || v == nil {
		return err
	}
	child, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("collection %s: element is %T, not an entity", slot.Name, v)
	}
	list, _ := owner.Values[slot.Name].([]*Object)
	for _, c := range list {
		if c == child {
			return nil
		}
	}
	owner.Values[slot.Name] = append(list, child)
	return nil
}

func (p *Pass) fill(o *Object, values []any, plan *EntityPlan) error {
	for _, slot := range plan.Key {
		v, err := model.Coerce(slot.Property.Kind, values[slot.Ordinal])
		if err != nil {
			return err
		}
		o.Values[slot.Property.Name] = v
	}
	for _, slot := range plan.Properties {
		if o.Type.FindProperty(slot.Property.Name) != slot.Property {
			continue
		}
		v, err := p.property(slot.Property, values[slot.Ordinal])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", o.Type.Name, slot.Property.Name, err)
		}
		o.Values[slot.Property.Name] = v
	}
	for _, slot := range plan.Owned {
		v, err := p.owned(slot, values)
		if err != nil {
			return err
		}
		o.Values[slot.Navigation.Name] = v
	}
	for _, doc := range plan.Documents {
		v, err := p.document(&DocumentPlan{Owned: doc.Navigation.Type, Collection: doc.Navigation.Collection}, values[doc.Ordinal])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", o.Type.Name, doc.Navigation.Name, err)
		}
		o.Values[doc.Navigation.Name] = v
	}
	return nil
}

func (p *Pass) property(prop *model.Property, raw any) (any, error) {
	if prop.Collection {
		items, err := p.reader.Primitives(raw, prop)
		if items == nil || err != nil {
			return nil, err
		}
		return items, nil
	}
	return model.Coerce(prop.Kind, raw)
}

func (p *Pass) owned(slot *OwnedSlot, values []any) (any, error) {
	out := make(map[string]any, len(slot.Properties)+len(slot.Owned))
	present := false
	for _, ps := range slot.Properties {
		v, err := p.property(ps.Property, values[ps.Ordinal])
		if err != nil {
			return nil, err
		}
		present = present || v != nil
		out[ps.Property.Name] = v
	}
	for _, nested := range slot.Owned {
		v, err := p.owned(nested, values)
		if err != nil {
			return nil, err
		}
		present = present || v != nil
		out[nested.Navigation.Name] = v
	}
	if !present && !slot.Navigation.Required {
		return nil, nil
	}
	return out, nil
}

func (p *Pass) document(n *DocumentPlan, raw any) (any, error) {
	switch {
	case n.Owned == nil:
		items, err := p.reader.Primitives(raw, n.Element)
		if items == nil || err != nil {
			return nil, err
		}
		return items, nil
	case n.Collection:
		items, err := p.reader.OwnedCollection(raw, n.Owned)
		if items == nil || err != nil {
			return nil, err
		}
		return items, nil
	}
	v, err := p.reader.Owned(raw, n.Owned)
	if v == nil || err != nil {
		return nil, err
	}
	return v, nil
}

func aggregate(n *AggregatePlan, raw any) (any, error) {
	switch n.Op {
	case expr.Any, expr.All:
		v, err := model.Coerce(model.KindBool, raw)
		if v == nil || err != nil {
			return false, err
		}
		return v, nil
	case expr.Count, expr.LongCount:
		v, err := model.Coerce(model.KindLong, raw)
		if v == nil || err != nil {
			return int64(0), err
		}
		return v, nil
	case expr.Average:
		v, err := model.Coerce(model.KindDouble, raw)
		if v == nil && err == nil && !n.Nullable {
			return nil, domain.ErrNoElements
		}
		return v, err
	}
	v, err := model.Coerce(n.Kind, raw)
	if v != nil || err != nil {
		return v, err
	}
	switch {
	case n.Op == expr.Sum && n.Kind.IsNumeric():
		return model.Coerce(n.Kind, 0)
	case n.Nullable:
		return nil, nil
	}
	return nil, domain.ErrNoElements
}

func pick(values []any, ordinals []int) []any {
	out := make([]any, len(ordinals))
	for i, o := range ordinals {
		out[i] = values[o]
	}
	return out
}

func allNil(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}
