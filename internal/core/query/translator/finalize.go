package translator

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
)

// step walks from a re-translated root shape to the owner of a split
// collection, joining into q as needed.
type step func(q *query, sh shape) (shape, error)

// finalizer projects the shape of a root query and builds its plan.
type finalizer struct {
	t   *translation
	sel *algebra.Select
	// tail orders the rows of joined collections after the root orderings.
	tail   []algebra.Ordering
	fanned bool
	// splits are shared with the finalizers of split commands.
	splits *[]splitCommand
}

type splitCommand struct {
	sel   *algebra.Select
	split *shaper.Split
}

// finalize projects q and builds the result plan. Collections joined into
// the root fan rows out; the root is then ordered by its identifier and
// consecutive rows with the same identifier build one result.
func (t *translation) finalize(q *query, card shaper.Cardinality) (*Result, error) {
	if fansOut(q.shape, t.split) && (q.sel.IsPaged() || q.sel.Distinct) {
		t.pushdown(q)
	}
	var splits []splitCommand
	f := &finalizer{t: t, sel: q.sel, splits: &splits}
	ids := q.sel.Identifier

	if g, ok := q.shape.(*groupingShape); ok {
		root, group, err := f.grouping(g, ids)
		if err != nil {
			return nil, err
		}
		return f.result(root, group, card)
	}
	user := append([]algebra.Ordering(nil), q.sel.Orderings...)
	root, err := f.plan(q.shape, nil, t.split)
	if err != nil {
		return nil, err
	}
	if !f.fanned && len(splits) == 0 {
		return f.result(root, nil, card)
	}
	if len(ids) == 0 {
		return nil, domain.Errorf(domain.ErrInsufficientOuterIdentity, "collection", entityOf(q.shape), "the query result has no key")
	}
	q.sel.Orderings = user
	for _, id := range ids {
		q.sel.AppendOrdering(algebra.Ordering{Expr: id})
	}
	for _, o := range f.tail {
		q.sel.AppendOrdering(o)
	}
	var group []int
	if f.fanned {
		group = f.ordinals(ids)
	}
	return f.result(root, group, card)
}

func (f *finalizer) result(root shaper.Plan, group []int, card shaper.Cardinality) (*Result, error) {
	res := &Result{
		Select: f.sel,
		Shaper: &shaper.Shaper{Root: root, Group: group, Cardinality: card},
	}
	sels := []*algebra.Select{f.sel}
	for _, sc := range *f.splits {
		res.Splits = append(res.Splits, sc.sel)
		res.Shaper.Splits = append(res.Shaper.Splits, sc.split)
		sels = append(sels, sc.sel)
	}
	if err := check(sels...); err != nil {
		return nil, err
	}
	return res, nil
}

// ordinal projects e and returns its position.
func (f *finalizer) ordinal(e algebra.SQLExpr, name string) int {
	item := f.sel.ProjectUnique(e, name)
	for i, p := range f.sel.Projection {
		if p == item {
			return i
		}
	}
	return -1
}

func (f *finalizer) ordinals(es []algebra.SQLExpr) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = f.ordinal(e, "")
	}
	return out
}

// plan builds the plan of sh. chain leads from the root to sh for split
// commands; split is false below projected collections.
func (f *finalizer) plan(sh shape, chain []step, split bool) (shaper.Plan, error) {
	switch s := sh.(type) {
	case *scalarShape:
		return f.scalar(s), nil
	case *entityShape:
		var nodes []*navigation.IncludeNode
		if s.includes != nil {
			nodes = s.includes.Roots()
			f.t.usedIncludes[s.includes] = true
		}
		return f.entity(s, nodes, chain, split, -1)
	case *ownedShape:
		return f.owned(s), nil
	case *ownedCollectionShape:
		return &shaper.DocumentPlan{Ordinal: f.ordinal(s.doc(), s.nav.Name), Owned: s.nav.Type, Collection: true}, nil
	case *recordShape:
		rec := &shaper.RecordPlan{Names: s.names}
		for i, m := range s.members {
			name := s.names[i]
			p, err := f.plan(m, appendStep(chain, func(_ *query, sh shape) (shape, error) {
				return f.t.memberOf(sh, name)
			}), split)
			if err != nil {
				return nil, err
			}
			rec.Members = append(rec.Members, p)
		}
		return rec, nil
	case *navCollectionShape, *collectionShape:
		return f.collection(s)
	case *singleShape:
		return f.single(s)
	case *groupingShape:
		return nil, domain.Errorf(domain.ErrUnsupported, "GroupBy", "", "a grouping can only be projected as the query result")
	}
	return nil, domain.Errorf(domain.ErrUnsupported, "projection", "", "cannot project %s", describeShape(sh))
}

func (f *finalizer) scalar(s *scalarShape) shaper.Plan {
	if c, ok := s.expr.(*algebra.Constant); ok {
		return &shaper.ConstantPlan{Value: c.Value}
	}
	name := ""
	if s.prop != nil {
		name = s.prop.Name
		if s.prop.Collection {
			return &shaper.DocumentPlan{Ordinal: f.ordinal(s.expr, name), Element: s.prop}
		}
	}
	m := algebra.MappingOf(s.expr)
	kind := kindOf(m)
	if s.prop != nil {
		kind = s.prop.Kind
	}
	return &shaper.ScalarPlan{Ordinal: f.ordinal(s.expr, name), Kind: kind, Nullable: algebra.IsNullable(s.expr)}
}

// owned projects a standalone owned value: a document or a record of its
// table-split columns.
func (f *finalizer) owned(s *ownedShape) shaper.Plan {
	if s.doc != nil {
		return &shaper.DocumentPlan{Ordinal: f.ordinal(s.doc(), s.nav.Name), Owned: s.typ}
	}
	rec := &shaper.RecordPlan{}
	for _, p := range s.typ.Properties {
		rec.Names = append(rec.Names, p.Name)
		rec.Members = append(rec.Members, &shaper.ScalarPlan{Ordinal: f.ordinal(s.prop(p), ""), Kind: p.Kind, Nullable: true})
	}
	for _, n := range s.typ.Owned {
		sub, err := s.sub(n)
		if err != nil {
			continue
		}
		if o, ok := sub.(*ownedShape); ok {
			rec.Names = append(rec.Names, n.Name)
			rec.Members = append(rec.Members, f.owned(o))
		}
	}
	return rec
}

// entity builds the plan of an entity with its owned values and includes.
// splitOwner is the split command reading the entity, or -1 for the root
// command.
func (f *finalizer) entity(s *entityShape, nodes []*navigation.IncludeNode, chain []step, split bool, splitOwner int) (*shaper.EntityPlan, error) {
	e := s.entity
	plan := &shaper.EntityPlan{Entity: e, Discriminator: -1, Version: -1, Optional: s.optional}
	for _, k := range e.KeyProperties() {
		plan.Key = append(plan.Key, shaper.PropertySlot{Property: k, Ordinal: f.ordinal(s.property(k), k.Column)})
	}
	if d := e.Discriminator(); d != nil {
		plan.Discriminator = f.ordinal(s.property(d), d.Column)
	}
	if p := e.PeriodStart(); p != nil && s.versioned {
		plan.Version = f.ordinal(s.property(p), p.Column)
	}
	isKey := make(map[*model.Property]bool)
	for _, k := range e.KeyProperties() {
		isKey[k] = true
	}
	for _, p := range e.ColumnProperties() {
		if isKey[p] || p.Shadow {
			continue
		}
		plan.Properties = append(plan.Properties, shaper.PropertySlot{Property: p, Ordinal: f.ordinal(s.property(p), p.Column)})
	}
	for _, o := range e.OwnedInHierarchy() {
		sh, err := ownedOf(s, o)
		if err != nil {
			return nil, err
		}
		switch n := sh.(type) {
		case *ownedShape:
			if n.doc != nil {
				plan.Documents = append(plan.Documents, shaper.DocumentSlot{Navigation: o, Ordinal: f.ordinal(n.doc(), o.Column)})
				continue
			}
			plan.Owned = append(plan.Owned, f.ownedSlot(n))
		case *ownedCollectionShape:
			plan.Documents = append(plan.Documents, shaper.DocumentSlot{Navigation: o, Ordinal: f.ordinal(n.doc(), o.Column)})
		}
	}

	for _, node := range nodes {
		nav := findNavigation(e, node.Name)
		if nav == nil {
			return nil, domain.Errorf(domain.ErrUnknownMember, "Include", e.Name, "no navigation %s", node.Name)
		}
		if !nav.Collection {
			target, err := f.t.reference(s, nav)
			if err != nil {
				return nil, err
			}
			child, err := f.entity(target, node.Children, appendStep(chain, referenceStep(f.t, nav)), split, splitOwner)
			if err != nil {
				return nil, err
			}
			plan.References = append(plan.References, shaper.ReferenceSlot{Name: nav.Name, Entity: child})
			continue
		}
		var (
			slot *shaper.CollectionSlot
			err  error
		)
		if split {
			slot, err = f.splitInclude(s, nav, node, chain, splitOwner)
		} else {
			slot, err = f.joinInclude(s, nav, node)
		}
		if err != nil {
			return nil, err
		}
		plan.Collections = append(plan.Collections, slot)
	}
	return plan, nil
}

func (f *finalizer) ownedSlot(o *ownedShape) *shaper.OwnedSlot {
	slot := &shaper.OwnedSlot{Navigation: o.nav}
	for _, p := range o.typ.Properties {
		slot.Properties = append(slot.Properties, shaper.PropertySlot{Property: p, Ordinal: f.ordinal(o.prop(p), "")})
	}
	for _, n := range o.typ.Owned {
		sub, err := o.sub(n)
		if err != nil {
			continue
		}
		if so, ok := sub.(*ownedShape); ok && so.doc == nil {
			slot.Owned = append(slot.Owned, f.ownedSlot(so))
		}
	}
	return slot
}

// includeQuery selects the elements of an included collection, applying
// the operators of a filtered include.
func (t *translation) includeQuery(owner *entityShape, nav *model.Navigation, filter expr.Query) (*query, error) {
	if filter == nil {
		return t.navCollection(owner, nav)
	}
	const param = "$owner"
	q := reroot(filter, &expr.CollectionRef{Collection: &expr.Param{Name: param}})
	return t.query(q, env{param: &navCollectionShape{owner: owner, nav: nav}})
}

// reroot replaces the innermost source of a filtered include chain.
func reroot(q, root expr.Query) expr.Query {
	switch n := q.(type) {
	case *expr.Where:
		cp := *n
		cp.Source = reroot(n.Source, root)
		return &cp
	case *expr.OrderBy:
		cp := *n
		cp.Source = reroot(n.Source, root)
		return &cp
	case *expr.Skip:
		cp := *n
		cp.Source = reroot(n.Source, root)
		return &cp
	case *expr.Take:
		cp := *n
		cp.Source = reroot(n.Source, root)
		return &cp
	}
	return root
}

// joinInclude loads an included collection with a LEFT JOIN of the root
// command.
func (f *finalizer) joinInclude(owner *entityShape, nav *model.Navigation, node *navigation.IncludeNode) (*shaper.CollectionSlot, error) {
	child, err := f.t.includeQuery(owner, nav, node.Filter)
	if err != nil {
		return nil, err
	}
	j, err := f.join(child)
	if err != nil {
		return nil, err
	}
	el, ok := j.shape.(*entityShape)
	if !ok {
		return nil, domain.Errorf(domain.ErrInternal, "Include", nav.Target.Name, "included collection is %s", describeShape(j.shape))
	}
	plan, err := f.entity(el, node.Children, nil, false, -1)
	if err != nil {
		return nil, err
	}
	return &shaper.CollectionSlot{Name: nav.Name, Element: plan, Key: f.ordinals(j.identifier), Split: -1}, nil
}

// join joins a collection into the root command and records its orderings.
func (f *finalizer) join(child *query) (*joined, error) {
	j, err := f.t.joinCorrelated(&query{sel: f.sel}, child, true)
	if err != nil {
		return nil, err
	}
	if len(j.identifier) == 0 {
		return nil, domain.Errorf(domain.ErrInsufficientOuterIdentity, "collection", entityOf(child.shape), "collection elements have no key")
	}
	f.fanned = true
	f.tail = append(f.tail, j.orderings...)
	for _, id := range j.identifier {
		f.tail = append(f.tail, algebra.Ordering{Expr: id})
	}
	return j, nil
}

// collection projects a collection-valued member with a LEFT JOIN.
func (f *finalizer) collection(sh shape) (shaper.Plan, error) {
	child, err := f.t.sequence(sh, nil)
	if err != nil {
		return nil, err
	}
	if child.defaultIfEmpty {
		return nil, domain.Errorf(domain.ErrUnsupported, "DefaultIfEmpty", "", "DefaultIfEmpty in a projected collection")
	}
	j, err := f.join(child)
	if err != nil {
		return nil, err
	}
	el, err := f.plan(j.shape, nil, false)
	if err != nil {
		return nil, err
	}
	return &shaper.CollectionPlan{Element: el, Key: f.ordinals(j.identifier), Split: -1}, nil
}

// single projects one element of a subquery, joined with at most one row
// per outer row.
func (f *finalizer) single(s *singleShape) (shaper.Plan, error) {
	q, err := f.t.query(s.query.Source, s.env)
	if err != nil {
		return nil, err
	}
	if err := f.t.limitToElement(q, s.query, s.env); err != nil {
		return nil, err
	}
	q.sel.Limit = &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}
	j, err := f.t.joinCorrelated(&query{sel: f.sel}, q, true)
	if err != nil {
		return nil, err
	}
	return f.plan(j.shape, nil, false)
}

// grouping projects the groups of a final GroupBy: the rows are ordered by
// key and every group collects its elements.
func (f *finalizer) grouping(g *groupingShape, ids []algebra.SQLExpr) (shaper.Plan, []int, error) {
	if len(ids) == 0 {
		return nil, nil, domain.Errorf(domain.ErrInsufficientOuterIdentity, "GroupBy", "", "grouped elements have no key")
	}
	keys, err := keyExprs(g.key)
	if err != nil {
		return nil, nil, err
	}
	user := f.sel.Orderings
	f.sel.Orderings = nil
	for _, k := range keys {
		f.sel.AppendOrdering(algebra.Ordering{Expr: k})
	}
	for _, o := range user {
		f.sel.AppendOrdering(o)
	}
	for _, id := range ids {
		f.sel.AppendOrdering(algebra.Ordering{Expr: id})
	}
	key, err := f.plan(g.key, nil, false)
	if err != nil {
		return nil, nil, err
	}
	el, err := f.plan(g.element, nil, false)
	if err != nil {
		return nil, nil, err
	}
	root := &shaper.RecordPlan{
		Names:   []string{"Key", "Elements"},
		Members: []shaper.Plan{key, &shaper.CollectionPlan{Element: el, Key: f.ordinals(ids), Split: -1}},
	}
	return root, f.ordinals(keys), nil
}

// splitInclude loads an included collection with its own command: the
// root is translated again, the owner reached along chain and the
// collection joined to it. Rows are ordered like the owners.
func (f *finalizer) splitInclude(owner *entityShape, nav *model.Navigation, node *navigation.IncludeNode, chain []step, parent int) (*shaper.CollectionSlot, error) {
	t := f.t
	seen := len(t.includes)
	rq, err := t.translateRoot()
	if err != nil {
		return nil, err
	}
	for _, tree := range t.includes[seen:] {
		t.usedIncludes[tree] = true
	}
	if len(rq.sel.Identifier) == 0 {
		return nil, domain.Errorf(domain.ErrInsufficientOuterIdentity, "split query", owner.entity.Name, "the query result has no key")
	}
	for _, id := range rq.sel.Identifier {
		rq.sel.AppendOrdering(algebra.Ordering{Expr: id})
	}
	if rq.sel.IsPaged() || rq.sel.Distinct {
		t.pushdown(rq)
	}
	sh := rq.shape
	for _, st := range chain {
		if sh, err = st(rq, sh); err != nil {
			return nil, err
		}
	}
	o, ok := sh.(*entityShape)
	if !ok {
		return nil, domain.Errorf(domain.ErrInternal, "split query", owner.entity.Name, "split owner is %s", describeShape(sh))
	}
	child, err := t.includeQuery(o, nav, node.Filter)
	if err != nil {
		return nil, err
	}
	j, err := t.joinCorrelated(rq, child, false)
	if err != nil {
		return nil, err
	}
	if len(j.identifier) == 0 {
		return nil, domain.Errorf(domain.ErrInsufficientOuterIdentity, "split query", nav.Target.Name, "collection elements have no key")
	}
	for _, ord := range j.orderings {
		rq.sel.AppendOrdering(ord)
	}
	for _, id := range j.identifier {
		rq.sel.AppendOrdering(algebra.Ordering{Expr: id})
	}
	el, ok := j.shape.(*entityShape)
	if !ok {
		return nil, domain.Errorf(domain.ErrInternal, "split query", nav.Target.Name, "included collection is %s", describeShape(j.shape))
	}

	idx := len(*f.splits)
	sp := &shaper.Split{Parent: parent}
	*f.splits = append(*f.splits, splitCommand{sel: rq.sel, split: sp})
	sf := &finalizer{t: t, sel: rq.sel, splits: f.splits}
	childChain := appendStep(chain, collectionStep(t, nav, node.Filter))
	if sp.Element, err = sf.entity(el, node.Children, childChain, true, idx); err != nil {
		return nil, err
	}
	sp.Key = sf.ordinals(j.identifier)
	sp.ParentKey = sf.ordinals(o.keys())
	return &shaper.CollectionSlot{Name: nav.Name, Split: idx}, nil
}

func appendStep(chain []step, s step) []step {
	out := make([]step, len(chain), len(chain)+1)
	copy(out, chain)
	return append(out, s)
}

func referenceStep(t *translation, nav *model.Navigation) step {
	return func(_ *query, sh shape) (shape, error) {
		e, ok := sh.(*entityShape)
		if !ok {
			return nil, domain.Errorf(domain.ErrInternal, nav.Name, "", "reference step over %s", describeShape(sh))
		}
		return t.reference(e, nav)
	}
}

// collectionStep inner joins the elements of a split collection so that
// their own collections can be split further.
func collectionStep(t *translation, nav *model.Navigation, filter expr.Query) step {
	return func(q *query, sh shape) (shape, error) {
		e, ok := sh.(*entityShape)
		if !ok {
			return nil, domain.Errorf(domain.ErrInternal, nav.Name, "", "collection step over %s", describeShape(sh))
		}
		child, err := t.includeQuery(e, nav, filter)
		if err != nil {
			return nil, err
		}
		j, err := t.joinCorrelated(q, child, false)
		if err != nil {
			return nil, err
		}
		for _, o := range j.orderings {
			q.sel.AppendOrdering(o)
		}
		for _, id := range j.identifier {
			q.sel.AppendOrdering(algebra.Ordering{Expr: id})
		}
		return j.shape, nil
	}
}

// fansOut reports whether projecting sh joins collections into the root
// command.
func fansOut(sh shape, split bool) bool {
	switch s := sh.(type) {
	case *entityShape:
		if s.includes == nil {
			return false
		}
		return includesFanOut(s.entity, s.includes.Roots(), split)
	case *recordShape:
		for _, m := range s.members {
			if fansOut(m, split) {
				return true
			}
		}
	case *navCollectionShape, *collectionShape:
		return true
	}
	return false
}

func includesFanOut(e *model.EntityType, nodes []*navigation.IncludeNode, split bool) bool {
	for _, n := range nodes {
		nav := findNavigation(e, n.Name)
		if nav == nil {
			continue
		}
		if nav.Collection && !split {
			return true
		}
		if !nav.Collection && includesFanOut(nav.Target, n.Children, split) {
			return true
		}
	}
	return false
}
