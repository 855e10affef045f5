package translator

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
)

// shape describes what a query element is in terms of SQL expressions. The
// set of shapes is closed.
type shape interface {
	shapeNode()
}

// reader reads a stored column of the table an entity lives in.
type reader func(name string, nullable bool, m *algebra.TypeMapping) algebra.SQLExpr

// entityShape is an entity read from a table of sel.
type entityShape struct {
	entity *model.EntityType
	// table is the source the columns come from; navigations are memoized
	// per table.
	table    algebra.TableSource
	sel      *algebra.Select
	optional bool
	read     reader
	// id separates entities that share a derived table in the join memo.
	id        int
	path      navigation.Path
	includes  *navigation.IncludeTree
	versioned bool
}

// property reads a scalar property. Properties declared below the
// hierarchy root live in nullable shared columns.
func (e *entityShape) property(p *model.Property) algebra.SQLExpr {
	root := e.entity.Root()
	nullable := p.Nullable || root.DeclaringType(p) != root
	return e.read(p.Column, nullable, algebra.MapProperty(p))
}

// keys returns the key expressions of the entity.
func (e *entityShape) keys() []algebra.SQLExpr {
	var out []algebra.SQLExpr
	for _, k := range e.entity.KeyProperties() {
		out = append(out, e.property(k))
	}
	return out
}

// ownedShape is an owned value: table-split columns of its owner, a JSON
// document or the current element of a JSON table.
type ownedShape struct {
	nav *model.OwnedNavigation
	typ *model.OwnedType
	// prop reads a property of the owned value.
	prop func(*model.Property) algebra.SQLExpr
	// sub reads a nested owned navigation.
	sub func(*model.OwnedNavigation) (shape, error)
	// doc reads the whole value as JSON; nil for table splitting.
	doc func() algebra.SQLExpr
	// order reads the element position of a keyed JSON table element.
	order func() algebra.SQLExpr
	// owner is the entity whose table a table-split value lives in.
	owner *entityShape
}

// ownedCollectionShape is an owned JSON collection not yet expanded to rows.
type ownedCollectionShape struct {
	nav  *model.OwnedNavigation
	doc  func() algebra.SQLExpr
	path []algebra.PathSegment
	// from is the table the document is read from.
	from algebra.TableSource
}

// scalarShape is a single value. prop is set when the value is a
// property read as is.
type scalarShape struct {
	expr algebra.SQLExpr
	prop *model.Property
}

// recordShape is an anonymous projection.
type recordShape struct {
	names   []string
	members []shape
}

// member returns the named member, or nil.
func (r *recordShape) member(name string) shape {
	for i, n := range r.names {
		if n == name {
			return r.members[i]
		}
	}
	return nil
}

// navCollectionShape is a collection navigation of an entity.
type navCollectionShape struct {
	owner *entityShape
	nav   *model.Navigation
}

// collectionShape is a collection-valued subquery translated when it is
// consumed.
type collectionShape struct {
	query expr.Query
	env   env
}

// singleShape is one element of a subquery, translated when it is consumed.
type singleShape struct {
	// query ends with an element terminal.
	query *expr.Terminal
	env   env
}

// groupingShape is the result of GroupBy: a key and the elements sharing it.
type groupingShape struct {
	key     shape
	element shape
	sel     *algebra.Select
}

func (*entityShape) shapeNode()          {}
func (*ownedShape) shapeNode()           {}
func (*ownedCollectionShape) shapeNode() {}
func (*scalarShape) shapeNode()          {}
func (*recordShape) shapeNode()          {}
func (*navCollectionShape) shapeNode()   {}
func (*collectionShape) shapeNode()      {}
func (*singleShape) shapeNode()          {}
func (*groupingShape) shapeNode()        {}

// env binds lambda parameters to shapes.
type env map[string]shape

// with returns a copy of e with name bound to s.
func (e env) with(name string, s shape) env {
	out := make(env, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[name] = s
	return out
}

func tableReader(t algebra.TableSource, optional bool) reader {
	return func(name string, nullable bool, m *algebra.TypeMapping) algebra.SQLExpr {
		return &algebra.Column{Table: t, Name: name, Nullable: nullable || optional, Mapping: m}
	}
}

// remap rewrites s to read through the outer select of pd.
func remap(s shape, pd *algebra.Pushdown) shape {
	return remapOptional(s, pd, false)
}

// remapOptional is remap for a derived table on the optional side of a join.
func remapOptional(s shape, pd *algebra.Pushdown, optional bool) shape {
	mapExpr := func(e algebra.SQLExpr, name string) algebra.SQLExpr {
		return nullableIf(pd.MapNamed(e, name), optional)
	}
	switch n := s.(type) {
	case *entityShape:
		inner := n.read
		out := *n
		out.table = pd.Table
		out.sel = pd.Outer
		out.optional = n.optional || optional
		out.read = func(name string, nullable bool, m *algebra.TypeMapping) algebra.SQLExpr {
			return mapExpr(inner(name, nullable, m), name)
		}
		return &out
	case *ownedShape:
		out := *n
		prop, sub, doc, order := n.prop, n.sub, n.doc, n.order
		out.prop = func(p *model.Property) algebra.SQLExpr { return mapExpr(prop(p), p.Name) }
		out.sub = func(nav *model.OwnedNavigation) (shape, error) {
			s, err := sub(nav)
			if err != nil {
				return nil, err
			}
			return remapOptional(s, pd, optional), nil
		}
		if doc != nil {
			out.doc = func() algebra.SQLExpr { return mapExpr(doc(), n.nav.Name) }
		}
		if order != nil {
			out.order = func() algebra.SQLExpr { return mapExpr(order(), "key") }
		}
		if n.owner != nil {
			out.owner = remapOptional(n.owner, pd, optional).(*entityShape)
		}
		return &out
	case *ownedCollectionShape:
		out := *n
		doc := n.doc
		out.doc = func() algebra.SQLExpr { return mapExpr(doc(), n.nav.Name) }
		out.from = pd.Table
		return &out
	case *scalarShape:
		name := "c"
		if n.prop != nil {
			name = n.prop.Name
		}
		return &scalarShape{expr: mapExpr(n.expr, name), prop: n.prop}
	case *recordShape:
		out := &recordShape{names: n.names, members: make([]shape, len(n.members))}
		for i, m := range n.members {
			if sc, ok := m.(*scalarShape); ok && sc.prop == nil {
				out.members[i] = &scalarShape{expr: mapExpr(sc.expr, n.names[i])}
				continue
			}
			out.members[i] = remapOptional(m, pd, optional)
		}
		return out
	case *navCollectionShape:
		return &navCollectionShape{owner: remapOptional(n.owner, pd, optional).(*entityShape), nav: n.nav}
	case *collectionShape:
		return &collectionShape{query: n.query, env: remapEnv(n.env, pd, optional)}
	case *singleShape:
		return &singleShape{query: n.query, env: remapEnv(n.env, pd, optional)}
	case *groupingShape:
		return &groupingShape{key: remapOptional(n.key, pd, optional), element: remapOptional(n.element, pd, optional), sel: pd.Outer}
	}
	return s
}

func remapEnv(e env, pd *algebra.Pushdown, optional bool) env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = remapOptional(v, pd, optional)
	}
	return out
}

func nullableIf(e algebra.SQLExpr, nullable bool) algebra.SQLExpr {
	if !nullable {
		return e
	}
	if c, ok := e.(*algebra.Column); ok && !c.Nullable {
		cp := *c
		cp.Nullable = true
		return &cp
	}
	return e
}

// touch reads every column of s so that a pushdown projects them in a
// stable order.
func touch(s shape) {
	switch n := s.(type) {
	case *entityShape:
		for _, p := range n.entity.ColumnProperties() {
			n.property(p)
		}
		for _, o := range n.entity.OwnedInHierarchy() {
			if sh, err := ownedOf(n, o); err == nil {
				touch(sh)
			}
		}
	case *ownedShape:
		if n.doc != nil {
			n.doc()
			return
		}
		for _, p := range n.typ.Properties {
			n.prop(p)
		}
		for _, o := range n.typ.Owned {
			if sh, err := n.sub(o); err == nil {
				touch(sh)
			}
		}
	case *ownedCollectionShape:
		n.doc()
	case *recordShape:
		for _, m := range n.members {
			touch(m)
		}
	case *groupingShape:
		touch(n.key)
		touch(n.element)
	}
}

// ownedOf reads the owned navigation nav of entity e.
func ownedOf(e *entityShape, nav *model.OwnedNavigation) (shape, error) {
	if nav.Storage == model.StorageTableSplit {
		return tableSplit(e, nav, nav.Column), nil
	}
	doc := func() algebra.SQLExpr {
		return e.read(nav.Column, e.optional || !nav.Required, algebra.JSONMapping)
	}
	if nav.Collection {
		return &ownedCollectionShape{nav: nav, doc: doc, from: e.table}, nil
	}
	return jsonOwned(nav, doc, nil, e.table), nil
}

func tableSplit(owner *entityShape, nav *model.OwnedNavigation, prefix string) *ownedShape {
	return &ownedShape{
		nav:   nav,
		typ:   nav.Type,
		owner: owner,
		prop: func(p *model.Property) algebra.SQLExpr {
			return owner.read(prefix+"_"+p.Column, p.Nullable || !nav.Required, algebra.MapProperty(p))
		},
		sub: func(n *model.OwnedNavigation) (shape, error) {
			return tableSplit(owner, n, prefix+"_"+n.Column), nil
		},
	}
}

// jsonOwned reads an owned reference at path inside the document read by doc.
func jsonOwned(nav *model.OwnedNavigation, doc func() algebra.SQLExpr, path []algebra.PathSegment, from algebra.TableSource) *ownedShape {
	return &ownedShape{
		nav: nav,
		typ: nav.Type,
		prop: func(p *model.Property) algebra.SQLExpr {
			return jsonmap.Scalar(doc(), path, p, true)
		},
		sub: func(n *model.OwnedNavigation) (shape, error) {
			sub := jsonmap.Key(path, n.JSONKey())
			if n.Collection {
				return &ownedCollectionShape{nav: n, doc: doc, path: sub, from: from}, nil
			}
			return jsonOwned(n, doc, sub, from), nil
		},
		doc: func() algebra.SQLExpr {
			return jsonmap.Document(doc(), path, true)
		},
	}
}

// jsonElement reads the current element of an expanded owned JSON
// collection.
func jsonElement(nav *model.OwnedNavigation, t *algebra.JSONTableExpr) *ownedShape {
	s := &ownedShape{
		nav: nav,
		typ: nav.Type,
		prop: func(p *model.Property) algebra.SQLExpr {
			return jsonmap.Element(t, p)
		},
		sub: func(n *model.OwnedNavigation) (shape, error) {
			doc := func() algebra.SQLExpr { return jsonmap.ElementDocument(t, n) }
			if n.Collection {
				return &ownedCollectionShape{nav: n, doc: doc, from: t}, nil
			}
			return jsonOwned(n, doc, nil, t), nil
		},
	}
	if jsonmap.IsKeyed(t) {
		s.doc = func() algebra.SQLExpr { return jsonmap.ElementValue(t) }
		s.order = func() algebra.SQLExpr { return jsonmap.ElementOrder(t) }
	}
	return s
}
