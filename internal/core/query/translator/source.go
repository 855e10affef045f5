package translator

import (
	"reflect"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
	"github.com/satishbabariya/relq/internal/core/query/params"
)

func (t *translation) source(n *expr.Source) (*query, error) {
	e, err := t.model.EntitySet(n.Name)
	if err != nil {
		return nil, domain.Errorf(domain.ErrUnknownMember, n.Name, "", "no entity set %s", n.Name)
	}
	return t.entityQuery(e, tableFor(e, nil), t.rootPath(e), n.FilterScope, nil)
}

// fromSQL roots the query at raw SQL. Arguments become positional
// parameters; captured arguments read their value per execution.
func (t *translation) fromSQL(n *expr.FromSQL) (*query, error) {
	e, err := t.model.EntitySet(n.Name)
	if err != nil {
		return nil, domain.Errorf(domain.ErrUnknownMember, "FromSql", n.Name, "no entity set %s", n.Name)
	}
	holes, err := params.Placeholders(n.SQL)
	if err != nil {
		return nil, domain.Errorf(domain.ErrUnsupported, "FromSql", e.Name, "%v", err)
	}
	for _, i := range holes {
		if i >= len(n.Args) {
			return nil, domain.Errorf(domain.ErrUnsupported, "FromSql", e.Name, "placeholder {%d} has no argument", i)
		}
	}
	args := make([]algebra.SQLExpr, len(n.Args))
	for i, a := range n.Args {
		switch v := a.(type) {
		case *expr.Constant:
			args[i] = t.binder.Raw(i, "", v.Value)
		case *expr.Captured:
			args[i] = t.binder.Raw(i, v.Name, t.bindings[v.Name])
		default:
			return nil, domain.Errorf(domain.ErrUnsupported, "FromSql", e.Name, "argument %d must be a constant or a captured value", i)
		}
	}
	table := &algebra.FromSQLExpr{SQL: n.SQL, Args: args, Entity: e}
	return t.entityQuery(e, table, t.rootPath(e), "", nil)
}

// sequence roots a query at a collection-valued shape. src is the scalar
// the shape was translated from.
func (t *translation) sequence(sh shape, src expr.Scalar) (*query, error) {
	switch s := sh.(type) {
	case *navCollectionShape:
		return t.navCollection(s.owner, s.nav)
	case *collectionShape:
		return t.query(s.query, s.env)
	case *ownedCollectionShape:
		return t.ownedCollection(s, !t.typedJSON), nil
	case *scalarShape:
		if s.prop != nil && s.prop.Collection {
			return t.primitiveColumn(s), nil
		}
		if c, ok := src.(*expr.Captured); ok {
			return t.capturedSequence(c.Name)
		}
	}
	return nil, domain.Errorf(domain.ErrUnsupported, "collection", "", "%s is not a queryable collection", describeShape(sh))
}

// navCollection selects the targets of a collection navigation of owner.
func (t *translation) navCollection(owner *entityShape, nav *model.Navigation) (*query, error) {
	path, err := owner.path.Push(nav.Name)
	if err != nil {
		return nil, err
	}
	target := nav.Target
	correlate := func(child *entityShape) algebra.SQLExpr {
		return navigation.Predicate(nav, owner.property, child.property)
	}
	return t.entityQuery(target, tableFor(target, owner.table), path, "", correlate)
}

// ownedCollection expands an owned JSON collection to rows. Keyed tables
// keep the element order and identify elements by position.
func (t *translation) ownedCollection(s *ownedCollectionShape, keyed bool) *query {
	table := jsonmap.CollectionTable(s.doc(), s.path, s.nav.Type, s.nav.Name, keyed, s.from)
	sel := algebra.NewSelect(table)
	el := jsonElement(s.nav, table)
	if keyed {
		order := el.order()
		sel.Identifier = []algebra.SQLExpr{order}
		sel.Orderings = []algebra.Ordering{{Expr: order}}
	}
	return &query{sel: sel, shape: el}
}

// primitiveColumn expands a primitive collection column to rows.
func (t *translation) primitiveColumn(s *scalarShape) *query {
	var from algebra.TableSource
	if c, ok := s.expr.(*algebra.Column); ok {
		from = c.Table
	}
	table := jsonmap.PrimitiveTable(s.expr, s.prop.Name, jsonmap.ElementMapping(s.prop), from)
	return &query{sel: algebra.NewSelect(table), shape: &scalarShape{expr: jsonmap.PrimitiveValue(table)}}
}

// capturedSequence expands a captured collection parameter to rows.
func (t *translation) capturedSequence(name string) (*query, error) {
	if t.inline {
		return nil, domain.Errorf(domain.ErrUnsupported, "@"+name, "", "querying a captured collection needs JSON table support")
	}
	m := elementMapping(t.bindings[name])
	p, err := t.binder.Collection(name, m)
	if err != nil {
		return nil, err
	}
	table := jsonmap.PrimitiveTable(p, name, m, nil)
	return &query{sel: algebra.NewSelect(table), shape: &scalarShape{expr: jsonmap.PrimitiveValue(table)}}, nil
}

// elementMapping maps the elements of a captured slice by their Go type.
func elementMapping(v any) *algebra.TypeMapping {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	for i := 0; i < rv.Len(); i++ {
		if m := algebra.MapValue(rv.Index(i).Interface()); m != nil {
			return m
		}
	}
	return algebra.MapValue(reflect.Zero(rv.Type().Elem()).Interface())
}

// isCollectionValue reports whether a captured value is a collection
// rather than a string or a byte slice.
func isCollectionValue(v any) bool {
	switch v.(type) {
	case nil, string, []byte:
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func describeShape(sh shape) string {
	switch s := sh.(type) {
	case *entityShape:
		return "entity " + s.entity.Name
	case *ownedShape:
		return "owned " + s.typ.Name
	case *scalarShape:
		if s.prop != nil {
			return "property " + s.prop.Name
		}
		return "scalar value"
	case *recordShape:
		return "record"
	case *groupingShape:
		return "grouping"
	case *navCollectionShape:
		return "collection " + s.nav.Name
	case *ownedCollectionShape:
		return "owned collection " + s.nav.Name
	}
	return "subquery"
}
