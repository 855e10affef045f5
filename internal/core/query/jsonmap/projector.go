package jsonmap

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
)

// Element column names of a JSON table without a WITH clause.
const (
	KeyColumn   = "key"
	ValueColumn = "value"
)

// DocumentColumn returns the column of t holding the document of a
// top-level JSON navigation.
func DocumentColumn(t algebra.TableSource, nav *model.OwnedNavigation, optional bool) *algebra.Column {
	return &algebra.Column{
		Table:    t,
		Name:     nav.Column,
		Nullable: optional || !nav.Required,
		Mapping:  algebra.JSONMapping,
	}
}

// Scalar extracts a leaf property from doc. Values that are not strings are
// cast to the property's store type when rendered.
func Scalar(doc algebra.SQLExpr, path []algebra.PathSegment, p *model.Property, nullable bool) *algebra.JSONValue {
	return &algebra.JSONValue{
		Doc:      doc,
		Path:     Key(path, p.Column),
		Mapping:  algebra.MapProperty(p),
		Nullable: nullable || p.Nullable,
	}
}

// Document extracts a JSON fragment of doc: a nested owned reference, an
// owned collection or an array element.
func Document(doc algebra.SQLExpr, path []algebra.PathSegment, nullable bool) algebra.SQLExpr {
	if len(path) == 0 {
		return doc
	}
	return &algebra.JSONValue{
		Doc:      doc,
		Path:     path,
		Fragment: true,
		Mapping:  algebra.JSONMapping,
		Nullable: nullable,
	}
}

// CollectionTable expands the owned collection at path of doc into rows.
// A keyed table exposes key and value so that element order survives and
// whole elements can be read back; otherwise every property of t becomes a
// typed column and nested owned values become JSON columns.
func CollectionTable(doc algebra.SQLExpr, path []algebra.PathSegment, t *model.OwnedType, name string, keyed bool, derivedFrom algebra.TableSource) *algebra.JSONTableExpr {
	table := &algebra.JSONTableExpr{Doc: doc, Path: path, Name: name, DerivedFrom: derivedFrom}
	if keyed {
		return table
	}
	for _, p := range t.Properties {
		table.Columns = append(table.Columns, algebra.JSONColumn{
			Name:    p.Column,
			Mapping: algebra.MapProperty(p),
			Path:    []algebra.PathSegment{{Property: p.Column}},
		})
	}
	for _, n := range t.Owned {
		table.Columns = append(table.Columns, algebra.JSONColumn{
			Name:    n.JSONKey(),
			Mapping: algebra.JSONMapping,
			Path:    []algebra.PathSegment{{Property: n.JSONKey()}},
			AsJSON:  true,
		})
	}
	return table
}

// IsKeyed reports whether t exposes key and value instead of typed columns.
func IsKeyed(t *algebra.JSONTableExpr) bool {
	return len(t.Columns) == 0
}

// Element reads property p of the current element of t.
func Element(t *algebra.JSONTableExpr, p *model.Property) algebra.SQLExpr {
	if IsKeyed(t) {
		return Scalar(ElementValue(t), nil, p, true)
	}
	return &algebra.Column{Table: t, Name: p.Column, Nullable: true, Mapping: algebra.MapProperty(p)}
}

// ElementDocument reads the nested owned value nav of the current element of t.
func ElementDocument(t *algebra.JSONTableExpr, nav *model.OwnedNavigation) algebra.SQLExpr {
	if IsKeyed(t) {
		return Document(ElementValue(t), []algebra.PathSegment{{Property: nav.JSONKey()}}, true)
	}
	return &algebra.Column{Table: t, Name: nav.JSONKey(), Nullable: true, Mapping: algebra.JSONMapping}
}

// ElementValue is the JSON text of the current element of a keyed table.
func ElementValue(t *algebra.JSONTableExpr) *algebra.Column {
	return &algebra.Column{Table: t, Name: ValueColumn, Nullable: true, Mapping: algebra.JSONMapping}
}

// ElementOrder orders the rows of a keyed table by element position.
func ElementOrder(t *algebra.JSONTableExpr) algebra.SQLExpr {
	return &algebra.Cast{
		Operand: &algebra.Column{Table: t, Name: KeyColumn, Mapping: algebra.StringMapping},
		Mapping: algebra.IntMapping,
	}
}

// PrimitiveTable expands a JSON array of scalars, a primitive collection
// column or a collection parameter, into rows of one value column typed by
// element.
func PrimitiveTable(doc algebra.SQLExpr, name string, element *algebra.TypeMapping, derivedFrom algebra.TableSource) *algebra.JSONTableExpr {
	return &algebra.JSONTableExpr{
		Doc:         doc,
		Name:        name,
		DerivedFrom: derivedFrom,
		Columns:     []algebra.JSONColumn{{Name: ValueColumn, Mapping: element}},
	}
}

// PrimitiveValue is the value column of a primitive table.
func PrimitiveValue(t *algebra.JSONTableExpr) *algebra.Column {
	var m *algebra.TypeMapping
	if len(t.Columns) > 0 {
		m = t.Columns[0].Mapping
	}
	return &algebra.Column{Table: t, Name: ValueColumn, Nullable: true, Mapping: m}
}

// ElementMapping returns the mapping elements of a primitive collection
// property are stored with.
func ElementMapping(p *model.Property) *algebra.TypeMapping {
	q := *p
	q.Collection = false
	return algebra.MapProperty(&q)
}
