package jsonmap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model/modeltest"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
	"github.com/satishbabariya/relq/internal/diagnostics"
)

func TestFormatPath(t *testing.T) {
	tests := []struct {
		name string
		path []algebra.PathSegment
		want string
	}{
		{"root", nil, "$"},
		{"nested", []algebra.PathSegment{{Property: "OwnedLeaf"}, {Property: "SomethingSomething"}}, "$.OwnedLeaf.SomethingSomething"},
		{"index", []algebra.PathSegment{{Property: "Leaves"}, {Index: 1}}, "$.Leaves[1]"},
		{"quoted", []algebra.PathSegment{{Property: "my key"}}, `$."my key"`},
		{"leading digit", []algebra.PathSegment{{Property: "1st"}}, `$."1st"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jsonmap.FormatPath(tt.path))
		})
	}
}

func TestKey_DoesNotAlias(t *testing.T) {
	base := make([]algebra.PathSegment, 1, 4)
	base[0] = algebra.PathSegment{Property: "a"}
	x := jsonmap.Key(base, "x")
	y := jsonmap.Key(base, "y")
	assert.Equal(t, "$.a.x", jsonmap.FormatPath(x))
	assert.Equal(t, "$.a.y", jsonmap.FormatPath(y))
}

func TestCollectionTable(t *testing.T) {
	e := modeltest.Entity("JsonEntity")
	owner := &algebra.TableExpr{Name: e.Table, Entity: e}
	nav := e.FindOwned("Collection")
	doc := jsonmap.DocumentColumn(owner, nav, false)
	assert.True(t, doc.Nullable, "owned collections are optional")

	typed := jsonmap.CollectionTable(doc, nil, nav.Type, nav.Name, false, owner)
	require.Len(t, typed.Columns, 4)
	assert.Equal(t, "Name", typed.Columns[0].Name)
	assert.Equal(t, "decimal(18,2)", typed.Columns[1].Mapping.StoreType)
	assert.Equal(t, "OwnedLeaf", typed.Columns[2].Name)
	assert.True(t, typed.Columns[2].AsJSON)
	assert.Equal(t, "c", typed.Hint())

	name := nav.Type.Property("Name")
	col, ok := jsonmap.Element(typed, name).(*algebra.Column)
	require.True(t, ok)
	assert.Equal(t, "Name", col.Name)

	keyed := jsonmap.CollectionTable(doc, nil, nav.Type, nav.Name, true, owner)
	assert.True(t, jsonmap.IsKeyed(keyed))
	v, ok := jsonmap.Element(keyed, name).(*algebra.JSONValue)
	require.True(t, ok)
	assert.Equal(t, "$.Name", jsonmap.FormatPath(v.Path))
	assert.Equal(t, jsonmap.ValueColumn, v.Doc.(*algebra.Column).Name)
}

func TestPrimitiveTable(t *testing.T) {
	e := modeltest.Entity("Collections")
	ints := e.FindProperty("Ints")
	assert.Equal(t, "int", jsonmap.ElementMapping(ints).StoreType)

	p := &algebra.Parameter{Name: "__ids_0", Mapping: algebra.JSONMapping, Collection: true, Element: algebra.IntMapping}
	table := jsonmap.PrimitiveTable(p, p.Name, algebra.IntMapping, nil)
	assert.Equal(t, "i", table.Hint())
	assert.Equal(t, "int", jsonmap.PrimitiveValue(table).Mapping.StoreType)
}

func TestReader_Tolerant(t *testing.T) {
	branch := modeltest.Northwind().OwnedType("Branch")
	r := jsonmap.NewReader(context.Background(), nil)

	doc := `{"Name":"b1","Junk":{"x":[1,2]},"OwnedLeaf":{"SomethingSomething":"s","Status":3,"Extra":true},"Leaves":[null,{"SomethingSomething":"l1","Status":0}]}`
	got, err := r.Owned(doc, branch)
	require.NoError(t, err)

	assert.Equal(t, "b1", got["Name"])
	assert.Nil(t, got["Fraction"], "missing optional keys read as nil")
	leaf := got["Leaf"].(map[string]any)
	assert.Equal(t, "s", leaf["SomethingSomething"])
	assert.Equal(t, int64(3), leaf["Status"])
	assert.Nil(t, leaf["Date"])

	leaves := got["Leaves"].([]map[string]any)
	require.Len(t, leaves, 1, "null elements are skipped")
	assert.Equal(t, "l1", leaves[0]["SomethingSomething"])

	missing, err := r.Owned(`{"Name":"b2"}`, branch)
	require.NoError(t, err)
	assert.Nil(t, missing["Leaf"], "a missing sub-object is absent")
	assert.Empty(t, missing["Leaves"])

	none, err := r.Owned(nil, branch)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReader_EnumLegacyStrings(t *testing.T) {
	rec := diagnostics.NewRecorder()
	branch := modeltest.Northwind().OwnedType("Branch")
	r := jsonmap.NewReader(context.Background(), rec.Logger())

	for _, doc := range []string{
		`{"Name":"a","OwnedLeaf":{"SomethingSomething":"x","Status":"Closed"}}`,
		`{"Name":"b","OwnedLeaf":{"SomethingSomething":"y","Status":"Open"}}`,
	} {
		got, err := r.Owned(doc, branch)
		require.NoError(t, err)
		assert.NotNil(t, got["Leaf"])
	}

	got, err := r.Owned(`{"Name":"a","OwnedLeaf":{"SomethingSomething":"x","Status":"Closed"}}`, branch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got["Leaf"].(map[string]any)["Status"])

	warnings := rec.Named(diagnostics.EventJSONEnumLegacy)
	require.Len(t, warnings, 1, "one warning per enum type")
	assert.Equal(t, "Status", warnings[0].Attrs["enum"])
	assert.Equal(t, []string{"Status"}, r.Warned())

	_, err = r.Owned(`{"Name":"c","OwnedLeaf":{"SomethingSomething":"z","Status":"Bogus"}}`, branch)
	require.Error(t, err)
	code, ok := domain.ProviderCode(err)
	assert.True(t, ok)
	assert.Equal(t, domain.ErrCodeConversion, code)
}

func TestReader_Primitives(t *testing.T) {
	ints := modeltest.Entity("Collections").FindProperty("Ints")
	r := jsonmap.NewReader(context.Background(), nil)

	got, err := r.Primitives(`[1,2,3]`, ints)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)

	_, err = r.Primitives(`[1,`, ints)
	assert.Error(t, err)
}
