package algebra

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/model"
)

// Parameter sizes used for unbounded strings.
const (
	UnicodeParameterSize    = 4000
	NonUnicodeParameterSize = 8000
)

// TypeMapping describes how a value is stored.
type TypeMapping struct {
	// StoreType is the SQL Server store type, e.g. nvarchar(50).
	StoreType string
	Kind      model.ValueKind
	// Size is the parameter size. Zero means no size facet.
	Size        int
	Precision   int
	Scale       int
	Unicode     bool
	FixedLength bool
	// Unbounded marks max-length strings and binaries.
	Unbounded bool
}

// String returns the store type.
func (m *TypeMapping) String() string {
	if m == nil {
		return "<unmapped>"
	}
	return m.StoreType
}

// Equal reports whether two mappings have the same store type.
func (m *TypeMapping) Equal(o *TypeMapping) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.StoreType == o.StoreType
}

// IsString reports whether the mapping stores text.
func (m *TypeMapping) IsString() bool {
	return m != nil && m.Kind == model.KindString
}

// IsBool reports whether the mapping stores a boolean.
func (m *TypeMapping) IsBool() bool {
	return m != nil && m.Kind == model.KindBool
}

var (
	BoolMapping     = &TypeMapping{StoreType: "bit", Kind: model.KindBool}
	IntMapping      = &TypeMapping{StoreType: "int", Kind: model.KindInt}
	LongMapping     = &TypeMapping{StoreType: "bigint", Kind: model.KindLong}
	DoubleMapping   = &TypeMapping{StoreType: "float", Kind: model.KindDouble}
	DateTimeMapping = &TypeMapping{StoreType: "datetime2", Kind: model.KindDateTime}
	GuidMapping     = &TypeMapping{StoreType: "uniqueidentifier", Kind: model.KindGuid}
	// StringMapping is an unbounded unicode string.
	StringMapping = &TypeMapping{StoreType: "nvarchar(max)", Kind: model.KindString, Size: UnicodeParameterSize, Unicode: true, Unbounded: true}
	// JSONMapping is the mapping of JSON documents and JSON-serialized collections.
	JSONMapping = &TypeMapping{StoreType: "nvarchar(max)", Kind: model.KindString, Size: UnicodeParameterSize, Unicode: true, Unbounded: true}
)

// MapProperty returns the mapping of a scalar property.
func MapProperty(p *model.Property) *TypeMapping {
	if p.Collection {
		return JSONMapping
	}
	return mapFacets(p.Kind, p.MaxLength, p.Precision, p.Scale, !p.NonUnicode, p.FixedLength)
}

// MapKind returns the default mapping of a kind.
func MapKind(k model.ValueKind) *TypeMapping {
	return mapFacets(k, 0, 0, 0, true, false)
}

// MapValue returns the default mapping of a Go value, or nil for nil.
func MapValue(v any) *TypeMapping {
	switch v.(type) {
	case nil:
		return nil
	case bool:
		return BoolMapping
	case int, int32, int16, int8, uint8, uint16:
		return IntMapping
	case int64, uint32, uint64, uint:
		return LongMapping
	case float32, float64:
		return DoubleMapping
	case string:
		return StringMapping
	case time.Time:
		return DateTimeMapping
	case uuid.UUID:
		return GuidMapping
	case []byte:
		return MapKind(model.KindBytes)
	case []any:
		return JSONMapping
	}
	return StringMapping
}

func mapFacets(k model.ValueKind, maxLength, precision, scale int, unicode, fixed bool) *TypeMapping {
	m := &TypeMapping{Kind: k}
	switch k {
	case model.KindInt, model.KindEnum:
		m.StoreType = "int"
	case model.KindLong:
		m.StoreType = "bigint"
	case model.KindShort:
		m.StoreType = "smallint"
	case model.KindByte:
		m.StoreType = "tinyint"
	case model.KindBool:
		m.StoreType = "bit"
	case model.KindDouble:
		m.StoreType = "float"
	case model.KindDateTime:
		m.StoreType = "datetime2"
	case model.KindDateTimeOffset:
		m.StoreType = "datetimeoffset"
	case model.KindGuid:
		m.StoreType = "uniqueidentifier"
	case model.KindDecimal:
		if precision == 0 {
			precision, scale = 18, 2
		}
		m.Precision, m.Scale = precision, scale
		m.StoreType = fmt.Sprintf("decimal(%d,%d)", precision, scale)
	case model.KindBytes:
		if maxLength > 0 {
			m.StoreType = fmt.Sprintf("varbinary(%d)", maxLength)
			m.Size = maxLength
		} else {
			m.StoreType = "varbinary(max)"
			m.Size = NonUnicodeParameterSize
			m.Unbounded = true
		}
	case model.KindString:
		m.Unicode = unicode
		m.FixedLength = fixed
		base := "varchar"
		if fixed {
			base = "char"
		}
		if unicode {
			base = "n" + base
		}
		if maxLength > 0 {
			m.StoreType = fmt.Sprintf("%s(%d)", base, maxLength)
			m.Size = maxLength
		} else {
			m.StoreType = base + "(max)"
			m.Unbounded = true
			m.Size = NonUnicodeParameterSize
			if unicode {
				m.Size = UnicodeParameterSize
			}
		}
	default:
		m.StoreType = "sql_variant"
	}
	return m
}
