// Package model holds the entity metadata that query translation runs against.
package model

import "fmt"

// ValueKind is the runtime kind of a scalar property.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindLong
	KindShort
	KindByte
	KindBool
	KindString
	KindDecimal
	KindDouble
	KindDateTime
	KindDateTimeOffset
	KindGuid
	KindBytes
	KindEnum
)

var kindNames = map[ValueKind]string{
	KindInt:            "Int",
	KindLong:           "Long",
	KindShort:          "Short",
	KindByte:           "Byte",
	KindBool:           "Bool",
	KindString:         "String",
	KindDecimal:        "Decimal",
	KindDouble:         "Double",
	KindDateTime:       "DateTime",
	KindDateTimeOffset: "DateTimeOffset",
	KindGuid:           "Guid",
	KindBytes:          "Bytes",
	KindEnum:           "Enum",
}

// String returns the kind name.
func (k ValueKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// IsNumeric reports whether values of the kind are numbers.
func (k ValueKind) IsNumeric() bool {
	switch k {
	case KindInt, KindLong, KindShort, KindByte, KindDecimal, KindDouble, KindEnum:
		return true
	}
	return false
}

// KindFromName maps a schema type name to a kind.
func KindFromName(name string) (ValueKind, bool) {
	switch name {
	case "Int":
		return KindInt, true
	case "BigInt", "Long":
		return KindLong, true
	case "Short":
		return KindShort, true
	case "Byte":
		return KindByte, true
	case "Boolean", "Bool":
		return KindBool, true
	case "String":
		return KindString, true
	case "Decimal":
		return KindDecimal, true
	case "Float", "Double":
		return KindDouble, true
	case "DateTime":
		return KindDateTime, true
	case "DateTimeOffset":
		return KindDateTimeOffset, true
	case "Guid", "Uuid":
		return KindGuid, true
	case "Bytes":
		return KindBytes, true
	}
	return 0, false
}

// Property is a scalar property mapped to a column (or to a JSON key for owned JSON types).
type Property struct {
	Name      string
	Column    string
	Kind      ValueKind
	Nullable  bool
	MaxLength int
	Precision int
	Scale     int
	// NonUnicode maps strings to varchar instead of nvarchar.
	NonUnicode bool
	// FixedLength maps strings to char/nchar.
	FixedLength bool
	Enum        *EnumType
	// Collection marks a primitive collection stored as a JSON array.
	Collection bool
	// Shadow marks properties that exist only in the store (discriminator, period columns).
	Shadow bool
}

// EnumMember is one declared member of an enum.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumType is a named set of integer-valued members.
type EnumType struct {
	Name    string
	Members []EnumMember
}

// ByName finds a member by its declared name.
func (e *EnumType) ByName(name string) (EnumMember, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, true
		}
	}
	return EnumMember{}, false
}

// ByValue finds a member by its numeric value.
func (e *EnumType) ByValue(v int64) (EnumMember, bool) {
	for _, m := range e.Members {
		if m.Value == v {
			return m, true
		}
	}
	return EnumMember{}, false
}

// OwnedStorage says where an owned type's values live.
type OwnedStorage int

const (
	// StorageTableSplit stores owned properties as prefixed columns of the owner's table.
	StorageTableSplit OwnedStorage = iota
	// StorageJSON stores the owned value as a JSON document in a single column.
	StorageJSON
)

// OwnedType is a value object without its own identity.
type OwnedType struct {
	Name       string
	Properties []*Property
	Owned      []*OwnedNavigation
}

// Property finds a property by name.
func (o *OwnedType) Property(name string) *Property {
	for _, p := range o.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Navigation finds an owned navigation by name.
func (o *OwnedType) Navigation(name string) *OwnedNavigation {
	for _, n := range o.Owned {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// OwnedNavigation links an owner to an owned type.
type OwnedNavigation struct {
	Name       string
	Type       *OwnedType
	Collection bool
	Storage    OwnedStorage
	// Column is the JSON column for a top-level JSON navigation, or the
	// column prefix for a table-split one.
	Column string
	// JSONName is the key under which a nested JSON value is stored.
	JSONName string
	Required bool
}

// ColumnFor returns the owner-table column that stores p for a table-split navigation.
func (n *OwnedNavigation) ColumnFor(p *Property) string {
	return n.Column + "_" + p.Column
}

// JSONKey returns the key used for the navigation inside its parent document.
func (n *OwnedNavigation) JSONKey() string {
	if n.JSONName != "" {
		return n.JSONName
	}
	return n.Name
}

// Navigation is a reference or collection property linking two entity types.
type Navigation struct {
	Name       string
	Declaring  *EntityType
	Target     *EntityType
	Collection bool
	// Dependent is true when the declaring type holds the foreign key.
	Dependent bool
	// ForeignKey lives on the dependent type, PrincipalKey on the principal.
	ForeignKey   []*Property
	PrincipalKey []*Property
	// Required is true when the foreign key is non-nullable.
	Required bool
	Inverse  *Navigation
	// RelationName pairs the two sides when a type pair has several relationships.
	RelationName string
}

// String returns the navigation qualified by its declaring type.
func (n *Navigation) String() string {
	return n.Declaring.Name + "." + n.Name
}

// Temporal describes system-versioned period columns.
type Temporal struct {
	PeriodStart  string
	PeriodEnd    string
	HistoryTable string
}
