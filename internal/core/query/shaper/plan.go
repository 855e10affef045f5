// Package shaper holds the plans that rebuild results from rows and the
// materializer that runs them: identity resolution, fan-out grouping of
// single-query collections and correlation of split-query result sets.
package shaper

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/expr"
)

// Plan rebuilds one value from the current row. The set of plan types is
// closed.
type Plan interface {
	planNode()
}

// ScalarPlan reads one column.
type ScalarPlan struct {
	Ordinal  int
	Kind     model.ValueKind
	Nullable bool
}

// PropertySlot reads a scalar property.
type PropertySlot struct {
	Property *model.Property
	Ordinal  int
}

// OwnedSlot reads a table-split owned reference from prefixed columns.
type OwnedSlot struct {
	Navigation *model.OwnedNavigation
	Properties []PropertySlot
	Owned      []*OwnedSlot
}

// DocumentSlot reads an owned value stored as a JSON document.
type DocumentSlot struct {
	Navigation *model.OwnedNavigation
	Ordinal    int
}

// ReferenceSlot reads an entity reached by a reference navigation.
type ReferenceSlot struct {
	Name   string
	Entity *EntityPlan
}

// CollectionSlot fills a collection navigation, either from the rows of
// the same command or from split command Split.
type CollectionSlot struct {
	Name string
	// Element is set for single-query collections.
	Element Plan
	// Key identifies element rows for deduplication.
	Key []int
	// Split is the index of the split command loading the collection, or -1.
	Split int
}

// EntityPlan materializes an entity, resolving identity by key.
type EntityPlan struct {
	// Entity is the static type; the discriminator selects the concrete one.
	Entity *model.EntityType
	Key    []PropertySlot
	// Version is the period start ordinal added to the identity key when a
	// temporal range may return several versions of a row, or -1.
	Version       int
	Discriminator int
	Properties    []PropertySlot
	Owned         []*OwnedSlot
	Documents     []DocumentSlot
	References    []ReferenceSlot
	Collections   []*CollectionSlot
	// Optional marks an entity read from the optional side of a join; it is
	// nil when its key columns are null.
	Optional bool
}

// RecordPlan builds an anonymous record.
type RecordPlan struct {
	Names   []string
	Members []Plan
}

// CollectionPlan builds a projected collection from the rows of one
// command.
type CollectionPlan struct {
	Element Plan
	Key     []int
	// Split is the index of the split command loading the collection, or -1.
	Split int
}

// DocumentPlan reads a JSON column as an owned value or a primitive
// collection.
type DocumentPlan struct {
	Ordinal int
	// Owned is the stored type, nil for a primitive collection.
	Owned      *model.OwnedType
	Collection bool
	// Element reads primitive collection elements.
	Element *model.Property
}

// AggregatePlan reads the result of a terminal aggregate.
type AggregatePlan struct {
	Op       expr.TerminalOp
	Ordinal  int
	Kind     model.ValueKind
	Nullable bool
}

// ConstantPlan yields a fixed value.
type ConstantPlan struct {
	Value any
}

func (*ScalarPlan) planNode()     {}
func (*EntityPlan) planNode()     {}
func (*RecordPlan) planNode()     {}
func (*CollectionPlan) planNode() {}
func (*DocumentPlan) planNode()   {}
func (*AggregatePlan) planNode()  {}
func (*ConstantPlan) planNode()   {}

// Cardinality says how many results a query returns.
type Cardinality int

const (
	Sequence Cardinality = iota
	FirstResult
	FirstOrDefaultResult
	SingleResult
	SingleOrDefaultResult
	// ScalarResult returns the single row of an aggregate.
	ScalarResult
)

// CardinalityOf maps a terminal operator to a cardinality.
func CardinalityOf(op expr.TerminalOp) Cardinality {
	switch op {
	case expr.First:
		return FirstResult
	case expr.FirstOrDefault:
		return FirstOrDefaultResult
	case expr.Single:
		return SingleResult
	case expr.SingleOrDefault:
		return SingleOrDefaultResult
	}
	return ScalarResult
}

// Split describes a split command loading one collection.
type Split struct {
	// Parent is the split whose elements own this collection, or -1 for the
	// root results.
	Parent int
	// ParentKey lists the ordinals of the owner key in this command's rows,
	// in the order of the owner's key properties.
	ParentKey []int
	Element   Plan
	Key       []int
}

// Shaper is the compiled result plan of a query.
type Shaper struct {
	Root Plan
	// Group lists the ordinals identifying a root result; consecutive rows
	// with equal values build one result. Empty means one result per row.
	Group       []int
	Splits      []*Split
	Cardinality Cardinality
	// Tracking keeps materialized entities in the caller's identity map.
	Tracking bool
}
