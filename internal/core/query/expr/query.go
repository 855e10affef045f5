// Package expr defines the query expression tree handed to the translator.
//
// Query and Scalar are closed unions: every node type lives in this package
// and carries an unexported marker method. Trees are immutable once built.
package expr

// Query is an operator node producing a sequence.
type Query interface {
	queryNode()
}

// SetOpKind is the kind of a set operation.
type SetOpKind int

const (
	Union SetOpKind = iota
	Concat
	Intersect
	Except
)

func (k SetOpKind) String() string {
	switch k {
	case Union:
		return "Union"
	case Concat:
		return "Concat"
	case Intersect:
		return "Intersect"
	case Except:
		return "Except"
	}
	return "SetOp"
}

// OptionKind is a query-wide option operator.
type OptionKind int

const (
	AsSplitQuery OptionKind = iota
	AsSingleQuery
	AsNoTracking
	AsTracking
	IgnoreQueryFilters
)

func (k OptionKind) String() string {
	switch k {
	case AsSplitQuery:
		return "AsSplitQuery"
	case AsSingleQuery:
		return "AsSingleQuery"
	case AsNoTracking:
		return "AsNoTracking"
	case AsTracking:
		return "AsTracking"
	case IgnoreQueryFilters:
		return "IgnoreQueryFilters"
	}
	return "Option"
}

// TemporalMode selects the rows of a system-versioned table.
type TemporalMode int

const (
	TemporalAsOf TemporalMode = iota
	TemporalAll
	TemporalBetween
	TemporalFromTo
	TemporalContainedIn
)

func (m TemporalMode) String() string {
	switch m {
	case TemporalAsOf:
		return "AsOf"
	case TemporalAll:
		return "All"
	case TemporalBetween:
		return "Between"
	case TemporalFromTo:
		return "FromTo"
	case TemporalContainedIn:
		return "ContainedIn"
	}
	return "Temporal"
}

// TerminalOp is an operator that ends a query with a single value.
type TerminalOp int

const (
	Count TerminalOp = iota
	LongCount
	Any
	All
	First
	FirstOrDefault
	Single
	SingleOrDefault
	Sum
	Min
	Max
	Average
)

var terminalNames = [...]string{
	Count:           "Count",
	LongCount:       "LongCount",
	Any:             "Any",
	All:             "All",
	First:           "First",
	FirstOrDefault:  "FirstOrDefault",
	Single:          "Single",
	SingleOrDefault: "SingleOrDefault",
	Sum:             "Sum",
	Min:             "Min",
	Max:             "Max",
	Average:         "Average",
}

func (op TerminalOp) String() string {
	if int(op) < len(terminalNames) {
		return terminalNames[op]
	}
	return "Terminal"
}

// IsAggregate reports whether op folds the sequence into a computed value.
func (op TerminalOp) IsAggregate() bool {
	switch op {
	case Count, LongCount, Sum, Min, Max, Average:
		return true
	}
	return false
}

// IsElement reports whether op returns one element of the sequence.
func (op TerminalOp) IsElement() bool {
	switch op {
	case First, FirstOrDefault, Single, SingleOrDefault:
		return true
	}
	return false
}

// Source is a query root over an entity set.
type Source struct {
	Name string
	// FilterScope separates filter context parameters minted for
	// different nested scopes.
	FilterScope string
}

// FromSQL is a query root over raw SQL text with positional {n} arguments.
type FromSQL struct {
	Name string
	SQL  string
	Args []Scalar
}

// CollectionRef roots a query at a collection-valued scalar such as a
// collection navigation, an owned JSON collection or a primitive collection.
type CollectionRef struct {
	Collection Scalar
}

type Where struct {
	Source    Query
	Predicate *Lambda
}

type Select struct {
	Source   Query
	Selector *Lambda
}

// SelectMany flattens Collection for every element. Result is optional and
// receives the element and the inner element.
type SelectMany struct {
	Source     Query
	Collection *Lambda
	Result     *Lambda
}

type Join struct {
	Outer    Query
	Inner    Query
	OuterKey *Lambda
	InnerKey *Lambda
	Result   *Lambda
}

// GroupJoin correlates every outer element with the group of matching inner
// elements. Result receives the outer element and the group.
type GroupJoin struct {
	Outer    Query
	Inner    Query
	OuterKey *Lambda
	InnerKey *Lambda
	Result   *Lambda
}

type GroupBy struct {
	Source  Query
	Key     *Lambda
	Element *Lambda
}

type SetOp struct {
	Kind  SetOpKind
	Left  Query
	Right Query
}

// OrderBy orders the sequence. ThenBy marks a secondary ordering that
// extends the previous one instead of replacing it.
type OrderBy struct {
	Source     Query
	Key        *Lambda
	Descending bool
	ThenBy     bool
}

type Skip struct {
	Source Query
	Count  Scalar
}

type Take struct {
	Source Query
	Count  Scalar
}

type Distinct struct {
	Source Query
}

// DefaultIfEmpty yields a single null element for an empty sequence.
type DefaultIfEmpty struct {
	Source Query
}

type OfType struct {
	Source Query
	Type   string
}

// Include eagerly loads the navigation path in Path. Then marks a
// ThenInclude continuing the previous include.
type Include struct {
	Source Query
	Path   *Lambda
	Then   bool
}

type Option struct {
	Source Query
	Kind   OptionKind
}

type Temporal struct {
	Source Query
	Mode   TemporalMode
	From   Scalar
	To     Scalar
}

type Terminal struct {
	Source Query
	Op     TerminalOp
	Arg    *Lambda
}

func (*Source) queryNode()         {}
func (*FromSQL) queryNode()        {}
func (*CollectionRef) queryNode()  {}
func (*Where) queryNode()          {}
func (*Select) queryNode()         {}
func (*SelectMany) queryNode()     {}
func (*Join) queryNode()           {}
func (*GroupJoin) queryNode()      {}
func (*GroupBy) queryNode()        {}
func (*SetOp) queryNode()          {}
func (*OrderBy) queryNode()        {}
func (*Skip) queryNode()           {}
func (*Take) queryNode()           {}
func (*Distinct) queryNode()       {}
func (*DefaultIfEmpty) queryNode() {}
func (*OfType) queryNode()         {}
func (*Include) queryNode()        {}
func (*Option) queryNode()         {}
func (*Temporal) queryNode()       {}
func (*Terminal) queryNode()       {}

// Input returns the sequence q operates on, or nil for roots and joins.
func Input(q Query) Query {
	switch n := q.(type) {
	case *Where:
		return n.Source
	case *Select:
		return n.Source
	case *SelectMany:
		return n.Source
	case *GroupBy:
		return n.Source
	case *OrderBy:
		return n.Source
	case *Skip:
		return n.Source
	case *Take:
		return n.Source
	case *Distinct:
		return n.Source
	case *DefaultIfEmpty:
		return n.Source
	case *OfType:
		return n.Source
	case *Include:
		return n.Source
	case *Option:
		return n.Source
	case *Temporal:
		return n.Source
	case *Terminal:
		return n.Source
	}
	return nil
}

// Options walks the operator chain of q and reports the options applied
// anywhere in it. Later operators win over earlier ones.
func Options(q Query) map[OptionKind]bool {
	out := make(map[OptionKind]bool)
	var chain []*Option
	for n := q; n != nil; n = Input(n) {
		if o, ok := n.(*Option); ok {
			chain = append(chain, o)
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		switch k := chain[i].Kind; k {
		case AsSplitQuery:
			out[AsSplitQuery], out[AsSingleQuery] = true, false
		case AsSingleQuery:
			out[AsSingleQuery], out[AsSplitQuery] = true, false
		case AsNoTracking:
			out[AsNoTracking], out[AsTracking] = true, false
		case AsTracking:
			out[AsTracking], out[AsNoTracking] = true, false
		default:
			out[k] = true
		}
	}
	return out
}
