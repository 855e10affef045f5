package navigation

import "github.com/satishbabariya/relq/internal/core/query/algebra"

// RowColumn is the output name of the ranking column.
const RowColumn = "row"

// Ranked is a child select whose rows are numbered per parent so that the
// first n children of every parent can be kept.
type Ranked struct {
	*algebra.Pushdown
	// Row is the ranking column as seen from the outer select.
	Row algebra.SQLExpr
}

// Rank numbers the rows of child within each partition, in the order of
// the child's orderings, and keeps the rows selected by offset and limit.
// The child must not page itself.
func Rank(child *algebra.Select, partition []algebra.SQLExpr, offset, limit algebra.SQLExpr) *Ranked {
	number := &algebra.RowNumber{Partitions: partition, Orderings: child.Orderings}
	if len(number.Orderings) == 0 {
		for _, p := range partition {
			number.Orderings = append(number.Orderings, algebra.Ordering{Expr: p})
		}
	}
	p := algebra.PushDown(child)
	r := &Ranked{Pushdown: p, Row: p.MapNamed(number, RowColumn)}
	p.Outer.AddPredicate(RankFilter(r.Row, offset, limit))
	return r
}

// RankFilter keeps ranks in (offset, offset+limit]. Either bound may be nil.
func RankFilter(row, offset, limit algebra.SQLExpr) algebra.SQLExpr {
	switch {
	case offset == nil && limit == nil:
		return nil
	case offset == nil:
		return &algebra.Binary{Op: algebra.OpLessThanOrEqual, Left: row, Right: limit}
	case limit == nil:
		return &algebra.Binary{Op: algebra.OpLessThan, Left: offset, Right: row}
	}
	upper := &algebra.Binary{Op: algebra.OpAdd, Left: offset, Right: limit, Mapping: algebra.MappingOf(limit)}
	return algebra.And(
		&algebra.Binary{Op: algebra.OpLessThan, Left: offset, Right: row},
		&algebra.Binary{Op: algebra.OpLessThanOrEqual, Left: row, Right: upper},
	)
}
