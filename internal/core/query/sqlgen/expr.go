package sqlgen

import (
	"fmt"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// predicate renders e where a condition is expected. A boolean value is
// compared to true when the dialect has no boolean conditions.
func (st *statement) predicate(e algebra.SQLExpr) {
	if algebra.IsPredicate(e) {
		st.condition(e)
		return
	}
	st.value(e)
	st.w.write(st.d.truthTest())
}

// value renders e where a value is expected. Conditions become
// CASE WHEN c THEN true ELSE false END.
func (st *statement) value(e algebra.SQLExpr) {
	if !algebra.IsPredicate(e) {
		st.scalar(e)
		return
	}
	if c, ok := e.(*algebra.Constant); ok {
		st.w.write(st.d.boolLiteral(c.Value.(bool)))
		return
	}
	st.w.write("CASE WHEN ")
	st.condition(e)
	st.w.write(" THEN " + st.d.boolLiteral(true) + " ELSE " + st.d.boolLiteral(false) + " END")
}

func (st *statement) condition(e algebra.SQLExpr) {
	switch n := e.(type) {
	case *algebra.Constant:
		st.w.write(st.d.condLiteral(n.Value.(bool)))
	case *algebra.Binary:
		if n.Op.IsLogical() {
			st.logicalOperand(n.Op, n.Left)
			st.w.write(" " + n.Op.Symbol() + " ")
			st.logicalOperand(n.Op, n.Right)
			return
		}
		st.operand(n.Left)
		st.w.write(" " + n.Op.Symbol() + " ")
		st.operand(n.Right)
	case *algebra.Unary:
		switch n.Op {
		case algebra.OpNot:
			st.w.write("NOT (")
			st.predicate(n.Operand)
			st.w.write(")")
		case algebra.OpIsNull:
			st.operand(n.Operand)
			st.w.write(" IS NULL")
		case algebra.OpIsNotNull:
			st.operand(n.Operand)
			st.w.write(" IS NOT NULL")
		}
	case *algebra.In:
		st.in(n)
	case *algebra.Exists:
		if n.Negated {
			st.w.write("NOT ")
		}
		st.w.write("EXISTS ")
		st.nested(false, func() { st.selectStmt(n.Subquery) })
	case *algebra.Like:
		st.operand(n.Match)
		st.w.write(" LIKE ")
		st.operand(n.Pattern)
		if n.Escape != "" {
			m := algebra.MappingOf(n.Pattern)
			st.w.write(" ESCAPE " + st.d.stringLiteral(n.Escape, m == nil || m.Unicode))
		}
	default:
		st.fail(fmt.Errorf("sqlgen: %T is not a condition", e))
	}
}

// logicalOperand parenthesizes a nested AND or OR of the other kind.
func (st *statement) logicalOperand(parent algebra.BinaryOp, e algebra.SQLExpr) {
	if b, ok := e.(*algebra.Binary); ok && b.Op.IsLogical() && b.Op != parent {
		st.w.write("(")
		st.condition(b)
		st.w.write(")")
		return
	}
	st.predicate(e)
}

// operand renders a value compared or tested by a condition. Arithmetic
// binds tighter than comparison, so operands need no parentheses.
func (st *statement) operand(e algebra.SQLExpr) {
	st.value(e)
}

func (st *statement) scalar(e algebra.SQLExpr) {
	switch n := e.(type) {
	case *algebra.Column:
		st.w.write(st.d.quote(st.alias(n.Table)) + "." + st.d.quote(n.Name))
	case *algebra.Constant:
		st.w.write(literal(st.d, n.Value, n.Mapping))
	case *algebra.Parameter:
		st.param(n)
	case *algebra.Binary:
		st.arithmetic(n)
	case *algebra.Unary:
		st.w.write("-")
		st.arithmeticOperand(n.Operand, precUnary, false)
	case *algebra.Function:
		if !st.d.function(st, n) {
			st.call(n.Name, n.Args...)
		}
	case *algebra.Case:
		st.w.write("CASE")
		for _, w := range n.Whens {
			st.w.write(" WHEN ")
			st.predicate(w.Test)
			st.w.write(" THEN ")
			st.value(w.Result)
		}
		if n.Else != nil {
			st.w.write(" ELSE ")
			st.value(n.Else)
		}
		st.w.write(" END")
	case *algebra.ScalarSubquery:
		st.nested(false, func() { st.selectStmt(n.Subquery) })
	case *algebra.JSONValue:
		st.d.jsonValue(st, n)
	case *algebra.Cast:
		st.d.cast(st, n)
	case *algebra.RowNumber:
		st.w.write("ROW_NUMBER() OVER(")
		if len(n.Partitions) > 0 {
			st.w.write("PARTITION BY ")
			st.list(n.Partitions)
			st.w.write(" ")
		}
		st.w.write("ORDER BY ")
		st.orderings(n.Orderings)
		st.w.write(")")
	case *algebra.Star:
		if n.Table == nil {
			st.w.write("*")
			return
		}
		st.w.write(st.d.quote(st.alias(n.Table)) + ".*")
	case *algebra.Fragment:
		st.w.write(n.SQL)
	default:
		st.fail(domain.Errorf(domain.ErrInternal, fmt.Sprintf("%T", e), "", "expression cannot be rendered as a value"))
	}
}

func (st *statement) call(name string, args ...algebra.SQLExpr) {
	st.w.write(name + "(")
	st.list(args)
	st.w.write(")")
}

const (
	precAdditive = iota + 1
	precMultiplicative
	precUnary
)

func precedence(op algebra.BinaryOp) int {
	switch op {
	case algebra.OpMultiply, algebra.OpDivide, algebra.OpModulo:
		return precMultiplicative
	}
	return precAdditive
}

func (st *statement) arithmetic(n *algebra.Binary) {
	if n.Op == algebra.OpAdd && isText(n) {
		st.d.concat(st, n.Left, n.Right)
		return
	}
	p := precedence(n.Op)
	st.arithmeticOperand(n.Left, p, false)
	st.w.write(" " + n.Op.Symbol() + " ")
	st.arithmeticOperand(n.Right, p, n.Op != algebra.OpAdd && n.Op != algebra.OpMultiply)
}

// arithmeticOperand parenthesizes operands binding looser than the
// operator, and right operands of equal precedence of - / and %.
func (st *statement) arithmeticOperand(e algebra.SQLExpr, parent int, strict bool) {
	if b, ok := e.(*algebra.Binary); ok && !b.Op.IsComparison() && !b.Op.IsLogical() {
		p := precedence(b.Op)
		if isText(b) && b.Op == algebra.OpAdd {
			p = precAdditive
		}
		if p < parent || strict && p == parent {
			st.w.write("(")
			st.value(e)
			st.w.write(")")
			return
		}
	}
	st.value(e)
}

func isText(b *algebra.Binary) bool {
	if b.Mapping != nil {
		return b.Mapping.IsString()
	}
	return algebra.MappingOf(b.Left).IsString() || algebra.MappingOf(b.Right).IsString()
}

func (st *statement) in(n *algebra.In) {
	if n.Subquery == nil && len(n.Values) == 0 {
		st.w.write(st.d.condLiteral(n.Negated))
		return
	}
	st.operand(n.Item)
	if n.Negated {
		st.w.write(" NOT IN ")
	} else {
		st.w.write(" IN ")
	}
	if n.Subquery != nil {
		st.nested(true, func() { st.selectStmt(n.Subquery) })
		return
	}
	st.w.write("(")
	st.list(n.Values)
	st.w.write(")")
}
