package linq

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/query/expr"
)

// ContextName is the identifier that refers to the filter context inside a
// query filter, as in ctx.TenantId.
const ContextName = "ctx"

var lambdaParser = participle.MustBuild[LambdaExpr](
	participle.Lexer(QueryLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(16),
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse parses a query such as Customers.Where(c => c.City == @city).
func Parse(text string) (expr.Query, error) {
	ast, err := parser.ParseString("query", text)
	if err != nil {
		return nil, err
	}
	var c converter
	s, err := c.expression(ast)
	if err != nil {
		return nil, err
	}
	ref, ok := s.(*expr.QueryRef)
	if !ok {
		return nil, fmt.Errorf("%s: query must start with an entity set", ast.Pos)
	}
	return ref.Query, nil
}

// MustParse is Parse that panics on error.
func MustParse(text string) expr.Query {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

// ParseLambda parses a standalone lambda such as c => c.TenantId == ctx.TenantId.
func ParseLambda(text string) (*expr.Lambda, error) {
	ast, err := lambdaParser.ParseString("lambda", text)
	if err != nil {
		return nil, err
	}
	var c converter
	return c.lambda(ast)
}

type converter struct {
	scopes [][]string
}

func (c *converter) bound(name string) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		for _, p := range c.scopes[i] {
			if p == name {
				return true
			}
		}
	}
	return false
}

func (c *converter) lambda(l *LambdaExpr) (*expr.Lambda, error) {
	c.scopes = append(c.scopes, l.Params)
	defer func() { c.scopes = c.scopes[:len(c.scopes)-1] }()
	body, err := c.expression(l.Body)
	if err != nil {
		return nil, err
	}
	return &expr.Lambda{Params: append([]string(nil), l.Params...), Body: body}, nil
}

func (c *converter) expression(e *Expression) (expr.Scalar, error) {
	test, err := c.coalesce(e.Test)
	if err != nil {
		return nil, err
	}
	if e.Then == nil {
		return test, nil
	}
	then, err := c.expression(e.Then)
	if err != nil {
		return nil, err
	}
	els, err := c.expression(e.Else)
	if err != nil {
		return nil, err
	}
	return &expr.Conditional{Test: test, Then: then, Else: els}, nil
}

func (c *converter) coalesce(e *Coalesce) (expr.Scalar, error) {
	left, err := c.or(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.or(r)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: expr.Coalesce, Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) or(e *Or) (expr.Scalar, error) {
	left, err := c.and(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.and(r)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: expr.OrElse, Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) and(e *And) (expr.Scalar, error) {
	left, err := c.comparison(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.comparison(r)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: expr.AndAlso, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]expr.BinaryOp{
	"==": expr.Equal,
	"!=": expr.NotEqual,
	"<":  expr.LessThan,
	"<=": expr.LessThanOrEqual,
	">":  expr.GreaterThan,
	">=": expr.GreaterThanOrEqual,
}

func (c *converter) comparison(e *Comparison) (expr.Scalar, error) {
	left, err := c.additive(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := c.additive(e.Right)
	if err != nil {
		return nil, err
	}
	return &expr.Binary{Op: comparisonOps[e.Op], Left: left, Right: right}, nil
}

func (c *converter) additive(e *Additive) (expr.Scalar, error) {
	left, err := c.multiplicative(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := c.multiplicative(r.Right)
		if err != nil {
			return nil, err
		}
		op := expr.Add
		if r.Op == "-" {
			op = expr.Subtract
		}
		left = &expr.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) multiplicative(e *Multiplicative) (expr.Scalar, error) {
	left, err := c.unary(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := c.unary(r.Right)
		if err != nil {
			return nil, err
		}
		op := expr.Multiply
		switch r.Op {
		case "/":
			op = expr.Divide
		case "%":
			op = expr.Modulo
		}
		left = &expr.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) unary(e *Unary) (expr.Scalar, error) {
	if e.Postfix != nil {
		return c.postfix(e.Postfix)
	}
	operand, err := c.unary(e.Operand)
	if err != nil {
		return nil, err
	}
	if e.Op == "!" {
		return &expr.Unary{Op: expr.Not, Operand: operand}, nil
	}
	if k, ok := operand.(*expr.Constant); ok {
		switch v := k.Value.(type) {
		case int:
			return &expr.Constant{Value: -v}, nil
		case int64:
			return &expr.Constant{Value: -v}, nil
		case float64:
			return &expr.Constant{Value: -v}, nil
		}
	}
	return &expr.Unary{Op: expr.Negate, Operand: operand}, nil
}

func (c *converter) postfix(p *Postfix) (expr.Scalar, error) {
	suffixes := p.Suffixes
	var (
		cur expr.Scalar
		q   expr.Query
		err error
	)

	switch {
	case p.Primary.Ident != nil:
		name := *p.Primary.Ident
		switch {
		case c.bound(name):
			cur = &expr.Param{Name: name}
		case name == ContextName:
			if len(suffixes) == 0 || suffixes[0].Call != nil {
				return nil, fmt.Errorf("%s: %s must be followed by a member name", p.Pos, ContextName)
			}
			cur = &expr.ContextValue{Name: suffixes[0].Name}
			suffixes = suffixes[1:]
		default:
			q = &expr.Source{Name: name}
		}
	default:
		if cur, err = c.primary(p.Primary); err != nil {
			return nil, err
		}
	}

	for _, s := range suffixes {
		if q != nil {
			if s.Call == nil {
				return nil, fmt.Errorf("%s: cannot access member %s of a query", s.Pos, s.Name)
			}
			args, err := c.arguments(s.Call)
			if err != nil {
				return nil, err
			}
			if q, err = expr.ApplyMethod(q, s.Name, args); err != nil {
				return nil, fmt.Errorf("%s: %w", s.Pos, err)
			}
			continue
		}
		if s.Call == nil {
			cur = &expr.Member{Target: cur, Name: s.Name}
			continue
		}
		args, err := c.arguments(s.Call)
		if err != nil {
			return nil, err
		}
		cur = &expr.Call{Target: cur, Method: s.Name, Args: args}
	}

	if q != nil {
		return &expr.QueryRef{Query: q}, nil
	}
	return cur, nil
}

func (c *converter) arguments(call *CallArgs) ([]expr.Scalar, error) {
	out := make([]expr.Scalar, 0, len(call.Args))
	for _, a := range call.Args {
		if a.Lambda != nil {
			l, err := c.lambda(a.Lambda)
			if err != nil {
				return nil, err
			}
			out = append(out, l)
			continue
		}
		s, err := c.expression(a.Expr)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *converter) primary(p *Primary) (expr.Scalar, error) {
	switch {
	case p.New != nil:
		return c.newExpr(p.New)
	case p.Captured != nil:
		return &expr.Captured{Name: *p.Captured}, nil
	case p.Number != nil:
		v, err := number(*p.Number)
		if err != nil {
			return nil, err
		}
		return &expr.Constant{Value: v}, nil
	case p.String != nil:
		return &expr.Constant{Value: unquote(*p.String)}, nil
	case p.True:
		return &expr.Constant{Value: true}, nil
	case p.False:
		return &expr.Constant{Value: false}, nil
	case p.Null:
		return &expr.Constant{Value: nil}, nil
	case p.List != nil:
		values := make([]any, 0, len(p.List.Items))
		for _, item := range p.List.Items {
			s, err := c.expression(item)
			if err != nil {
				return nil, err
			}
			k, ok := s.(*expr.Constant)
			if !ok {
				return nil, fmt.Errorf("list literals may only hold constants")
			}
			values = append(values, k.Value)
		}
		return &expr.Constant{Value: values}, nil
	case p.Paren != nil:
		return c.expression(p.Paren)
	case p.Func != nil:
		return c.function(p.Func)
	}
	return nil, fmt.Errorf("empty expression")
}

func (c *converter) function(f *FuncCall) (expr.Scalar, error) {
	args, err := c.arguments(f.Args)
	if err != nil {
		return nil, err
	}
	literal := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s takes one string argument", f.Name)
		}
		k, ok := args[0].(*expr.Constant)
		if !ok {
			return "", fmt.Errorf("%s takes one string argument", f.Name)
		}
		s, ok := k.Value.(string)
		if !ok {
			return "", fmt.Errorf("%s takes one string argument", f.Name)
		}
		return s, nil
	}

	switch f.Name {
	case "DateTime":
		s, err := literal()
		if err != nil {
			return nil, err
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &expr.Constant{Value: t.UTC()}, nil
			}
		}
		return nil, fmt.Errorf("DateTime: cannot parse %q", s)
	case "Guid":
		s, err := literal()
		if err != nil {
			return nil, err
		}
		g, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("Guid: %w", err)
		}
		return &expr.Constant{Value: g}, nil
	}
	return &expr.Call{Method: f.Name, Args: args}, nil
}

func (c *converter) newExpr(n *NewExpr) (expr.Scalar, error) {
	out := &expr.New{}
	for _, m := range n.Members {
		v, err := c.expression(m.Value)
		if err != nil {
			return nil, err
		}
		name := m.Name
		if name == "" {
			switch s := v.(type) {
			case *expr.Member:
				name = s.Name
			case *expr.Param:
				name = s.Name
			case *expr.Captured:
				name = s.Name
			default:
				return nil, fmt.Errorf("projected member needs a name")
			}
		}
		out.Members = append(out.Members, expr.NamedScalar{Name: name, Value: v})
	}
	return out, nil
}

func number(s string) (any, error) {
	suffix := s[len(s)-1]
	switch suffix {
	case 'L', 'l':
		return strconv.ParseInt(s[:len(s)-1], 10, 64)
	case 'M', 'm', 'D', 'd':
		return strconv.ParseFloat(s[:len(s)-1], 64)
	}
	if strings.Contains(s, ".") {
		return strconv.ParseFloat(s, 64)
	}
	return strconv.Atoi(s)
}

func unquote(s string) string {
	body := s[1 : len(s)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i == len(body)-1 {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
