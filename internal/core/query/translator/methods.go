package translator

import (
	"strings"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
	"github.com/satishbabariya/relq/internal/core/query/params"
)

// joinKeyMethod compares the keys of a group join without null
// compensation.
const joinKeyMethod = "$joinKeys"

// likeEscape escapes wildcards in LIKE patterns built from constants.
const likeEscape = `\`

func (t *translation) call(n *expr.Call, e env) (shape, error) {
	if n.Target == nil {
		return t.function(n, e)
	}
	if n.Method == "Contains" && len(n.Args) == 1 {
		if sh, ok, err := t.contains(n.Target, n.Args[0], e); ok || err != nil {
			return sh, err
		}
	}
	target, err := t.scalar(n.Target, e)
	if err != nil {
		return nil, err
	}
	sc, ok := target.(*scalarShape)
	if !ok {
		return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "method of %s", describeShape(target))
	}
	return t.method(sc, n, e)
}

// contains translates membership tests. ok is false when target is a
// string and the call is a substring test.
func (t *translation) contains(target, item expr.Scalar, e env) (shape, bool, error) {
	switch c := target.(type) {
	case *expr.Captured:
		if !isCollectionValue(t.bindings[c.Name]) {
			return nil, false, nil
		}
		it, err := t.value(item, e, "Contains")
		if err != nil {
			return nil, true, err
		}
		in, err := t.capturedIn(c.Name, it)
		if err != nil {
			return nil, true, err
		}
		return &scalarShape{expr: in}, true, nil
	case *expr.Constant:
		list, isList := c.Value.([]any)
		if !isList {
			return nil, false, nil
		}
		it, err := t.value(item, e, "Contains")
		if err != nil {
			return nil, true, err
		}
		if len(list) == 0 {
			return &scalarShape{expr: algebra.False()}, true, nil
		}
		in := &algebra.In{Item: it}
		for _, v := range list {
			in.Values = append(in.Values, t.constant(v, algebra.MappingOf(it)))
		}
		return &scalarShape{expr: in}, true, nil
	}
	sh, err := t.scalar(target, e)
	if err != nil {
		return nil, true, err
	}
	if sc, ok := sh.(*scalarShape); ok && (sc.prop == nil || !sc.prop.Collection) {
		return nil, false, nil
	}
	q, err := t.sequence(sh, target)
	if err != nil {
		return nil, true, err
	}
	el, ok := q.shape.(*scalarShape)
	if !ok {
		return nil, true, domain.Errorf(domain.ErrUnsupported, "Contains", "", "membership in a collection of %s", describeShape(q.shape))
	}
	itSh, err := t.hinted(item, e, el)
	if err != nil {
		return nil, true, err
	}
	it, err := valueOf(itSh, "Contains")
	if err != nil {
		return nil, true, err
	}
	if q.sel.IsPaged() || q.sel.Distinct {
		t.pushdown(q)
		el = q.shape.(*scalarShape)
	}
	q.sel.ClearOrderings()
	q.sel.Projection = nil
	q.sel.AddProjection(el.expr, "")
	return &scalarShape{expr: &algebra.In{Item: it, Subquery: q.sel}}, true, nil
}

// capturedIn tests membership in a captured collection: a JSON table over
// the collection parameter, or the values inlined as constants.
func (t *translation) capturedIn(name string, item algebra.SQLExpr) (algebra.SQLExpr, error) {
	m := algebra.MappingOf(item)
	if t.inline {
		v := t.bindings[name]
		var values []any
		if v != nil {
			var err error
			if values, err = params.Elements(v); err != nil {
				return nil, domain.Errorf(domain.ErrUnsupported, "@"+name, "", "%v", err)
			}
		}
		t.markInlined(name)
		if len(values) == 0 {
			return algebra.False(), nil
		}
		in := &algebra.In{Item: item}
		for _, x := range values {
			in.Values = append(in.Values, t.constant(x, m))
		}
		return in, nil
	}
	p, err := t.binder.Collection(name, m)
	if err != nil {
		return nil, err
	}
	table := jsonmap.PrimitiveTable(p, name, p.Element, nil)
	sub := algebra.NewSelect(table)
	sub.AddProjection(jsonmap.PrimitiveValue(table), "")
	return &algebra.In{Item: item, Subquery: sub}, nil
}

func (t *translation) markInlined(name string) {
	for _, n := range t.inlined {
		if n == name {
			return
		}
	}
	t.inlined = append(t.inlined, name)
}

// args translates call arguments, mapping literals like the target.
func (t *translation) args(n *expr.Call, e env, target shape) ([]algebra.SQLExpr, error) {
	out := make([]algebra.SQLExpr, len(n.Args))
	for i, a := range n.Args {
		sh, err := t.hinted(a, e, target)
		if err != nil {
			return nil, err
		}
		if out[i], err = valueOf(sh, n.Method); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *translation) intArgs(n *expr.Call, e env) ([]algebra.SQLExpr, error) {
	return t.args(n, e, &scalarShape{expr: &algebra.Constant{Mapping: algebra.IntMapping}})
}

// method translates a method of a scalar value.
func (t *translation) method(target *scalarShape, n *expr.Call, e env) (shape, error) {
	x := target.expr
	m := algebra.MappingOf(x)
	nullable := algebra.IsNullable(x)
	fn := func(name string, mapping *algebra.TypeMapping, args ...algebra.SQLExpr) shape {
		return &scalarShape{expr: &algebra.Function{Name: name, Args: args, Mapping: mapping, Nullable: nullable}}
	}
	arity := func(k int) error {
		if len(n.Args) != k {
			return domain.Errorf(domain.ErrUnsupported, n.Method, "", "expected %d arguments", k)
		}
		return nil
	}
	switch n.Method {
	case "Contains", "StartsWith", "EndsWith":
		if err := arity(1); err != nil {
			return nil, err
		}
		args, err := t.args(n, e, target)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: substring(n.Method, x, args[0])}, nil
	case "ToUpper":
		return fn("UPPER", m, x), nil
	case "ToLower":
		return fn("LOWER", m, x), nil
	case "Trim":
		return fn("TRIM", m, x), nil
	case "TrimStart":
		return fn("LTRIM", m, x), nil
	case "TrimEnd":
		return fn("RTRIM", m, x), nil
	case "Substring":
		args, err := t.intArgs(n, e)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 || len(args) > 2 {
			return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "expected 1 or 2 arguments")
		}
		start := plusOne(args[0])
		length := algebra.SQLExpr(&algebra.Function{Name: "LEN", Args: []algebra.SQLExpr{x}, Mapping: algebra.IntMapping})
		if len(args) == 2 {
			length = args[1]
		}
		return fn("SUBSTRING", m, x, start, length), nil
	case "Replace":
		if err := arity(2); err != nil {
			return nil, err
		}
		args, err := t.args(n, e, target)
		if err != nil {
			return nil, err
		}
		return fn("REPLACE", m, x, args[0], args[1]), nil
	case "IndexOf":
		if err := arity(1); err != nil {
			return nil, err
		}
		args, err := t.args(n, e, target)
		if err != nil {
			return nil, err
		}
		pos := &algebra.Function{Name: "CHARINDEX", Args: []algebra.SQLExpr{args[0], x}, Mapping: algebra.IntMapping, Nullable: nullable}
		return &scalarShape{expr: &algebra.Binary{Op: algebra.OpSubtract, Left: pos, Right: &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}, Mapping: algebra.IntMapping}}, nil
	case "Equals":
		if err := arity(1); err != nil {
			return nil, err
		}
		other, err := t.hinted(n.Args[0], e, target)
		if err != nil {
			return nil, err
		}
		pred, err := compare(algebra.OpEqual, target, other)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: pred}, nil
	case "ToString":
		if m.IsString() {
			return target, nil
		}
		return &scalarShape{expr: &algebra.Cast{Operand: x, Mapping: &algebra.TypeMapping{
			StoreType: "nvarchar(max)", Kind: algebra.StringMapping.Kind, Unicode: true, Unbounded: true,
		}}}, nil
	case "GetValueOrDefault":
		var def algebra.SQLExpr = &algebra.Constant{Value: zeroOf(m), Mapping: m}
		if len(n.Args) == 1 {
			args, err := t.args(n, e, target)
			if err != nil {
				return nil, err
			}
			def = args[0]
		}
		return &scalarShape{expr: &algebra.Function{Name: "COALESCE", Args: []algebra.SQLExpr{x, def}, Mapping: m}}, nil
	case "AddDays", "AddMonths", "AddYears", "AddHours", "AddMinutes", "AddSeconds":
		if err := arity(1); err != nil {
			return nil, err
		}
		args, err := t.intArgs(n, e)
		if err != nil {
			return nil, err
		}
		part := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(n.Method, "Add"), "s"))
		return fn("DATEADD", m, &algebra.Fragment{SQL: part}, args[0], x), nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "method %s is not translatable", n.Method)
}

// substring translates Contains, StartsWith and EndsWith. Constant
// patterns become LIKE; other patterns are matched by position so that
// wildcards in them stay literal.
func substring(method string, x, pattern algebra.SQLExpr) algebra.SQLExpr {
	if c, ok := pattern.(*algebra.Constant); ok {
		s, isString := c.Value.(string)
		if !isString {
			return algebra.False()
		}
		if s == "" {
			return algebra.True()
		}
		escaped := escapeLike(s)
		text := escaped
		switch method {
		case "Contains":
			text = "%" + escaped + "%"
		case "StartsWith":
			text = escaped + "%"
		default:
			text = "%" + escaped
		}
		like := &algebra.Like{Match: x, Pattern: &algebra.Constant{Value: text, Mapping: c.Mapping}}
		if escaped != s {
			like.Escape = likeEscape
		}
		return like
	}
	empty := &algebra.Like{Match: pattern, Pattern: &algebra.Constant{Value: "", Mapping: algebra.MappingOf(pattern)}}
	length := &algebra.Function{Name: "LEN", Args: []algebra.SQLExpr{pattern}, Mapping: algebra.IntMapping}
	switch method {
	case "Contains":
		pos := &algebra.Function{Name: "CHARINDEX", Args: []algebra.SQLExpr{pattern, x}, Mapping: algebra.IntMapping}
		return algebra.Or(empty, &algebra.Binary{Op: algebra.OpGreaterThan, Left: pos, Right: &algebra.Constant{Value: 0, Mapping: algebra.IntMapping}})
	case "StartsWith":
		left := &algebra.Function{Name: "LEFT", Args: []algebra.SQLExpr{x, length}, Mapping: algebra.MappingOf(x), Nullable: true}
		return algebra.And(isNotNullExpr(x), algebra.Equal(left, pattern))
	}
	right := &algebra.Function{Name: "RIGHT", Args: []algebra.SQLExpr{x, length}, Mapping: algebra.MappingOf(x), Nullable: true}
	return algebra.And(isNotNullExpr(x), algebra.Equal(right, pattern))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`)
	return r.Replace(s)
}

// plusOne converts a zero-based index to a one-based SQL position.
func plusOne(e algebra.SQLExpr) algebra.SQLExpr {
	if c, ok := e.(*algebra.Constant); ok {
		if i, ok := c.Value.(int); ok {
			return &algebra.Constant{Value: i + 1, Mapping: algebra.IntMapping}
		}
	}
	return &algebra.Binary{Op: algebra.OpAdd, Left: e, Right: &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}, Mapping: algebra.IntMapping}
}

func zeroOf(m *algebra.TypeMapping) any {
	switch {
	case m == nil:
		return 0
	case m.IsString():
		return ""
	case m.IsBool():
		return false
	}
	return 0
}

var mathFunctions = map[string]string{
	"Abs":     "ABS",
	"Ceiling": "CEILING",
	"Floor":   "FLOOR",
	"Round":   "ROUND",
	"Sqrt":    "SQRT",
	"Power":   "POWER",
	"Sign":    "SIGN",
}

// function translates free functions.
func (t *translation) function(n *expr.Call, e env) (shape, error) {
	values := func() ([]algebra.SQLExpr, error) {
		out := make([]algebra.SQLExpr, len(n.Args))
		for i, a := range n.Args {
			v, err := t.value(a, e, n.Method)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	switch n.Method {
	case joinKeyMethod:
		l, r, err := t.pair(n.Args[0], n.Args[1], e)
		if err != nil {
			return nil, err
		}
		pred, err := keyEquality(l, r)
		if err != nil {
			return nil, err
		}
		return &scalarShape{expr: pred}, nil
	case "Like":
		if len(n.Args) < 2 || len(n.Args) > 3 {
			return nil, domain.Errorf(domain.ErrUnsupported, "Like", "", "expected 2 or 3 arguments")
		}
		match, pattern, err := t.pair(n.Args[0], n.Args[1], e)
		if err != nil {
			return nil, err
		}
		mv, err := valueOf(match, "Like")
		if err != nil {
			return nil, err
		}
		pv, err := valueOf(pattern, "Like")
		if err != nil {
			return nil, err
		}
		like := &algebra.Like{Match: mv, Pattern: pv}
		if len(n.Args) == 3 {
			var esc string
			if c, ok := n.Args[2].(*expr.Constant); ok {
				esc, _ = c.Value.(string)
			}
			if esc == "" {
				return nil, domain.Errorf(domain.ErrUnsupported, "Like", "", "the escape character must be a string constant")
			}
			like.Escape = esc
		}
		return &scalarShape{expr: like}, nil
	case "IsNullOrEmpty":
		args, err := values()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "expected 1 argument")
		}
		empty := &algebra.Like{Match: args[0], Pattern: &algebra.Constant{Value: "", Mapping: algebra.MappingOf(args[0])}}
		return &scalarShape{expr: algebra.Or(isNullExpr(args[0]), empty)}, nil
	case "Coalesce":
		args, err := values()
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "expected arguments")
		}
		return &scalarShape{expr: &algebra.Function{Name: "COALESCE", Args: args, Mapping: algebra.MappingOf(args[0]), Nullable: algebra.IsNullable(args[len(args)-1])}}, nil
	}
	if name, ok := mathFunctions[n.Method]; ok {
		args, err := values()
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "expected arguments")
		}
		m := algebra.MappingOf(args[0])
		if name == "SQRT" || name == "POWER" {
			m = algebra.DoubleMapping
		}
		if name == "ROUND" && len(args) == 1 {
			args = append(args, &algebra.Constant{Value: 0, Mapping: algebra.IntMapping})
		}
		return &scalarShape{expr: &algebra.Function{Name: name, Args: args, Mapping: m, Nullable: algebra.IsNullable(args[0])}}, nil
	}
	return nil, domain.Errorf(domain.ErrUnsupported, n.Method, "", "function %s is not translatable", n.Method)
}
