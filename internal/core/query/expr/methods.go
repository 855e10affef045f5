package expr

import (
	"errors"
	"fmt"
)

// ErrUnknownOperator is returned when a method name is not a query operator.
var ErrUnknownOperator = errors.New("unknown query operator")

var terminalMethods = map[string]TerminalOp{
	"Count":           Count,
	"LongCount":       LongCount,
	"Any":             Any,
	"All":             All,
	"First":           First,
	"FirstOrDefault":  FirstOrDefault,
	"Single":          Single,
	"SingleOrDefault": SingleOrDefault,
	"Sum":             Sum,
	"Min":             Min,
	"Max":             Max,
	"Average":         Average,
}

var optionMethods = map[string]OptionKind{
	"AsSplitQuery":       AsSplitQuery,
	"AsSingleQuery":      AsSingleQuery,
	"AsNoTracking":       AsNoTracking,
	"AsTracking":         AsTracking,
	"IgnoreQueryFilters": IgnoreQueryFilters,
}

var temporalMethods = map[string]TemporalMode{
	"TemporalAsOf":        TemporalAsOf,
	"TemporalAll":         TemporalAll,
	"TemporalBetween":     TemporalBetween,
	"TemporalFromTo":      TemporalFromTo,
	"TemporalContainedIn": TemporalContainedIn,
}

var setOpMethods = map[string]SetOpKind{
	"Union":     Union,
	"Concat":    Concat,
	"Intersect": Intersect,
	"Except":    Except,
}

// IsOperator reports whether method names a query operator.
func IsOperator(method string) bool {
	if _, ok := terminalMethods[method]; ok {
		return true
	}
	if _, ok := optionMethods[method]; ok {
		return true
	}
	if _, ok := temporalMethods[method]; ok {
		return true
	}
	if _, ok := setOpMethods[method]; ok {
		return true
	}
	switch method {
	case "Where", "Select", "SelectMany", "Join", "GroupJoin", "GroupBy",
		"OrderBy", "OrderByDescending", "ThenBy", "ThenByDescending",
		"Skip", "Take", "Distinct", "DefaultIfEmpty", "OfType",
		"Include", "ThenInclude", "FromSql":
		return true
	}
	return false
}

// ApplyMethod applies the operator named method to src.
func ApplyMethod(src Query, method string, args []Scalar) (Query, error) {
	if op, ok := terminalMethods[method]; ok {
		t := &Terminal{Source: src, Op: op}
		switch len(args) {
		case 0:
			if op == All {
				return nil, fmt.Errorf("%s needs a predicate", method)
			}
		case 1:
			l, err := lambdaArg(method, args[0])
			if err != nil {
				return nil, err
			}
			t.Arg = l
		default:
			return nil, fmt.Errorf("%s takes at most one argument", method)
		}
		return t, nil
	}
	if kind, ok := optionMethods[method]; ok {
		if err := arity(method, args, 0); err != nil {
			return nil, err
		}
		return &Option{Source: src, Kind: kind}, nil
	}
	if mode, ok := temporalMethods[method]; ok {
		t := &Temporal{Source: src, Mode: mode}
		want := 2
		switch mode {
		case TemporalAll:
			want = 0
		case TemporalAsOf:
			want = 1
		}
		if err := arity(method, args, want); err != nil {
			return nil, err
		}
		if want > 0 {
			t.From = args[0]
		}
		if want > 1 {
			t.To = args[1]
		}
		return t, nil
	}
	if kind, ok := setOpMethods[method]; ok {
		if err := arity(method, args, 1); err != nil {
			return nil, err
		}
		other, err := queryArg(method, args[0])
		if err != nil {
			return nil, err
		}
		return &SetOp{Kind: kind, Left: src, Right: other}, nil
	}

	switch method {
	case "Where", "Select", "GroupBy", "Include", "ThenInclude",
		"OrderBy", "OrderByDescending", "ThenBy", "ThenByDescending":
		if method == "GroupBy" && len(args) == 2 {
			key, err := lambdaArg(method, args[0])
			if err != nil {
				return nil, err
			}
			elem, err := lambdaArg(method, args[1])
			if err != nil {
				return nil, err
			}
			return &GroupBy{Source: src, Key: key, Element: elem}, nil
		}
		if err := arity(method, args, 1); err != nil {
			return nil, err
		}
		l, err := lambdaArg(method, args[0])
		if err != nil {
			return nil, err
		}
		switch method {
		case "Where":
			return &Where{Source: src, Predicate: l}, nil
		case "Select":
			return &Select{Source: src, Selector: l}, nil
		case "GroupBy":
			return &GroupBy{Source: src, Key: l}, nil
		case "Include":
			return &Include{Source: src, Path: l}, nil
		case "ThenInclude":
			return &Include{Source: src, Path: l, Then: true}, nil
		case "OrderBy":
			return &OrderBy{Source: src, Key: l}, nil
		case "OrderByDescending":
			return &OrderBy{Source: src, Key: l, Descending: true}, nil
		case "ThenBy":
			return &OrderBy{Source: src, Key: l, ThenBy: true}, nil
		default:
			return &OrderBy{Source: src, Key: l, Descending: true, ThenBy: true}, nil
		}
	case "SelectMany":
		if len(args) != 1 && len(args) != 2 {
			return nil, fmt.Errorf("SelectMany takes one or two arguments")
		}
		coll, err := lambdaArg(method, args[0])
		if err != nil {
			return nil, err
		}
		sm := &SelectMany{Source: src, Collection: coll}
		if len(args) == 2 {
			if sm.Result, err = lambdaArg(method, args[1]); err != nil {
				return nil, err
			}
		}
		return sm, nil
	case "Join", "GroupJoin":
		if err := arity(method, args, 4); err != nil {
			return nil, err
		}
		inner, err := queryArg(method, args[0])
		if err != nil {
			return nil, err
		}
		var ls [3]*Lambda
		for i := range ls {
			if ls[i], err = lambdaArg(method, args[i+1]); err != nil {
				return nil, err
			}
		}
		if method == "Join" {
			return &Join{Outer: src, Inner: inner, OuterKey: ls[0], InnerKey: ls[1], Result: ls[2]}, nil
		}
		return &GroupJoin{Outer: src, Inner: inner, OuterKey: ls[0], InnerKey: ls[1], Result: ls[2]}, nil
	case "Skip", "Take":
		if err := arity(method, args, 1); err != nil {
			return nil, err
		}
		if method == "Skip" {
			return &Skip{Source: src, Count: args[0]}, nil
		}
		return &Take{Source: src, Count: args[0]}, nil
	case "Distinct":
		if err := arity(method, args, 0); err != nil {
			return nil, err
		}
		return &Distinct{Source: src}, nil
	case "DefaultIfEmpty":
		if err := arity(method, args, 0); err != nil {
			return nil, err
		}
		return &DefaultIfEmpty{Source: src}, nil
	case "OfType":
		if err := arity(method, args, 1); err != nil {
			return nil, err
		}
		name, err := typeArg(args[0])
		if err != nil {
			return nil, err
		}
		return &OfType{Source: src, Type: name}, nil
	case "FromSql":
		root, ok := src.(*Source)
		if !ok {
			return nil, fmt.Errorf("FromSql must directly follow an entity set")
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("FromSql needs the SQL text")
		}
		c, ok := args[0].(*Constant)
		text, isString := "", false
		if ok {
			text, isString = c.Value.(string)
		}
		if !isString {
			return nil, fmt.Errorf("FromSql needs a string literal")
		}
		return &FromSQL{Name: root.Name, SQL: text, Args: args[1:]}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, method)
}

// AsQuery converts a method chain applied to a collection-valued scalar into
// a query rooted at CollectionRef. A QueryRef yields its query.
func AsQuery(s Scalar) (Query, bool) {
	switch n := s.(type) {
	case *QueryRef:
		return n.Query, true
	case *Call:
		if n.Target == nil || !IsOperator(n.Method) || n.Method == "FromSql" {
			return nil, false
		}
		src, ok := AsQuery(n.Target)
		if !ok {
			src = &CollectionRef{Collection: n.Target}
		}
		q, err := ApplyMethod(src, n.Method, n.Args)
		if err != nil {
			return nil, false
		}
		return q, true
	}
	return nil, false
}

func arity(method string, args []Scalar, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d", method, n, len(args))
	}
	return nil
}

func lambdaArg(method string, s Scalar) (*Lambda, error) {
	if l, ok := s.(*Lambda); ok {
		return l, nil
	}
	return nil, fmt.Errorf("%s expects a lambda argument", method)
}

func queryArg(method string, s Scalar) (Query, error) {
	if q, ok := AsQuery(s); ok {
		return q, nil
	}
	return nil, fmt.Errorf("%s expects a query argument", method)
}

func typeArg(s Scalar) (string, error) {
	switch n := s.(type) {
	case *QueryRef:
		if src, ok := n.Query.(*Source); ok {
			return src.Name, nil
		}
	case *Constant:
		if name, ok := n.Value.(string); ok {
			return name, nil
		}
	case *Param:
		return n.Name, nil
	}
	return "", fmt.Errorf("OfType expects a type name")
}
