package expr

// Inspect traverses the tree rooted at n (a Query or a Scalar) in depth-first
// order, calling f for every node. Children are skipped when f returns false.
func Inspect(n any, f func(any) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range children(n) {
		if c != nil {
			Inspect(c, f)
		}
	}
}

func children(n any) []any {
	switch n := n.(type) {
	case *Source:
		return nil
	case *FromSQL:
		out := make([]any, 0, len(n.Args))
		for _, a := range n.Args {
			out = append(out, a)
		}
		return out
	case *CollectionRef:
		return []any{n.Collection}
	case *Where:
		return []any{n.Source, lambda(n.Predicate)}
	case *Select:
		return []any{n.Source, lambda(n.Selector)}
	case *SelectMany:
		return []any{n.Source, lambda(n.Collection), lambda(n.Result)}
	case *Join:
		return []any{n.Outer, n.Inner, lambda(n.OuterKey), lambda(n.InnerKey), lambda(n.Result)}
	case *GroupJoin:
		return []any{n.Outer, n.Inner, lambda(n.OuterKey), lambda(n.InnerKey), lambda(n.Result)}
	case *GroupBy:
		return []any{n.Source, lambda(n.Key), lambda(n.Element)}
	case *SetOp:
		return []any{n.Left, n.Right}
	case *OrderBy:
		return []any{n.Source, lambda(n.Key)}
	case *Skip:
		return []any{n.Source, n.Count}
	case *Take:
		return []any{n.Source, n.Count}
	case *Distinct:
		return []any{n.Source}
	case *DefaultIfEmpty:
		return []any{n.Source}
	case *OfType:
		return []any{n.Source}
	case *Include:
		return []any{n.Source, lambda(n.Path)}
	case *Option:
		return []any{n.Source}
	case *Temporal:
		return []any{n.Source, n.From, n.To}
	case *Terminal:
		return []any{n.Source, lambda(n.Arg)}

	case *Member:
		return []any{n.Target}
	case *Binary:
		return []any{n.Left, n.Right}
	case *Unary:
		return []any{n.Operand}
	case *Conditional:
		return []any{n.Test, n.Then, n.Else}
	case *Call:
		out := make([]any, 0, len(n.Args)+1)
		out = append(out, n.Target)
		for _, a := range n.Args {
			out = append(out, a)
		}
		return out
	case *New:
		out := make([]any, 0, len(n.Members))
		for _, m := range n.Members {
			out = append(out, m.Value)
		}
		return out
	case *QueryRef:
		return []any{n.Query}
	case *Lambda:
		return []any{n.Body}
	}
	return nil
}

// lambda avoids storing a typed nil pointer in an interface slot.
func lambda(l *Lambda) any {
	if l == nil {
		return nil
	}
	return l
}

// CapturedNames lists the distinct captured value names used in n, in
// first-use order.
func CapturedNames(n any) []string {
	var out []string
	seen := map[string]bool{}
	Inspect(n, func(n any) bool {
		if c, ok := n.(*Captured); ok && !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
		return true
	})
	return out
}
