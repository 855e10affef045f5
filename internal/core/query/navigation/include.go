package navigation

import (
	"fmt"

	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
)

// Step is one navigation of an include path. Filter holds the operators
// applied to a filtered collection include; its innermost source is an
// expr.CollectionRef over the navigation.
type Step struct {
	Name   string
	Filter expr.Query
}

// ParseInclude reads the navigation path of an Include or ThenInclude
// lambda such as c => c.Orders, o => o.Customer.Orders or
// c => c.Orders.Where(o => o.Freight > 10).Take(2).
func ParseInclude(l *expr.Lambda) ([]Step, error) {
	if l == nil || len(l.Params) != 1 {
		return nil, domain.Errorf(domain.ErrUnsupported, "Include", "", "include needs a one parameter lambda")
	}
	if _, path, ok := expr.Path(l.Body); ok && len(path) > 0 {
		return plainSteps(path), nil
	}
	q, ok := expr.AsQuery(l.Body)
	if !ok {
		return nil, domain.Errorf(domain.ErrUnsupported, "Include", "", "include path must be a navigation chain")
	}
	var root *expr.CollectionRef
	for n := q; n != nil; n = expr.Input(n) {
		switch x := n.(type) {
		case *expr.CollectionRef:
			root = x
		case *expr.Where, *expr.OrderBy, *expr.Skip, *expr.Take:
			continue
		default:
			return nil, domain.Errorf(domain.ErrUnsupported, "Include", "",
				"operator %T is not allowed in a filtered include", n)
		}
	}
	if root == nil {
		return nil, domain.Errorf(domain.ErrUnsupported, "Include", "", "filtered include has no navigation")
	}
	param, path, ok := expr.Path(root.Collection)
	if !ok || param != l.Params[0] || len(path) == 0 {
		return nil, domain.Errorf(domain.ErrUnsupported, "Include", "", "filtered include must start at the lambda parameter")
	}
	steps := plainSteps(path)
	steps[len(steps)-1].Filter = q
	return steps, nil
}

func plainSteps(path []string) []Step {
	steps := make([]Step, len(path))
	for i, name := range path {
		steps[i] = Step{Name: name}
	}
	return steps
}

// IncludeNode is one navigation of an include tree.
type IncludeNode struct {
	Name     string
	Filter   expr.Query
	Children []*IncludeNode
}

// Child returns the child named name, or nil.
func (n *IncludeNode) Child(name string) *IncludeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// IncludeTree merges include paths. Paths sharing a prefix share nodes.
type IncludeTree struct {
	root IncludeNode
	last []*IncludeNode
}

// Add merges steps into the tree. With then set the path continues from
// the leaf of the previous include.
func (t *IncludeTree) Add(steps []Step, then bool) error {
	parent := &t.root
	var trail []*IncludeNode
	if then {
		if len(t.last) == 0 {
			return domain.Errorf(domain.ErrUnsupported, "ThenInclude", "", "ThenInclude must follow Include")
		}
		trail = append(trail, t.last...)
		parent = trail[len(trail)-1]
	}
	for _, s := range steps {
		node := parent.Child(s.Name)
		if node == nil {
			node = &IncludeNode{Name: s.Name}
			parent.Children = append(parent.Children, node)
		}
		if s.Filter != nil {
			if node.Filter != nil && expr.Hash(node.Filter) != expr.Hash(s.Filter) {
				return domain.Errorf(domain.ErrUnsupported, "Include", "",
					"navigation %s is included with two different filters", s.Name)
			}
			node.Filter = s.Filter
		}
		trail = append(trail, node)
		parent = node
	}
	t.last = trail
	return nil
}

// Roots returns the top-level includes in first-include order.
func (t *IncludeTree) Roots() []*IncludeNode {
	return t.root.Children
}

// Empty reports whether nothing is included.
func (t *IncludeTree) Empty() bool {
	return len(t.root.Children) == 0
}

// String renders the tree, e.g. [Orders[OrderDetails] Customer].
func (t *IncludeTree) String() string {
	return fmt.Sprint(render(t.root.Children))
}

func render(nodes []*IncludeNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s := n.Name
		if n.Filter != nil {
			s += "(filtered)"
		}
		if len(n.Children) > 0 {
			s += fmt.Sprint(render(n.Children))
		}
		out = append(out, s)
	}
	return out
}
