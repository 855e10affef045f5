package shaper

import (
	"fmt"
	"strings"
)

// Describe renders the plan tree of s, one node per line.
func Describe(s *Shaper) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cardinality %s", s.Cardinality)
	if len(s.Group) > 0 {
		fmt.Fprintf(&sb, ", grouped by %v", s.Group)
	}
	sb.WriteString("\n")
	describe(&sb, s.Root, 1)
	for i, sp := range s.Splits {
		fmt.Fprintf(&sb, "split %d (parent %d, key %v)\n", i, sp.Parent, sp.ParentKey)
		describe(&sb, sp.Element, 1)
	}
	return sb.String()
}

func (c Cardinality) String() string {
	switch c {
	case FirstResult:
		return "first"
	case FirstOrDefaultResult:
		return "first-or-default"
	case SingleResult:
		return "single"
	case SingleOrDefaultResult:
		return "single-or-default"
	case ScalarResult:
		return "scalar"
	}
	return "sequence"
}

func describe(sb *strings.Builder, p Plan, depth int) {
	pad := strings.Repeat("  ", depth)
	switch n := p.(type) {
	case *ScalarPlan:
		fmt.Fprintf(sb, "%sscalar #%d %s\n", pad, n.Ordinal, n.Kind)
	case *ConstantPlan:
		fmt.Fprintf(sb, "%sconstant %v\n", pad, n.Value)
	case *AggregatePlan:
		fmt.Fprintf(sb, "%s%s #%d\n", pad, n.Op, n.Ordinal)
	case *DocumentPlan:
		fmt.Fprintf(sb, "%sjson #%d\n", pad, n.Ordinal)
	case *RecordPlan:
		fmt.Fprintf(sb, "%srecord\n", pad)
		for i, m := range n.Members {
			fmt.Fprintf(sb, "%s  %s:\n", pad, n.Names[i])
			describe(sb, m, depth+2)
		}
	case *CollectionPlan:
		fmt.Fprintf(sb, "%scollection key %v\n", pad, n.Key)
		describe(sb, n.Element, depth+1)
	case *EntityPlan:
		key := make([]int, len(n.Key))
		for i, k := range n.Key {
			key[i] = k.Ordinal
		}
		fmt.Fprintf(sb, "%sentity %s key %v, %d properties\n", pad, n.Entity.Name, key, len(n.Properties))
		for _, r := range n.References {
			fmt.Fprintf(sb, "%s  .%s\n", pad, r.Name)
			describe(sb, r.Entity, depth+2)
		}
		for _, c := range n.Collections {
			if c.Split >= 0 {
				fmt.Fprintf(sb, "%s  .%s[] from split %d\n", pad, c.Name, c.Split)
				continue
			}
			fmt.Fprintf(sb, "%s  .%s[]\n", pad, c.Name)
			describe(sb, c.Element, depth+2)
		}
	}
}
