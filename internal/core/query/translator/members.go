package translator

import (
	"fmt"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
)

func (t *translation) memberOf(target shape, name string) (shape, error) {
	switch s := target.(type) {
	case *entityShape:
		return t.entityMember(s, name)
	case *ownedShape:
		if p := s.typ.Property(name); p != nil {
			return &scalarShape{expr: s.prop(p), prop: p}, nil
		}
		if nav := s.typ.Navigation(name); nav != nil {
			return s.sub(nav)
		}
		return nil, domain.Errorf(domain.ErrUnknownMember, name, s.typ.Name, "")
	case *recordShape:
		if m := s.member(name); m != nil {
			return m, nil
		}
		return nil, domain.Errorf(domain.ErrUnknownMember, name, "", "record has no member %s", name)
	case *groupingShape:
		if name == "Key" {
			return s.key, nil
		}
		return nil, domain.Errorf(domain.ErrUnknownMember, name, "", "a grouping only exposes Key")
	case *singleShape:
		return t.singleMember(s, name)
	case *scalarShape:
		return t.valueMember(s, name)
	}
	return nil, domain.Errorf(domain.ErrUnsupported, name, "", "member of %s", describeShape(target))
}

// entityMember reads a property, navigation or owned navigation. Members
// declared on derived types resolve too; their columns read as nullable.
func (t *translation) entityMember(s *entityShape, name string) (shape, error) {
	if p := findProperty(s.entity, name); p != nil {
		return &scalarShape{expr: s.property(p), prop: p}, nil
	}
	if nav := findNavigation(s.entity, name); nav != nil {
		if nav.Collection {
			return &navCollectionShape{owner: s, nav: nav}, nil
		}
		return t.reference(s, nav)
	}
	if o := findOwned(s.entity, name); o != nil {
		return ownedOf(s, o)
	}
	return nil, domain.Errorf(domain.ErrUnknownMember, name, s.entity.Name, "")
}

func findProperty(e *model.EntityType, name string) *model.Property {
	for _, t := range e.Subtree() {
		if p := t.FindProperty(name); p != nil {
			return p
		}
	}
	return nil
}

func findNavigation(e *model.EntityType, name string) *model.Navigation {
	for _, t := range e.Subtree() {
		if n := t.FindNavigation(name); n != nil {
			return n
		}
	}
	return nil
}

func findOwned(e *model.EntityType, name string) *model.OwnedNavigation {
	for _, t := range e.Subtree() {
		if n := t.FindOwned(name); n != nil {
			return n
		}
	}
	return nil
}

// reference joins the target of a reference navigation into the select
// owning s. Joins are reused per table and navigation path.
func (t *translation) reference(s *entityShape, nav *model.Navigation) (*entityShape, error) {
	key := fmt.Sprintf("%d:%s.%s", s.id, s.path, nav.Name)
	if target, ok := t.memo.Get(s.table, key); ok {
		return target, nil
	}
	path, err := s.path.Push(nav.Name)
	if err != nil {
		return nil, err
	}
	optional := s.optional || navigation.JoinKind(nav, false) == algebra.JoinLeft
	kind := navigation.JoinKind(nav, s.optional)
	e := nav.Target
	table := tableFor(e, s.table)

	var target *entityShape
	restricted := t.guard.Applies(t.filters, e) != nil
	if d := e.Discriminator(); d != nil && e.Base != nil {
		restricted = true
	}
	if restricted {
		q, err := t.entityQuery(e, table, path, "", nil)
		if err != nil {
			return nil, err
		}
		pd := algebra.PushDown(q.sel)
		sh := remapOptional(q.shape, pd, optional).(*entityShape)
		touch(sh)
		sh.sel = s.sel
		sh.path = path
		s.sel.AddJoin(kind, pd.Table, navigation.Predicate(nav, s.property, sh.property))
		target = sh
	} else {
		target = &entityShape{
			entity:   e,
			table:    table,
			sel:      s.sel,
			optional: optional,
			read:     tableReader(table, optional),
			id:       s.id,
			path:     path,
		}
		s.sel.AddJoin(kind, table, navigation.Predicate(nav, s.property, target.property))
	}
	t.memo.Put(s.table, key, target)
	return target, nil
}

// singleMember reads a member of one element of a subquery by projecting
// the member inside the subquery.
func (t *translation) singleMember(s *singleShape, name string) (shape, error) {
	src := s.query.Source
	if s.query.Arg != nil {
		src = &expr.Where{Source: src, Predicate: s.query.Arg}
	}
	const p = "$element"
	term := &expr.Terminal{
		Source: &expr.Select{Source: src, Selector: expr.Lambda1(p, &expr.Member{Target: &expr.Param{Name: p}, Name: name})},
		Op:     s.query.Op,
	}
	return t.scalarTerminal(term, s.env)
}

var dateParts = map[string]string{
	"Year":        "year",
	"Month":       "month",
	"Day":         "day",
	"Hour":        "hour",
	"Minute":      "minute",
	"Second":      "second",
	"Millisecond": "millisecond",
	"DayOfYear":   "dayofyear",
}

// valueMember reads a built-in member of a scalar value.
func (t *translation) valueMember(s *scalarShape, name string) (shape, error) {
	v := s.expr
	m := algebra.MappingOf(v)
	nullable := algebra.IsNullable(v)
	switch {
	case name == "HasValue":
		return &scalarShape{expr: isNotNullExpr(v)}, nil
	case name == "Value":
		return &scalarShape{expr: v, prop: s.prop}, nil
	case name == "Length" && m.IsString():
		return &scalarShape{expr: &algebra.Function{Name: "LEN", Args: []algebra.SQLExpr{v}, Mapping: algebra.IntMapping, Nullable: nullable}}, nil
	case name == "Count" && s.prop != nil && s.prop.Collection:
		q := t.primitiveColumn(s)
		q.sel.AddProjection(countStar(expr.Count), "")
		return &scalarShape{expr: &algebra.ScalarSubquery{Subquery: q.sel, Mapping: algebra.IntMapping}}, nil
	}
	if m != nil && (m.Kind == model.KindDateTime || m.Kind == model.KindDateTimeOffset) {
		if part, ok := dateParts[name]; ok {
			return &scalarShape{expr: &algebra.Function{
				Name:     "DATEPART",
				Args:     []algebra.SQLExpr{&algebra.Fragment{SQL: part}, v},
				Mapping:  algebra.IntMapping,
				Nullable: nullable,
			}}, nil
		}
		if name == "Date" {
			return &scalarShape{expr: &algebra.Cast{Operand: v, Mapping: &algebra.TypeMapping{StoreType: "date", Kind: model.KindDateTime}}}, nil
		}
	}
	return nil, domain.Errorf(domain.ErrUnknownMember, name, "", "member of %s", describeShape(s))
}
