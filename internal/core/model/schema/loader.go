package schema

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/satishbabariya/relq/internal/core/model"
)

// Parse parses a definition from r.
func Parse(filename string, r io.Reader) (*File, error) {
	return parser.Parse(filename, r)
}

// ParseString parses a definition held in a string.
func ParseString(filename, src string) (*File, error) {
	return parser.ParseString(filename, src)
}

// Load parses src and builds a finalized model.
func Load(filename, src string) (*model.Model, error) {
	f, err := ParseString(filename, src)
	if err != nil {
		return nil, err
	}
	return Build(f)
}

// MustLoad is Load that panics on error.
func MustLoad(filename, src string) *model.Model {
	m, err := Load(filename, src)
	if err != nil {
		panic(err)
	}
	return m
}

type builder struct {
	m        *model.Model
	entities map[string]*model.EntityType
	owned    map[string]*model.OwnedType
	enums    map[string]*model.EnumType
	decls    map[string]*ModelDecl
	types    map[string]*TypeDecl
}

// Build converts a parsed definition into a finalized model.
func Build(f *File) (*model.Model, error) {
	b := &builder{
		m:        model.New(),
		entities: make(map[string]*model.EntityType),
		owned:    make(map[string]*model.OwnedType),
		enums:    make(map[string]*model.EnumType),
		decls:    make(map[string]*ModelDecl),
		types:    make(map[string]*TypeDecl),
	}

	// Declare every name first so fields can reference later declarations.
	for _, d := range f.Decls {
		switch {
		case d.Enum != nil:
			e, err := buildEnum(d.Enum)
			if err != nil {
				return nil, err
			}
			b.enums[e.Name] = e
			if err := b.m.AddEnum(e); err != nil {
				return nil, fmt.Errorf("%s: %w", d.Enum.Pos, err)
			}
		case d.Type != nil:
			o := &model.OwnedType{Name: d.Type.Name}
			b.owned[o.Name] = o
			b.types[o.Name] = d.Type
			if err := b.m.AddOwnedType(o); err != nil {
				return nil, fmt.Errorf("%s: %w", d.Type.Pos, err)
			}
		case d.Model != nil:
			e := &model.EntityType{Name: d.Model.Name}
			b.entities[e.Name] = e
			b.decls[e.Name] = d.Model
			if err := b.m.AddEntity(e); err != nil {
				return nil, fmt.Errorf("%s: %w", d.Model.Pos, err)
			}
		}
	}

	for name, td := range b.types {
		if err := b.buildOwned(b.owned[name], td); err != nil {
			return nil, err
		}
	}

	for _, d := range f.Decls {
		if d.Model == nil {
			continue
		}
		e := b.entities[d.Model.Name]
		if d.Model.Base != "" {
			base, ok := b.entities[d.Model.Base]
			if !ok {
				return nil, fmt.Errorf("%s: model %s extends unknown model %s", d.Model.Pos, e.Name, d.Model.Base)
			}
			e.Base = base
		}
		if err := b.buildScalars(e, d.Model); err != nil {
			return nil, err
		}
	}

	// Navigations need every scalar in place to resolve foreign keys.
	for _, d := range f.Decls {
		if d.Model == nil {
			continue
		}
		if err := b.buildNavigations(b.entities[d.Model.Name], d.Model); err != nil {
			return nil, err
		}
	}

	if err := b.m.Finalize(); err != nil {
		return nil, err
	}
	return b.m, nil
}

func buildEnum(d *EnumDecl) (*model.EnumType, error) {
	e := &model.EnumType{Name: d.Name}
	next := int64(0)
	for _, m := range d.Members {
		v := next
		if m.Value != nil {
			parsed, err := strconv.ParseInt(*m.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: enum %s member %s: %w", m.Pos, d.Name, m.Name, err)
			}
			v = parsed
		}
		e.Members = append(e.Members, model.EnumMember{Name: m.Name, Value: v})
		next = v + 1
	}
	return e, nil
}

func (b *builder) buildOwned(o *model.OwnedType, td *TypeDecl) error {
	for _, mem := range td.Members {
		if mem.Block != nil {
			return fmt.Errorf("%s: type %s: block attributes are not allowed on owned types", mem.Block.Pos, td.Name)
		}
		f := mem.Field
		if ot, ok := b.owned[f.Type]; ok {
			o.Owned = append(o.Owned, &model.OwnedNavigation{
				Name:       f.Name,
				Type:       ot,
				Collection: f.List,
				Storage:    model.StorageJSON,
				JSONName:   stringArg(attr(f.Attributes, "map")),
				Required:   !f.Optional && !f.List,
			})
			continue
		}
		p, err := b.scalar(f)
		if err != nil {
			return err
		}
		o.Properties = append(o.Properties, p)
	}
	return nil
}

func (b *builder) buildScalars(e *model.EntityType, d *ModelDecl) error {
	var keyNames []string
	for _, mem := range d.Members {
		if mem.Block != nil {
			if err := b.blockAttribute(e, mem.Block, &keyNames); err != nil {
				return err
			}
			continue
		}
		f := mem.Field
		if _, isEntity := b.entities[f.Type]; isEntity {
			continue
		}
		if ot, isOwned := b.owned[f.Type]; isOwned {
			nav := &model.OwnedNavigation{
				Name:       f.Name,
				Type:       ot,
				Collection: f.List,
				Storage:    model.StorageTableSplit,
				Column:     f.Name,
				Required:   !f.Optional && !f.List,
			}
			if a := attr(f.Attributes, "json"); a != nil {
				nav.Storage = model.StorageJSON
				if col := stringArg(a); col != "" {
					nav.Column = col
				}
			} else if col := stringArg(attr(f.Attributes, "map")); col != "" {
				nav.Column = col
			}
			if nav.Collection && nav.Storage != model.StorageJSON {
				return fmt.Errorf("%s: model %s: owned collection %s must be stored as @json", f.Pos, e.Name, f.Name)
			}
			e.Owned = append(e.Owned, nav)
			continue
		}
		p, err := b.scalar(f)
		if err != nil {
			return err
		}
		e.Properties = append(e.Properties, p)
		if attr(f.Attributes, "id") != nil {
			keyNames = append(keyNames, p.Name)
		}
	}

	for _, k := range keyNames {
		p := e.FindProperty(k)
		if p == nil {
			return fmt.Errorf("%s: model %s: key property %s not found", d.Pos, e.Name, k)
		}
		e.Key = append(e.Key, p)
	}
	return nil
}

func (b *builder) blockAttribute(e *model.EntityType, a *Attribute, keyNames *[]string) error {
	switch a.Name {
	case "map":
		e.Table = stringArg(a)
	case "schema":
		e.Schema = stringArg(a)
	case "set":
		e.SetName = stringArg(a)
	case "id":
		if len(a.Args) == 0 {
			return fmt.Errorf("%s: @@id needs a field list", a.Pos)
		}
		*keyNames = append(*keyNames, identList(a.Args[0].Value)...)
	case "filter":
		e.Filter = stringArg(a)
	case "abstract":
		e.Abstract = true
	case "temporal":
		t := &model.Temporal{}
		for _, arg := range a.Args {
			switch arg.Name {
			case "start":
				t.PeriodStart = valueString(arg.Value)
			case "end":
				t.PeriodEnd = valueString(arg.Value)
			case "history":
				t.HistoryTable = valueString(arg.Value)
			default:
				return fmt.Errorf("%s: @@temporal: unknown argument %q", a.Pos, arg.Name)
			}
		}
		e.Temporal = t
	case "discriminator":
		for _, arg := range a.Args {
			switch arg.Name {
			case "", "value":
				e.DiscriminatorValue = valueString(arg.Value)
			case "column":
				e.DiscriminatorColumn = valueString(arg.Value)
			default:
				return fmt.Errorf("%s: @@discriminator: unknown argument %q", a.Pos, arg.Name)
			}
		}
	default:
		return fmt.Errorf("%s: unknown block attribute @@%s", a.Pos, a.Name)
	}
	return nil
}

func (b *builder) scalar(f *Field) (*model.Property, error) {
	p := &model.Property{Name: f.Name, Column: f.Name, Nullable: f.Optional, Collection: f.List}
	if kind, ok := model.KindFromName(f.Type); ok {
		p.Kind = kind
	} else if en, ok := b.enums[f.Type]; ok {
		p.Kind = model.KindEnum
		p.Enum = en
	} else {
		return nil, fmt.Errorf("%s: field %s: unknown type %s", f.Pos, f.Name, f.Type)
	}
	for _, a := range f.Attributes {
		switch a.Name {
		case "id", "json":
		case "map":
			p.Column = stringArg(a)
		case "maxLength":
			p.MaxLength = intArg(a, 0)
		case "db.NVarChar":
			p.MaxLength = intArg(a, 0)
		case "db.VarChar":
			p.MaxLength = intArg(a, 0)
			p.NonUnicode = true
		case "db.NChar":
			p.MaxLength = intArg(a, 0)
			p.FixedLength = true
		case "db.Char":
			p.MaxLength = intArg(a, 0)
			p.FixedLength = true
			p.NonUnicode = true
		case "db.Decimal":
			p.Precision = intArg(a, 0)
			p.Scale = intArg(a, 1)
		default:
			return nil, fmt.Errorf("%s: field %s: unknown attribute @%s", a.Pos, f.Name, a.Name)
		}
	}
	return p, nil
}

func (b *builder) buildNavigations(e *model.EntityType, d *ModelDecl) error {
	for _, mem := range d.Members {
		if mem.Field == nil {
			continue
		}
		f := mem.Field
		target, ok := b.entities[f.Type]
		if !ok {
			continue
		}
		nav := &model.Navigation{
			Name:       f.Name,
			Declaring:  e,
			Target:     target,
			Collection: f.List,
		}
		if rel := attr(f.Attributes, "relation"); rel != nil {
			for _, arg := range rel.Args {
				switch arg.Name {
				case "":
					nav.RelationName = valueString(arg.Value)
				case "name":
					nav.RelationName = valueString(arg.Value)
				case "fields":
					for _, n := range identList(arg.Value) {
						p := e.FindProperty(n)
						if p == nil {
							return fmt.Errorf("%s: relation %s.%s: unknown field %s", rel.Pos, e.Name, f.Name, n)
						}
						nav.ForeignKey = append(nav.ForeignKey, p)
					}
				case "references":
					for _, n := range identList(arg.Value) {
						p := target.FindProperty(n)
						if p == nil {
							return fmt.Errorf("%s: relation %s.%s: unknown reference %s.%s", rel.Pos, e.Name, f.Name, target.Name, n)
						}
						nav.PrincipalKey = append(nav.PrincipalKey, p)
					}
				default:
					return fmt.Errorf("%s: @relation: unknown argument %q", rel.Pos, arg.Name)
				}
			}
		}
		if len(nav.ForeignKey) > 0 {
			if nav.Collection {
				return fmt.Errorf("%s: relation %s.%s: a collection cannot hold the foreign key", f.Pos, e.Name, f.Name)
			}
			if len(nav.PrincipalKey) == 0 {
				nav.PrincipalKey = target.KeyProperties()
			}
			nav.Dependent = true
			nav.Required = !f.Optional
			for _, fk := range nav.ForeignKey {
				if fk.Nullable {
					nav.Required = false
				}
			}
		}
		e.Navigations = append(e.Navigations, nav)
	}
	return nil
}

func attr(attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func stringArg(a *Attribute) string {
	if a == nil || len(a.Args) == 0 {
		return ""
	}
	return valueString(a.Args[0].Value)
}

func intArg(a *Attribute, i int) int {
	if a == nil || len(a.Args) <= i || a.Args[i].Value.Number == nil {
		return 0
	}
	n, _ := strconv.Atoi(*a.Args[i].Value.Number)
	return n
}

func valueString(v *Value) string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return *v.String
	case v.Ident != nil:
		return *v.Ident
	case v.Number != nil:
		return *v.Number
	}
	return ""
}

func identList(v *Value) []string {
	if v == nil {
		return nil
	}
	if v.List == nil {
		if s := valueString(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		out = append(out, strings.TrimSpace(valueString(item)))
	}
	return out
}
