// Package translator turns query expression trees into relational algebra
// and the result plans that rebuild objects from rows.
package translator

import (
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/filters"
	"github.com/satishbabariya/relq/internal/core/query/navigation"
	"github.com/satishbabariya/relq/internal/core/query/params"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
)

// Translator translates queries against one model. It is safe for
// concurrent use; every translation keeps its own state.
type Translator struct {
	model   *model.Model
	filters *filters.Table
	opts    domain.Options
	inline  bool
}

// New creates a translator. filters may be nil.
func New(m *model.Model, f *filters.Table, opts domain.Options) *Translator {
	opts = opts.Normalize()
	return &Translator{
		model:   m,
		filters: f,
		opts:    opts,
		inline:  !sqlgen.FeaturesOf(opts.Dialect, opts.ServerVersion).JSONTables,
	}
}

// InlinesCollections reports whether captured collections are rendered as
// constant lists. Their values are then part of the compiled command.
func (t *Translator) InlinesCollections() bool {
	return t.inline
}

// Result is a translated query.
type Result struct {
	Select *algebra.Select
	// Splits load split collection includes, in the order of the shaper's splits.
	Splits     []*algebra.Select
	Shaper     *shaper.Shaper
	Parameters []*algebra.Parameter
	// Inlined names the captured collections rendered as constants.
	Inlined []string
	// IgnoredIncludes names the navigations of includes whose entity is
	// not part of the result.
	IgnoredIncludes []string
}

// Translate translates q. bindings supplies the captured values known at
// compile time; only their kinds, nullness and inlined collections shape
// the result.
func (t *Translator) Translate(q expr.Query, bindings domain.Bindings) (*Result, error) {
	tr := t.begin(q, bindings)
	res, err := tr.run()
	if err != nil {
		return nil, domain.NewTranslationError(err, "", "")
	}
	return res, nil
}

type filterFrame struct {
	entity string
	scope  string
}

// translation is the state of one Translate call.
type translation struct {
	*Translator
	binder   *params.Binder
	guard    *filters.Guard
	memo     *navigation.Memo[*entityShape]
	bindings domain.Bindings
	split    bool
	tracking bool
	frames   []filterFrame
	inlined  []string
	nextID   int

	includes     []*navigation.IncludeTree
	usedIncludes map[*navigation.IncludeTree]bool
	// typedJSON expands owned JSON collections to typed columns; it is set
	// while translating subqueries that fold to a single value.
	typedJSON bool

	body expr.Query
	term *expr.Terminal
}

type query struct {
	sel   *algebra.Select
	shape shape
	// defaultIfEmpty marks a sequence that yields one null element when
	// empty; only joins honor it.
	defaultIfEmpty bool
}

func (t *Translator) begin(q expr.Query, bindings domain.Bindings) *translation {
	opts := expr.Options(q)
	tr := &translation{
		Translator: t,
		binder:     params.NewBinder(),
		guard:      filters.NewGuard(opts[expr.IgnoreQueryFilters]),
		memo:       navigation.NewMemo[*entityShape](),
		bindings:   bindings,
		split:      t.opts.Splitting == domain.SplitQuery,
		tracking:   !t.opts.NoTracking,
		body:       q,

		usedIncludes: make(map[*navigation.IncludeTree]bool),
	}
	switch {
	case opts[expr.AsSplitQuery]:
		tr.split = true
	case opts[expr.AsSingleQuery]:
		tr.split = false
	}
	switch {
	case opts[expr.AsTracking]:
		tr.tracking = true
	case opts[expr.AsNoTracking]:
		tr.tracking = false
	}
	if term, ok := q.(*expr.Terminal); ok {
		tr.term = term
		tr.body = term.Source
	}
	return tr
}

func (t *translation) run() (*Result, error) {
	var (
		res *Result
		err error
	)
	switch {
	case t.term != nil && !t.term.Op.IsElement():
		res, err = t.scalarRoot()
	default:
		res, err = t.sequenceRoot()
	}
	if err != nil {
		return nil, err
	}
	res.Parameters = t.binder.Parameters()
	res.Inlined = t.inlined
	res.Shaper.Tracking = t.tracking
	for _, tree := range t.includes {
		if t.usedIncludes[tree] {
			continue
		}
		for _, n := range tree.Roots() {
			res.IgnoredIncludes = append(res.IgnoredIncludes, n.Name)
		}
	}
	return res, nil
}

// translateRoot translates the query body, applying an element terminal's
// predicate and row limit.
func (t *translation) translateRoot() (*query, error) {
	q, err := t.query(t.body, nil)
	if err != nil {
		return nil, err
	}
	if t.term == nil || !t.term.Op.IsElement() {
		return q, nil
	}
	if err := t.limitToElement(q, t.term, nil); err != nil {
		return nil, err
	}
	return q, nil
}

// limitToElement applies the predicate of an element terminal and limits
// the rows read: one for First, two for Single so that a second row can be
// detected.
func (t *translation) limitToElement(q *query, term *expr.Terminal, outer env) error {
	if term.Arg != nil {
		if err := t.filter(q, term.Arg, outer); err != nil {
			return err
		}
	}
	if q.sel.Limit != nil {
		t.pushdown(q)
	}
	n := 1
	if term.Op == expr.Single || term.Op == expr.SingleOrDefault {
		n = 2
	}
	q.sel.Limit = &algebra.Constant{Value: n, Mapping: algebra.IntMapping}
	return nil
}

func (t *translation) query(q expr.Query, outer env) (*query, error) {
	switch n := q.(type) {
	case *expr.Source:
		return t.source(n)
	case *expr.FromSQL:
		return t.fromSQL(n)
	case *expr.CollectionRef:
		sh, err := t.scalar(n.Collection, outer)
		if err != nil {
			return nil, err
		}
		return t.sequence(sh, n.Collection)
	case *expr.Where:
		return t.where(n, outer)
	case *expr.Select:
		return t.selectOp(n, outer)
	case *expr.SelectMany:
		return t.selectMany(n, outer)
	case *expr.Join:
		return t.join(n, outer)
	case *expr.GroupJoin:
		return t.groupJoin(n, outer)
	case *expr.GroupBy:
		return t.groupBy(n, outer)
	case *expr.SetOp:
		return t.setOp(n, outer)
	case *expr.OrderBy:
		return t.orderBy(n, outer)
	case *expr.Skip:
		return t.skip(n, outer)
	case *expr.Take:
		return t.take(n, outer)
	case *expr.Distinct:
		return t.distinct(n, outer)
	case *expr.DefaultIfEmpty:
		src, err := t.query(n.Source, outer)
		if err != nil {
			return nil, err
		}
		src.defaultIfEmpty = true
		return src, nil
	case *expr.OfType:
		return t.ofType(n, outer)
	case *expr.Include:
		return t.include(n, outer)
	case *expr.Option:
		return t.query(n.Source, outer)
	case *expr.Temporal:
		return t.temporal(n, outer)
	case *expr.Terminal:
		return nil, domain.Errorf(domain.ErrUnsupported, n.Op.String(), "", "a terminal operator must end the query")
	}
	return nil, domain.Errorf(domain.ErrUnsupported, "query", "", "operator %T", q)
}

// pushdown moves the select of q into a derived table and rewrites its
// shape to read from it.
func (t *translation) pushdown(q *query) *algebra.Pushdown {
	pd := algebra.PushDown(q.sel)
	q.shape = remap(q.shape, pd)
	touch(q.shape)
	if len(pd.Inner.Projection) == 0 {
		pd.Inner.AddProjection(&algebra.Constant{Value: 1, Mapping: algebra.IntMapping}, "empty")
	}
	q.sel = pd.Outer
	return pd
}

// newEntity creates the shape of entity e read from table.
func (t *translation) newEntity(e *model.EntityType, table algebra.TableSource, sel *algebra.Select, path navigation.Path) *entityShape {
	t.nextID++
	return &entityShape{
		entity: e,
		table:  table,
		sel:    sel,
		read:   tableReader(table, false),
		id:     t.nextID,
		path:   path,
	}
}

func (t *translation) rootPath(e *model.EntityType) navigation.Path {
	return navigation.NewPath(e.Name, t.opts.MaxNavigationDepth)
}

// entityQuery selects the rows of e from table: correlated to an owner
// when correlate is set, restricted to e's hierarchy branch and filtered by
// the query filter of e's hierarchy.
func (t *translation) entityQuery(e *model.EntityType, table algebra.TableSource, path navigation.Path, scope string, correlate func(*entityShape) algebra.SQLExpr) (*query, error) {
	sel := algebra.NewSelect(table)
	sh := t.newEntity(e, table, sel, path)
	if correlate != nil {
		sel.AddPredicate(correlate(sh))
	}
	if d := e.Discriminator(); d != nil {
		if pred := navigation.DiscriminatorPredicate(e, sh.property(d)); pred != nil {
			sel.AddPredicate(pred)
		}
	}
	if err := t.applyFilter(sel, sh, scope); err != nil {
		return nil, err
	}
	sel.Identifier = sh.keys()
	return &query{sel: sel, shape: sh}, nil
}

// applyFilter adds the query filter of sh's hierarchy to sel unless the
// filter is being expanded already.
func (t *translation) applyFilter(sel *algebra.Select, sh *entityShape, scope string) error {
	f := t.guard.Applies(t.filters, sh.entity)
	if f == nil {
		return nil
	}
	leave := t.guard.Enter(sh.entity)
	t.frames = append(t.frames, filterFrame{entity: f.Entity.Name, scope: scope})
	defer func() {
		t.frames = t.frames[:len(t.frames)-1]
		leave()
	}()
	pred, err := t.condition(f.Lambda, nil, sh)
	if err != nil {
		return err
	}
	addPredicate(sel, pred)
	return nil
}

func tableFor(e *model.EntityType, derivedFrom algebra.TableSource) *algebra.TableExpr {
	return &algebra.TableExpr{Name: e.Table, Schema: e.Schema, Entity: e, DerivedFrom: derivedFrom}
}

// addPredicate ANDs pred into sel, dropping constant true.
func addPredicate(sel *algebra.Select, pred algebra.SQLExpr) {
	if c, ok := pred.(*algebra.Constant); ok && c.Value == true && c.Mapping == nil {
		return
	}
	sel.AddPredicate(pred)
}
