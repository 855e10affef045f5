// Package compiler runs the query pipeline: translation, temporal
// rewriting, SQL generation and shaper construction, with compiled
// queries cached by structural key.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/cache"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/expr"
	"github.com/satishbabariya/relq/internal/core/query/filters"
	"github.com/satishbabariya/relq/internal/core/query/linq"
	"github.com/satishbabariya/relq/internal/core/query/params"
	"github.com/satishbabariya/relq/internal/core/query/shaper"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
	"github.com/satishbabariya/relq/internal/core/query/translator"
	"github.com/satishbabariya/relq/internal/diagnostics"
)

// CompiledQuery is an executable query. It is immutable and shared by
// every execution with the same key.
type CompiledQuery struct {
	Key   string
	Query expr.Query
	// Main loads the root results; Splits load split collection includes
	// in the order of Shaper.Splits.
	Main   *sqlgen.Command
	Splits []*sqlgen.Command
	Shaper *shaper.Shaper

	// Select and SplitSelects are the algebra the commands were rendered from.
	Select       *algebra.Select
	SplitSelects []*algebra.Select
	Parameters   []*algebra.Parameter
	Inlined      []string
}

// Commands returns the main command followed by the split commands.
func (q *CompiledQuery) Commands() []*sqlgen.Command {
	return append([]*sqlgen.Command{q.Main}, q.Splits...)
}

// Bind resolves the parameters of every command for one execution.
func (q *CompiledQuery) Bind(bindings domain.Bindings, fctx domain.FilterContext) ([][]domain.BoundParameter, error) {
	cmds := q.Commands()
	out := make([][]domain.BoundParameter, len(cmds))
	for i, c := range cmds {
		bound, err := params.Resolve(c.Parameters, bindings, fctx)
		if err != nil {
			return nil, err
		}
		out[i] = bound
	}
	return out, nil
}

// Compiler compiles queries against one model for one dialect. It is safe
// for concurrent use.
type Compiler struct {
	model      *model.Model
	filters    *filters.Table
	translator *translator.Translator
	generator  *sqlgen.Generator
	cache      *cache.Cache[*CompiledQuery]
	opts       domain.Options
	logger     *slog.Logger
}

// New creates a compiler for m. The model must be finalized.
func New(m *model.Model, opts domain.Options) (*Compiler, error) {
	opts = opts.Normalize()
	f, err := filters.Build(m)
	if err != nil {
		return nil, fmt.Errorf("building query filters: %w", err)
	}
	g, err := sqlgen.NewGenerator(opts.Dialect, opts.ServerVersion)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = diagnostics.Logger()
	}
	return &Compiler{
		model:      m,
		filters:    f,
		translator: translator.New(m, f, opts),
		generator:  g,
		cache:      cache.New[*CompiledQuery](opts.CacheSize),
		opts:       opts,
		logger:     logger,
	}, nil
}

// Model returns the model queries are compiled against.
func (c *Compiler) Model() *model.Model {
	return c.model
}

// Options returns the normalized options of the compiler.
func (c *Compiler) Options() domain.Options {
	return c.opts
}

// Logger returns the logger pipeline events are written to.
func (c *Compiler) Logger() *slog.Logger {
	return c.logger
}

// Stats returns compiled-query cache statistics.
func (c *Compiler) Stats() cache.Stats {
	return c.cache.Stats()
}

// Clear drops every compiled query.
func (c *Compiler) Clear() {
	c.cache.Clear()
}

// CompileText parses a query written in the query text language and compiles it.
func (c *Compiler) CompileText(ctx context.Context, text string, bindings domain.Bindings) (*CompiledQuery, error) {
	q, err := linq.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}
	return c.Compile(ctx, q, bindings)
}

// Compile returns the compiled form of q, translating it on a cache miss.
// Only the kinds and nullness of bindings affect the result, except for
// captured collections rendered as constant lists, whose values do.
func (c *Compiler) Compile(ctx context.Context, q expr.Query, bindings domain.Bindings) (*CompiledQuery, error) {
	key := c.Key(q, bindings)
	cq, hit, err := c.cache.GetOrCompile(key, func() (*CompiledQuery, error) {
		return c.compile(ctx, key, q, bindings)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		diagnostics.Event(ctx, c.logger, slog.LevelDebug, diagnostics.EventCompiledQueryReuse, "key", key)
	}
	return cq, nil
}

// Key returns the cache key of q when executed with bindings.
func (c *Compiler) Key(q expr.Query, bindings domain.Bindings) string {
	var h expr.Hasher
	h.WriteQuery(q)
	for _, name := range captured(q) {
		v := bindings[name]
		h.WriteKind(v)
		if c.translator.InlinesCollections() && isCollection(v) {
			items, _ := params.Elements(v)
			h.WriteValue(items)
		}
	}
	return h.Sum().String()
}

func (c *Compiler) compile(ctx context.Context, key string, q expr.Query, bindings domain.Bindings) (*CompiledQuery, error) {
	start := time.Now()
	res, err := c.translator.Translate(q, bindings)
	if err != nil {
		return nil, c.failed(ctx, err)
	}
	for _, name := range res.IgnoredIncludes {
		diagnostics.Event(ctx, c.logger, slog.LevelWarn, diagnostics.EventIncludeIgnored, "navigation", name)
	}

	cq := &CompiledQuery{
		Key:          key,
		Query:        q,
		Shaper:       res.Shaper,
		Select:       res.Select,
		SplitSelects: res.Splits,
		Parameters:   res.Parameters,
		Inlined:      res.Inlined,
	}
	if cq.Main, err = c.generator.Generate(res.Select); err != nil {
		return nil, c.failed(ctx, err)
	}
	for _, s := range res.Splits {
		cmd, err := c.generator.Generate(s)
		if err != nil {
			return nil, c.failed(ctx, err)
		}
		cq.Splits = append(cq.Splits, cmd)
	}

	diagnostics.Event(ctx, c.logger, slog.LevelDebug, diagnostics.EventQueryCompiled,
		"key", key,
		"dialect", string(c.opts.Dialect),
		"commands", 1+len(cq.Splits),
		"parameters", len(cq.Parameters),
		"duration", time.Since(start))
	return cq, nil
}

func (c *Compiler) failed(ctx context.Context, err error) error {
	diagnostics.Event(ctx, c.logger, slog.LevelWarn, diagnostics.EventTranslationFailed,
		"kind", domain.KindOf(err), "error", err.Error())
	return err
}

// captured returns the sorted names of the captured values q refers to.
func captured(q expr.Query) []string {
	seen := make(map[string]bool)
	expr.Inspect(q, func(n any) bool {
		if c, ok := n.(*expr.Captured); ok {
			seen[c.Name] = true
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isCollection(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(string); ok {
		return false
	}
	_, err := params.Elements(v)
	return err == nil
}

// Explain describes the compiled commands and result plan as markdown.
func (q *CompiledQuery) Explain() string {
	var sb strings.Builder
	sb.WriteString("## Commands\n\n")
	for i, cmd := range q.Commands() {
		if i == 0 {
			sb.WriteString("### Main\n\n")
		} else {
			fmt.Fprintf(&sb, "### Split %d\n\n", i)
		}
		sb.WriteString("```sql\n")
		sb.WriteString(cmd.SQL)
		sb.WriteString("\n```\n\n")
		if len(cmd.Parameters) > 0 {
			sb.WriteString("| Parameter | Source | Store type |\n|---|---|---|\n")
			for _, p := range cmd.Parameters {
				store := ""
				if p.Mapping != nil {
					store = p.Mapping.StoreType
				}
				fmt.Fprintf(&sb, "| `@%s` | %s | %s |\n", p.Name, p.Source.Key(), store)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("## Result plan\n\n```\n")
	sb.WriteString(shaper.Describe(q.Shaper))
	sb.WriteString("```\n")
	return sb.String()
}
