package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/compiler"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
	"github.com/satishbabariya/relq/internal/diagnostics"
	"github.com/satishbabariya/relq/internal/ui"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Print the SQL of queries",
	Long: `Translate queries to SQL for the configured dialect without a database.

Queries come from --query or from a YAML query file given with --file.
With --values the parameter values are printed as comments above each
command.`,
	Args: cobra.NoArgs,
	RunE: runTranslate,
}

var (
	translateQuery  string
	translateParams map[string]string
	translateFile   string
	translateValues bool
	translateSplit  bool
)

func init() {
	translateCmd.Flags().StringVarP(&translateQuery, "query", "q", "", "Query text")
	translateCmd.Flags().StringToStringVarP(&translateParams, "param", "p", nil, "Binding for --query, as name=value")
	translateCmd.Flags().StringVarP(&translateFile, "file", "f", "", "YAML query file")
	translateCmd.Flags().BoolVar(&translateValues, "values", false, "Print parameter values")
	translateCmd.Flags().BoolVar(&translateSplit, "split", false, "Load collection includes with split queries")

	rootCmd.AddCommand(translateCmd)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	queries, err := selectQueries(translateQuery, translateParams, translateFile)
	if err != nil {
		return err
	}
	m, err := loadSchema()
	if err != nil {
		return err
	}
	c, err := newCompiler(m, translateSplit)
	if err != nil {
		return err
	}
	return translateAll(cmd.Context(), c, queries, translateValues)
}

// newCompiler creates a compiler for the configured dialect.
func newCompiler(m *model.Model, split bool) (*compiler.Compiler, error) {
	dialect, err := parseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	opts := domain.DefaultOptions()
	opts.Dialect = dialect
	opts.ServerVersion = cfg.ServerVersion
	opts.NoTracking = !cfg.Query.Tracking
	opts.CacheSize = cfg.Query.CacheSize
	opts.MaxNavigationDepth = cfg.Query.MaxNavigationDepth
	opts.Logger = diagnostics.Logger()
	if split || cfg.Query.SplitDefault {
		opts.Splitting = domain.SplitQuery
	}
	return compiler.New(m, opts)
}

func parseDialect(s string) (domain.Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlserver", "mssql":
		return domain.SQLServer, nil
	case "sqlite", "sqlite3":
		return domain.SQLite, nil
	case "postgres", "postgresql", "pgx":
		return domain.PostgreSQL, nil
	case "mysql":
		return domain.MySQL, nil
	}
	return "", fmt.Errorf("unknown dialect %q", s)
}

func translateAll(ctx context.Context, c *compiler.Compiler, queries *QueryFile, values bool) error {
	failed := 0
	for _, q := range queries.Queries {
		ui.PrintSection(q.Name)
		bindings := q.BindingsOf()
		compiled, err := c.CompileText(ctx, q.Query, bindings)
		if err != nil {
			ui.PrintError("%v", err)
			failed++
			continue
		}
		if err := printCommands(compiled, bindings, queries.FilterContext(), values); err != nil {
			ui.PrintError("%v", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(queries.Queries))
	}
	return nil
}

func printCommands(q *compiler.CompiledQuery, bindings domain.Bindings, fctx domain.FilterContext, values bool) error {
	if !values {
		for _, cmd := range q.Commands() {
			ui.PrintSQL(cmd.SQL)
		}
		return nil
	}
	bound, err := q.Bind(bindings, fctx)
	if err != nil {
		return err
	}
	for i, cmd := range q.Commands() {
		ui.PrintSQL(sqlgen.ToQueryString(cmd.SQL, bound[i]))
	}
	return nil
}
