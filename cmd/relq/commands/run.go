package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/relq/internal/diagnostics"
	"github.com/satishbabariya/relq/internal/ui"
	"github.com/satishbabariya/relq/pkg/relq"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run queries against a database",
	Long: `Run queries against the configured database and print the results.

The database is selected with --driver and --url, the driver and
database_url config keys, or the DATABASE_URL environment variable.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runQuery  string
	runParams map[string]string
	runFile   string
	runSplit  bool
)

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "Query text")
	runCmd.Flags().StringToStringVarP(&runParams, "param", "p", nil, "Binding for --query, as name=value")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "YAML query file")
	runCmd.Flags().BoolVar(&runSplit, "split", false, "Load collection includes with split queries")
	runCmd.Flags().String("driver", "", "Database driver: sqlite3, postgres, pgx, mysql or sqlserver")
	runCmd.Flags().String("url", "", "Database connection string")

	_ = viper.BindPFlag("driver", runCmd.Flags().Lookup("driver"))
	_ = viper.BindPFlag("database_url", runCmd.Flags().Lookup("url"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	queries, err := selectQueries(runQuery, runParams, runFile)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database configured; set --url or DATABASE_URL")
	}
	m, err := loadSchema()
	if err != nil {
		return err
	}

	opts := append(cfg.ClientOptions(),
		relq.WithLogger(diagnostics.Logger()),
		relq.WithFilterContext(queries.FilterContext()))
	if runSplit {
		opts = append(opts, relq.WithSplitQueries())
	}

	spinner, _ := ui.Spinner("Connecting to database...")
	client, err := relq.Open(cmd.Context(), m, opts...)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	defer client.Close()

	failed := 0
	for _, q := range queries.Queries {
		ui.PrintSection(q.Name)
		result, err := client.Query(cmd.Context(), q.Query, q.BindingsOf())
		if err != nil {
			ui.PrintError("%v", err)
			failed++
			continue
		}
		headers, rows := ui.Table(result)
		if err := ui.PrintTable(headers, rows); err != nil {
			return err
		}
		ui.PrintSuccess("%d rows", len(rows))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(queries.Queries))
	}
	return nil
}
