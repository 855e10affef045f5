package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/relq/internal/ui"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show the commands and result plan of a query",
	Args:  cobra.NoArgs,
	RunE:  runExplain,
}

var (
	explainQuery  string
	explainParams map[string]string
	explainFile   string
	explainSplit  bool
)

func init() {
	explainCmd.Flags().StringVarP(&explainQuery, "query", "q", "", "Query text")
	explainCmd.Flags().StringToStringVarP(&explainParams, "param", "p", nil, "Binding for --query, as name=value")
	explainCmd.Flags().StringVarP(&explainFile, "file", "f", "", "YAML query file")
	explainCmd.Flags().BoolVar(&explainSplit, "split", false, "Load collection includes with split queries")

	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	queries, err := selectQueries(explainQuery, explainParams, explainFile)
	if err != nil {
		return err
	}
	m, err := loadSchema()
	if err != nil {
		return err
	}
	c, err := newCompiler(m, explainSplit)
	if err != nil {
		return err
	}
	for _, q := range queries.Queries {
		compiled, err := c.CompileText(cmd.Context(), q.Query, q.BindingsOf())
		if err != nil {
			return err
		}
		if err := ui.PrintMarkdown("# " + q.Name + "\n\n" + compiled.Explain()); err != nil {
			return err
		}
	}
	return nil
}
