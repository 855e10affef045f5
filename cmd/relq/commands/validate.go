package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/filters"
	"github.com/satishbabariya/relq/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a schema file",
	Long: `Validate a schema file for syntax and semantic errors.

This command will:
- Parse the schema file
- Resolve inheritance, keys and navigations
- Translate the query filters of every entity
- Display the entity types`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("relq", "Validate Schema")

	m, err := loadSchema()
	if err != nil {
		return err
	}
	if _, err := filters.Build(m); err != nil {
		return fmt.Errorf("invalid query filter: %w", err)
	}

	headers, rows := entityTable(m)
	if err := ui.PrintTable(headers, rows); err != nil {
		return err
	}
	ui.PrintSuccess("%s is valid (%d entity types)", cfg.SchemaPath, len(rows))
	return nil
}

func entityTable(m *model.Model) ([]string, [][]string) {
	headers := []string{"Entity", "Table", "Key", "Properties", "Navigations", "Filter", "Temporal"}
	var rows [][]string
	for _, e := range m.Entities() {
		table := e.Table
		if e.Schema != "" {
			table = e.Schema + "." + table
		}
		var key []string
		for _, p := range e.KeyProperties() {
			key = append(key, p.Name)
		}
		name := e.Name
		if e.Base != nil {
			name += " : " + e.Base.Name
		}
		rows = append(rows, []string{
			name,
			table,
			strings.Join(key, ", "),
			fmt.Sprint(len(e.Properties)),
			fmt.Sprint(len(e.Navigations)),
			e.QueryFilter(),
			fmt.Sprint(e.IsTemporal()),
		})
	}
	return headers, rows
}
