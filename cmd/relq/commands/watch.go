package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relq/internal/ui"
	"github.com/satishbabariya/relq/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-translate queries when the schema or query file changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var (
	watchFile   string
	watchValues bool
	watchSplit  bool
)

func init() {
	watchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "YAML query file")
	watchCmd.Flags().BoolVar(&watchValues, "values", false, "Print parameter values")
	watchCmd.Flags().BoolVar(&watchSplit, "split", false, "Load collection includes with split queries")
	_ = watchCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.NewWatcher([]string{cfg.SchemaPath, watchFile}, func(changed string) error {
		return retranslate(ctx, changed)
	}, func(err error) {
		ui.PrintError("%v", err)
	})
	if err != nil {
		return err
	}

	ui.PrintHeader("relq", "Watching "+cfg.SchemaPath+" and "+watchFile)
	return w.Run(ctx)
}

// retranslate reloads the schema and the query file and prints the SQL
// of every query.
func retranslate(ctx context.Context, changed string) error {
	if changed != "" {
		ui.PrintWarning("%s changed", changed)
	}
	queries, err := LoadQueryFile(watchFile)
	if err != nil {
		return err
	}
	m, err := loadSchema()
	if err != nil {
		return err
	}
	c, err := newCompiler(m, watchSplit)
	if err != nil {
		return err
	}
	return translateAll(ctx, c, queries, watchValues)
}
