package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/relq/internal/config"
	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/model/schema"
	"github.com/satishbabariya/relq/internal/diagnostics"
	"github.com/satishbabariya/relq/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "relq",
	Short: "Translate and run entity queries as SQL",
	Long: `relq compiles queries over an entity schema to SQL for SQL Server,
SQLite, PostgreSQL and MySQL, runs them and prints the materialized results.

Configuration is read from .relq.yaml, RELQ_* environment variables and
.env files.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var cfg *config.Config

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("schema", "s", "", "Path to schema file")
	flags.StringP("dialect", "d", "", "SQL dialect: sqlserver, sqlite, postgres or mysql")
	flags.String("server-version", "", "Server version used for dialect features")
	flags.Bool("debug", false, "Log pipeline events to stderr")

	_ = viper.BindPFlag("schema_path", flags.Lookup("schema"))
	_ = viper.BindPFlag("dialect", flags.Lookup("dialect"))
	_ = viper.BindPFlag("server_version", flags.Lookup("server-version"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

// Execute is the main entry point for the CLI
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c
	diagnostics.Init(cfg.Debug)
	return nil
}

// loadSchema reads and finalizes the configured schema.
func loadSchema() (*model.Model, error) {
	path := cfg.SchemaPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return schema.Load(path, string(content))
}
