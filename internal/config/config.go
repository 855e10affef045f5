// Package config loads CLI configuration from .relq.yaml, RELQ_*
// environment variables and .env files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/relq/pkg/relq"
)

var AppFs = afero.NewOsFs()

// Config holds the application configuration
type Config struct {
	SchemaPath    string
	Dialect       string
	Driver        string
	DatabaseURL   string
	ServerVersion string
	Debug         bool
	Query         QueryConfig
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	SplitDefault       bool
	Tracking           bool
	CacheSize          int
	MaxNavigationDepth int
	Timeout            time.Duration
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("schema_path", "schema.relq")
	v.SetDefault("dialect", "sqlserver")
	v.SetDefault("driver", "sqlite3")
	v.SetDefault("query.split_default", false)
	v.SetDefault("query.tracking", true)
	v.SetDefault("query.cache_size", 256)
	v.SetDefault("query.max_navigation_depth", 16)
	v.SetDefault("query.timeout", "30s")
	v.SetDefault("debug", false)
}

// LoadConfig loads configuration from various sources
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration through v. A missing config file is not an
// error.
func Load(v *viper.Viper) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v.SetFs(AppFs)
	v.SetConfigName(".relq")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "relq"))

	v.SetEnvPrefix("RELQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATABASE_URL is honored without the prefix.
	_ = v.BindEnv("database_url", "RELQ_DATABASE_URL", "DATABASE_URL")

	SetDefaults(v)

	loadEnvFiles()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return &Config{
		SchemaPath:    v.GetString("schema_path"),
		Dialect:       v.GetString("dialect"),
		Driver:        v.GetString("driver"),
		DatabaseURL:   v.GetString("database_url"),
		ServerVersion: v.GetString("server_version"),
		Debug:         v.GetBool("debug"),
		Query: QueryConfig{
			SplitDefault:       v.GetBool("query.split_default"),
			Tracking:           v.GetBool("query.tracking"),
			CacheSize:          v.GetInt("query.cache_size"),
			MaxNavigationDepth: v.GetInt("query.max_navigation_depth"),
			Timeout:            v.GetDuration("query.timeout"),
		},
	}, nil
}

// loadEnvFiles loads .env, then .env.local with higher priority.
func loadEnvFiles() {
	if _, err := AppFs.Stat(".env"); err == nil {
		if env, err := readEnv(".env"); err == nil {
			setEnv(env, false)
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if env, err := readEnv(".env.local"); err == nil {
			setEnv(env, true)
		}
	}
}

func readEnv(name string) (map[string]string, error) {
	f, err := AppFs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return godotenv.Parse(f)
}

// setEnv exports env. Existing variables are kept unless overload is set.
func setEnv(env map[string]string, overload bool) {
	for k, val := range env {
		if _, ok := os.LookupEnv(k); ok && !overload {
			continue
		}
		os.Setenv(k, val)
	}
}

// ClientOptions converts the configuration to client options.
func (c *Config) ClientOptions() []relq.Option {
	opts := []relq.Option{
		relq.WithDriver(c.Driver),
		relq.WithDatabaseURL(c.DatabaseURL),
		relq.WithServerVersion(c.ServerVersion),
		relq.WithCacheSize(c.Query.CacheSize),
		relq.WithMaxNavigationDepth(c.Query.MaxNavigationDepth),
	}
	if c.Query.SplitDefault {
		opts = append(opts, relq.WithSplitQueries())
	}
	if !c.Query.Tracking {
		opts = append(opts, relq.WithNoTracking())
	}
	if c.Query.Timeout > 0 {
		opts = append(opts, relq.WithQueryTimeout(c.Query.Timeout))
	}
	return opts
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config) error {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("schema_path", cfg.SchemaPath)
	v.Set("dialect", cfg.Dialect)
	v.Set("driver", cfg.Driver)
	v.Set("server_version", cfg.ServerVersion)
	v.Set("query.split_default", cfg.Query.SplitDefault)
	v.Set("query.tracking", cfg.Query.Tracking)
	v.Set("query.cache_size", cfg.Query.CacheSize)
	v.Set("query.max_navigation_depth", cfg.Query.MaxNavigationDepth)

	home, err := homedir.Dir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(home, ".config", "relq")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return err
	}

	return v.WriteConfigAs(filepath.Join(configPath, ".relq.yaml"))
}
