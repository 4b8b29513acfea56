// Package config loads querykit settings from a YAML file and QUERYKIT_
// environment variables.
//
// Precedence, highest first: environment, file, defaults. Keys are nested
// in the file and flattened with underscores in the environment:
//
//	query:
//	  max_page_size: 500        # QUERYKIT_QUERY_MAX_PAGE_SIZE
//	database:
//	  driver: postgres          # QUERYKIT_DATABASE_DRIVER
//	  dsn: postgres://...       # QUERYKIT_DATABASE_DSN
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/querysql"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUERYKIT"

// FileName is the config file looked up in the working directory when no
// explicit path is given.
const FileName = "querykit"

// Config is the full set of settings.
type Config struct {
	Query    query.Config
	Database Database

	// SchemaDir holds the CUE entity definitions.
	SchemaDir string
}

// Database selects and locates the executor.
type Database struct {
	Dialect querysql.Dialect

	// Path is the SQLite file; ":memory:" for a private database.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// Default returns query.DefaultConfig with an in-memory SQLite database.
func Default() Config {
	return Config{
		Query:    query.DefaultConfig(),
		Database: Database{Dialect: querysql.SQLite, Path: ":memory:"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("query.default_page_size", d.Query.DefaultPageSize)
	v.SetDefault("query.max_page_size", d.Query.MaxPageSize)
	v.SetDefault("query.distinct_strategy", string(d.Query.DistinctStrategy))
	v.SetDefault("query.allow_deep_dive", d.Query.AllowDeepDive)
	v.SetDefault("query.read_only", d.Query.ReadOnly)
	v.SetDefault("database.driver", string(d.Database.Dialect))
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.dsn", "")
	v.SetDefault("schema.dir", "")
}

// Load reads settings. An empty path looks for querykit.yaml in the working
// directory and falls back to defaults when there is none; an explicit path
// must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Default()
	cfg.Query.DefaultPageSize = v.GetInt("query.default_page_size")
	cfg.Query.MaxPageSize = v.GetInt("query.max_page_size")
	cfg.Query.DistinctStrategy = query.DistinctStrategy(strings.ToLower(v.GetString("query.distinct_strategy")))
	cfg.Query.AllowDeepDive = v.GetBool("query.allow_deep_dive")
	cfg.Query.ReadOnly = v.GetBool("query.read_only")
	if err := cfg.Query.Validate(); err != nil {
		return Config{}, fmt.Errorf("query config: %w", err)
	}

	dialect, err := querysql.ParseDialect(v.GetString("database.driver"))
	if err != nil {
		return Config{}, fmt.Errorf("database config: %w", err)
	}
	cfg.Database = Database{
		Dialect: dialect,
		Path:    v.GetString("database.path"),
		DSN:     v.GetString("database.dsn"),
	}
	if dialect == querysql.Postgres && cfg.Database.DSN == "" {
		return Config{}, fmt.Errorf("database config: postgres requires a dsn")
	}

	cfg.SchemaDir = v.GetString("schema.dir")
	return cfg, nil
}
