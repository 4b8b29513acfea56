package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/query"
	"github.com/roach88/querykit/internal/querysql"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "querykit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1000, cfg.Query.MaxPageSize)
	assert.Equal(t, querysql.SQLite, cfg.Database.Dialect)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
query:
  default_page_size: 20
  max_page_size: 200
  distinct_strategy: GROUP_BY
  allow_deep_dive: false
database:
  driver: sqlite3
  path: shop.db
schema:
  dir: ./schema
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Query.DefaultPageSize)
	assert.Equal(t, 200, cfg.Query.MaxPageSize)
	assert.Equal(t, query.StrategyGroupBy, cfg.Query.DistinctStrategy)
	assert.False(t, cfg.Query.AllowDeepDive)
	assert.True(t, cfg.Query.ReadOnly, "unset keys keep their defaults")
	assert.Equal(t, Database{Dialect: querysql.SQLite, Path: "shop.db"}, cfg.Database)
	assert.Equal(t, "./schema", cfg.SchemaDir)
}

func TestLoad_WorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "querykit.yaml"), []byte("query:\n  max_page_size: 25\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Query.MaxPageSize)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "query:\n  max_page_size: 200\n")
	t.Setenv("QUERYKIT_QUERY_MAX_PAGE_SIZE", "50")
	t.Setenv("QUERYKIT_DATABASE_DRIVER", "postgres")
	t.Setenv("QUERYKIT_DATABASE_DSN", "postgres://localhost/shop")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Query.MaxPageSize)
	assert.Equal(t, querysql.Postgres, cfg.Database.Dialect)
	assert.Equal(t, "postgres://localhost/shop", cfg.Database.DSN)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{"bad strategy", "query:\n  distinct_strategy: hash\n", "distinct strategy"},
		{"default above max", "query:\n  default_page_size: 50\n  max_page_size: 10\n", "exceeds"},
		{"bad driver", "database:\n  driver: oracle\n", "unknown SQL dialect"},
		{"postgres without dsn", "database:\n  driver: postgres\n", "requires a dsn"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}
