package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querykit/internal/queryir"
)

// Dialect selects placeholder style and type names.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts "sqlite", "sqlite3", "postgres" and "postgresql".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unknown SQL dialect %q (want sqlite or postgres)", s)
	}
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

func (d Dialect) castType(t queryir.CastType) (string, error) {
	switch t {
	case queryir.CastInteger:
		if d == Postgres {
			return "BIGINT", nil
		}
		return "INTEGER", nil
	case queryir.CastReal:
		if d == Postgres {
			return "DOUBLE PRECISION", nil
		}
		return "REAL", nil
	case queryir.CastText:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported cast type %q", t)
	}
}

// Quote quotes an identifier. Both dialects use ANSI double quotes.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
