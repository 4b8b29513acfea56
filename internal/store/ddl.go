package store

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/schema"
)

// Table is seed data for one table, inserted in row order.
type Table struct {
	Name string
	Rows []map[string]any
}

// DDL returns CREATE TABLE statements for every entity table and every
// many-to-many link table in s. Foreign key columns that only appear on the
// other side of a relation are added to the table that holds them.
func DDL(s *schema.Schema, d querysql.Dialect) ([]string, error) {
	type column struct{ name, typ string }
	tables := map[string][]column{}
	keys := map[string]string{}
	var order []string

	add := func(table, name, typ string) {
		if _, ok := tables[table]; !ok {
			order = append(order, table)
		}
		for _, c := range tables[table] {
			if c.name == name {
				return
			}
		}
		tables[table] = append(tables[table], column{name, typ})
	}

	for _, e := range s.Entities() {
		keys[e.Table] = e.Key
		for _, f := range e.Columns() {
			typ, err := columnType(f.Type, d)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
			}
			add(e.Table, f.Column, typ)
		}
	}

	for _, e := range s.Entities() {
		for _, f := range e.Fields {
			rel := f.Relation
			if rel == nil {
				continue
			}
			target, ok := s.Entity(rel.Target)
			if !ok {
				return nil, fmt.Errorf("%s.%s: unknown target %q", e.Name, f.Name, rel.Target)
			}
			switch rel.Kind {
			case schema.ManyToOne, schema.OneToOne:
				add(e.Table, rel.Column, keyType(target, d))
			case schema.OneToMany:
				add(target.Table, rel.Remote, keyType(e, d))
			case schema.ManyToMany:
				add(rel.Through, rel.ThroughLocal, keyType(e, d))
				add(rel.Through, rel.ThroughRemote, keyType(target, d))
			}
		}
	}

	stmts := make([]string, 0, len(order))
	for _, table := range order {
		var defs []string
		for _, c := range tables[table] {
			def := querysql.Quote(c.name) + " " + c.typ
			if c.name == keys[table] {
				def += " PRIMARY KEY"
			}
			defs = append(defs, def)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", querysql.Quote(table), strings.Join(defs, ", ")))
	}
	return stmts, nil
}

func columnType(t schema.FieldType, d querysql.Dialect) (string, error) {
	pg := d == querysql.Postgres
	switch t {
	case schema.TypeInt:
		if pg {
			return "BIGINT", nil
		}
		return "INTEGER", nil
	case schema.TypeFloat:
		if pg {
			return "DOUBLE PRECISION", nil
		}
		return "REAL", nil
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeTime:
		if pg {
			return "TIMESTAMPTZ", nil
		}
		return "DATETIME", nil
	case schema.TypeString, schema.TypeEnum:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported field type %q", t)
	}
}

func keyType(e *schema.Entity, d querysql.Dialect) string {
	if k := e.KeyField(); k != nil {
		if typ, err := columnType(k.Type, d); err == nil {
			return typ
		}
	}
	return "TEXT"
}

// insertStatement builds an INSERT for row with columns in name order.
func insertStatement(table string, row map[string]any, d querysql.Dialect) (string, []any, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	values := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = querysql.Quote(c)
		values[i] = row[c]
	}

	format := sq.PlaceholderFormat(sq.Question)
	if d == querysql.Postgres {
		format = sq.Dollar
	}
	query, args, err := sq.Insert(querysql.Quote(table)).
		Columns(quoted...).
		Values(values...).
		PlaceholderFormat(format).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert into %s: %w", table, err)
	}
	return query, args, nil
}
