package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roach88/querykit/internal/querysql"
	"github.com/roach88/querykit/internal/testutil"
)

// createTestStore opens a file-backed store with the shop tables seeded.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.ApplySchema(ctx, testutil.ShopSchema()); err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}
	if err := s.Seed(ctx, shopTables()...); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return s
}

func shopTables() []Table {
	var out []Table
	for _, st := range testutil.ShopRows() {
		out = append(out, Table{Name: st.Table, Rows: st.Rows})
	}
	return out
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.ApplySchema(ctx, testutil.ShopSchema()); err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}

	// The single pooled connection keeps the in-memory tables visible.
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM "orders"`).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 0 {
		t.Errorf("orders = %d, want 0", n)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value string
			if err := s.DB().QueryRow("PRAGMA " + tt.name).Scan(&value); err != nil {
				t.Fatalf("failed to query %s: %v", tt.name, err)
			}
			if value != tt.expected {
				t.Errorf("%s = %q, expected %q", tt.name, value, tt.expected)
			}
		})
	}
}

func TestApplySchema_Idempotent(t *testing.T) {
	s := createTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.ApplySchema(context.Background(), testutil.ShopSchema()); err != nil {
			t.Fatalf("ApplySchema() iteration %d failed: %v", i, err)
		}
	}

	for _, table := range []string{"customers", "orders", "order_lines", "tags", "order_tags", "warehouses"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestDDL(t *testing.T) {
	stmts, err := DDL(testutil.ShopSchema(), querysql.SQLite)
	if err != nil {
		t.Fatalf("DDL() failed: %v", err)
	}
	all := strings.Join(stmts, "\n")

	want := []string{
		`CREATE TABLE IF NOT EXISTS "orders" ("id" INTEGER PRIMARY KEY, "number" TEXT, "status" TEXT, "total" REAL, "quantity" INTEGER, "created" DATETIME, "note" TEXT, "region" TEXT, "customer_id" INTEGER)`,
		`CREATE TABLE IF NOT EXISTS "order_lines" ("id" INTEGER PRIMARY KEY, "sku" TEXT, "amount" REAL, "qty" INTEGER, "order_id" INTEGER)`,
		`CREATE TABLE IF NOT EXISTS "order_tags" ("order_id" INTEGER, "tag_id" INTEGER)`,
		`"active" BOOLEAN`,
	}
	for _, w := range want {
		if !strings.Contains(all, w) {
			t.Errorf("DDL missing %s\ngot:\n%s", w, all)
		}
	}

	stmts, err = DDL(testutil.ShopSchema(), querysql.Postgres)
	if err != nil {
		t.Fatalf("DDL() failed: %v", err)
	}
	if all := strings.Join(stmts, "\n"); !strings.Contains(all, `"created" TIMESTAMPTZ`) || !strings.Contains(all, `"id" BIGINT PRIMARY KEY`) {
		t.Errorf("postgres DDL uses wrong types:\n%s", all)
	}
}

func TestInsertStatement(t *testing.T) {
	query, args, err := insertStatement("tags", map[string]any{"name": "urgent", "id": 1}, querysql.Postgres)
	if err != nil {
		t.Fatalf("insertStatement() failed: %v", err)
	}
	if want := `INSERT INTO "tags" ("id","name") VALUES ($1,$2)`; query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 2 || args[0] != 1 || args[1] != "urgent" {
		t.Errorf("args = %v", args)
	}
}
