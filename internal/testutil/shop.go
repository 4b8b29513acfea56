// Package testutil provides the shared "shop" fixture: a small schema with
// every relation kind, and seed rows whose query results the package tests
// assert against.
package testutil

import (
	"time"

	"github.com/roach88/querykit/internal/schema"
)

// ShopSchema returns a fresh copy of the fixture schema:
//
//	Customer 1-n Order n-1 Customer
//	Order    1-n OrderLine
//	Order    n-m Tag (through order_tags)
//	Order    ~   Warehouse (unrelated, correlated on region)
//
// Order.customerName is an alias for customer.name.
func ShopSchema() *schema.Schema {
	s, err := schema.New(
		&schema.Entity{
			Name: "Customer", Table: "customers", Key: "id",
			Search: []string{"name", "email"},
			Fields: []*schema.Field{
				{Name: "id", Type: schema.TypeInt},
				{Name: "name", Type: schema.TypeString},
				{Name: "email", Type: schema.TypeString},
				{Name: "tier", Type: schema.TypeEnum, Enum: []string{"BRONZE", "SILVER", "GOLD"}},
				{Name: "active", Type: schema.TypeBool},
				{Name: "region", Type: schema.TypeString},
				{Name: "orders", Relation: &schema.Relation{Kind: schema.OneToMany, Target: "Order", Remote: "customer_id"}},
			},
		},
		&schema.Entity{
			Name: "Order", Table: "orders", Key: "id",
			Search: []string{"number", "note"},
			Fields: []*schema.Field{
				{Name: "id", Type: schema.TypeInt},
				{Name: "number", Type: schema.TypeString},
				{Name: "status", Type: schema.TypeEnum, Enum: []string{"NEW", "PAID", "SHIPPED", "CANCELLED"}},
				{Name: "total", Type: schema.TypeFloat},
				{Name: "quantity", Type: schema.TypeInt},
				{Name: "created", Type: schema.TypeTime},
				{Name: "note", Type: schema.TypeString},
				{Name: "region", Type: schema.TypeString},
				{Name: "customer", Relation: &schema.Relation{Kind: schema.ManyToOne, Target: "Customer", Column: "customer_id"}},
				{Name: "lines", Relation: &schema.Relation{Kind: schema.OneToMany, Target: "OrderLine", Remote: "order_id"}},
				{Name: "tags", Relation: &schema.Relation{
					Kind: schema.ManyToMany, Target: "Tag",
					Through: "order_tags", ThroughLocal: "order_id", ThroughRemote: "tag_id",
				}},
				{Name: "warehouse", Relation: &schema.Relation{Kind: schema.Unrelated, Target: "Warehouse", Column: "region", Remote: "region"}},
				{Name: "customerName", Alias: "customer.name"},
			},
		},
		&schema.Entity{
			Name: "OrderLine", Table: "order_lines", Key: "id",
			Fields: []*schema.Field{
				{Name: "id", Type: schema.TypeInt},
				{Name: "sku", Type: schema.TypeString},
				{Name: "amount", Type: schema.TypeFloat},
				{Name: "qty", Type: schema.TypeInt},
				{Name: "order", Relation: &schema.Relation{Kind: schema.ManyToOne, Target: "Order", Column: "order_id"}},
			},
		},
		&schema.Entity{
			Name: "Tag", Table: "tags", Key: "id",
			Fields: []*schema.Field{
				{Name: "id", Type: schema.TypeInt},
				{Name: "name", Type: schema.TypeString},
			},
		},
		&schema.Entity{
			Name: "Warehouse", Table: "warehouses", Key: "id",
			Fields: []*schema.Field{
				{Name: "id", Type: schema.TypeInt},
				{Name: "name", Type: schema.TypeString},
				{Name: "region", Type: schema.TypeString},
			},
		},
	)
	if err != nil {
		panic("testutil: invalid shop schema: " + err.Error())
	}
	return s
}

// Row is one seed row keyed by column name.
type Row = map[string]any

// SeedTable is the rows for one table, in insertion order.
type SeedTable struct {
	Table string
	Rows  []Row
}

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

// ShopRows returns the seed data, parents before children.
//
//	order  customer  status     total  lines            tags             region
//	1      Alice     PAID       100    SKU-A, SKU-B     urgent, fragile  north
//	2      Alice     NEW        50     SKU-A            urgent           north
//	3      Bob       SHIPPED    75.5   SKU-C            bulk             south
//	4      Bob       CANCELLED  20     -                -                south
//	5      -         PAID       10     -                -                west
//
// Warehouses exist for north and south only.
func ShopRows() []SeedTable {
	return []SeedTable{
		{Table: "customers", Rows: []Row{
			{"id": 1, "name": "Alice", "email": "alice@example.com", "tier": "GOLD", "active": true, "region": "north"},
			{"id": 2, "name": "Bob", "email": "bob@example.com", "tier": "SILVER", "active": false, "region": "south"},
			{"id": 3, "name": "Carol", "email": "carol@example.com", "tier": "BRONZE", "active": true, "region": "east"},
		}},
		{Table: "orders", Rows: []Row{
			{"id": 1, "number": "A-1", "status": "PAID", "total": 100.0, "quantity": 2, "created": day(time.January, 5), "note": "rush", "region": "north", "customer_id": 1},
			{"id": 2, "number": "A-2", "status": "NEW", "total": 50.0, "quantity": 1, "created": day(time.February, 10), "note": "", "region": "north", "customer_id": 1},
			{"id": 3, "number": "B-1", "status": "SHIPPED", "total": 75.5, "quantity": 3, "created": day(time.March, 15), "note": nil, "region": "south", "customer_id": 2},
			{"id": 4, "number": "B-2", "status": "CANCELLED", "total": 20.0, "quantity": 1, "created": day(time.April, 20), "note": "gift wrap", "region": "south", "customer_id": 2},
			{"id": 5, "number": "X-1", "status": "PAID", "total": 10.0, "quantity": 5, "created": day(time.May, 25), "note": nil, "region": "west", "customer_id": nil},
		}},
		{Table: "order_lines", Rows: []Row{
			{"id": 1, "sku": "SKU-A", "amount": 60.0, "qty": 1, "order_id": 1},
			{"id": 2, "sku": "SKU-B", "amount": 40.0, "qty": 1, "order_id": 1},
			{"id": 3, "sku": "SKU-A", "amount": 50.0, "qty": 1, "order_id": 2},
			{"id": 4, "sku": "SKU-C", "amount": 75.5, "qty": 3, "order_id": 3},
		}},
		{Table: "tags", Rows: []Row{
			{"id": 1, "name": "urgent"},
			{"id": 2, "name": "fragile"},
			{"id": 3, "name": "bulk"},
		}},
		{Table: "order_tags", Rows: []Row{
			{"order_id": 1, "tag_id": 1},
			{"order_id": 1, "tag_id": 2},
			{"order_id": 2, "tag_id": 1},
			{"order_id": 3, "tag_id": 3},
		}},
		{Table: "warehouses", Rows: []Row{
			{"id": 1, "name": "North Hub", "region": "north"},
			{"id": 2, "name": "South Hub", "region": "south"},
		}},
	}
}
