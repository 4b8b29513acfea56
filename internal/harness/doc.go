// Package harness runs conformance scenarios against the query engine.
//
// A scenario is a YAML file naming a CUE schema, the rows to seed and a
// list of requests with their expected results:
//
//	name: in_stock_products
//	description: Products with stock, most expensive first
//	schema: ../schema
//	seed:
//	  - table: products
//	    rows:
//	      - {id: 1, name: Hammer, price: 12.5, stock: 10}
//	requests:
//	  - name: in_stock
//	    root: Product
//	    filter: ["stock:GT:0"]
//	    sort: ["price:desc"]
//	    page: 1
//	    size: 2
//	    expect:
//	      ids: [1]
//	      total: 1
//
// Each scenario runs in a fresh in-memory SQLite database through the same
// planner, SQL compiler and engine as production requests. Request ids are
// derived from the scenario name so snapshots are deterministic.
//
// Besides assertions, a run can be compared against a golden snapshot: the
// canonical JSON of every page (or error code), stored under
// testdata/golden/<scenario>.golden and maintained with goldie.
package harness
