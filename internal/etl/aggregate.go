package etl

import (
	"context"
	"fmt"

	"github.com/savannahlabs/edp/pkg/logger"
)

// DerivedTable is one declarative aggregation. Each definition is a pure
// function of its source tables and is materialized by full replacement,
// so rerunning it is always idempotent.
type DerivedTable struct {
	Name  string
	Query string
}

// The %s placeholders are the dataset identifier.
var derivedTables = []DerivedTable{
	{
		Name: "user_summary",
		Query: `CREATE OR REPLACE TABLE %[1]s.user_summary AS
SELECT
  u.user_id,
  u.first_name,
  u.last_name,
  COUNT(DISTINCT c.cart_id) AS cart_count,
  SUM(c.quantity) AS total_items,
  ROUND(SUM(c.quantity * c.price), 2) AS total_spent
FROM %[1]s.users_table u
JOIN %[1]s.carts_table c ON c.user_id = u.user_id
GROUP BY u.user_id, u.first_name, u.last_name`,
	},
	{
		Name: "category_summary",
		Query: `CREATE OR REPLACE TABLE %[1]s.category_summary AS
SELECT
  p.category,
  COUNT(*) AS line_items,
  SUM(c.quantity) AS total_units,
  ROUND(SUM(c.quantity * c.price), 2) AS total_revenue
FROM %[1]s.carts_table c
JOIN %[1]s.products_table p ON p.product_id = c.product_id
GROUP BY p.category`,
	},
	{
		Name: "cart_details",
		Query: `CREATE OR REPLACE TABLE %[1]s.cart_details AS
SELECT
  c.cart_id,
  c.user_id,
  u.first_name,
  u.last_name,
  c.product_id,
  p.title AS product_title,
  p.category,
  c.quantity,
  c.price,
  ROUND(c.quantity * c.price, 2) AS line_total
FROM %[1]s.carts_table c
JOIN %[1]s.users_table u ON u.user_id = c.user_id
JOIN %[1]s.products_table p ON p.product_id = c.product_id`,
	},
}

// Aggregator materializes the derived reporting tables. The queries run in
// declaration order since cart_details has no dependency on the summaries;
// a failure stops the sequence and surfaces the failed table.
type Aggregator struct {
	Warehouse Warehouse
	Dataset   string
}

func NewAggregator(warehouse Warehouse, dataset string) *Aggregator {
	return &Aggregator{Warehouse: warehouse, Dataset: dataset}
}

// Aggregate rebuilds every derived table by full replacement.
func (a *Aggregator) Aggregate(ctx context.Context) error {
	for _, table := range derivedTables {
		sql := fmt.Sprintf(table.Query, a.Dataset)
		if err := a.Warehouse.Query(ctx, sql); err != nil {
			return &AggregationError{Table: table.Name, Err: err}
		}
		logger.Infof("rebuilt derived table %s.%s", a.Dataset, table.Name)
	}
	return nil
}

// DerivedTableNames lists the derived tables the aggregator maintains.
func DerivedTableNames() []string {
	names := make([]string, len(derivedTables))
	for i, t := range derivedTables {
		names[i] = t.Name
	}
	return names
}
