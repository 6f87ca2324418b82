package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateRunsAllDerivedTables(t *testing.T) {
	warehouse := newFakeWarehouse(newMemStore())

	aggregator := NewAggregator(warehouse, "ecommerce_data")
	require.NoError(t, aggregator.Aggregate(context.Background()))

	require.Len(t, warehouse.queries, 3)
	assert.Contains(t, warehouse.queries[0], "CREATE OR REPLACE TABLE ecommerce_data.user_summary")
	assert.Contains(t, warehouse.queries[1], "CREATE OR REPLACE TABLE ecommerce_data.category_summary")
	assert.Contains(t, warehouse.queries[2], "CREATE OR REPLACE TABLE ecommerce_data.cart_details")
}

func TestAggregateFailureNamesDerivedTable(t *testing.T) {
	warehouse := newFakeWarehouse(newMemStore())
	warehouse.queryErr = errors.New("permission denied")

	aggregator := NewAggregator(warehouse, "ecommerce_data")
	err := aggregator.Aggregate(context.Background())

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "user_summary", aggErr.Table, "the first failing table stops the sequence")
	assert.Empty(t, warehouse.queries, "a failed statement must not count as executed")
}
