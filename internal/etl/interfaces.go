package etl

import (
	"context"

	"github.com/savannahlabs/edp/pkg/models"
)

// ObjectStore is the staging layer between stages. Each stage owns the
// objects it writes; downstream stages only read them.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	URI(key string) string
}

// LoadJob is one bulk-load request against the warehouse.
type LoadJob struct {
	Entity    string
	Table     string
	SourceURI string
	Schema    models.TableSchema
	Mode      models.LoadMode
	JobID     string
}

// Warehouse is the external query engine. Load submits a bulk-load job and
// reports rows written; Query executes SQL with no result handling (the
// aggregations materialize tables, they return nothing).
type Warehouse interface {
	Load(ctx context.Context, job LoadJob) (int64, error)
	Query(ctx context.Context, sql string) error
}
