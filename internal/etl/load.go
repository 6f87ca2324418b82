package etl

import (
	"bytes"
	"context"
	"encoding/csv"

	"github.com/savannahlabs/edp/internal/observability"
	"github.com/savannahlabs/edp/pkg/logger"
	"github.com/savannahlabs/edp/pkg/models"
)

// Loader bulk-loads one entity's flattened staged file into its warehouse
// table. A single parameterized loader driven by the entity config replaces
// per-entity load scripts.
type Loader struct {
	Store     ObjectStore
	Warehouse Warehouse
	Cfg       *models.EntityConfig
}

func NewLoader(store ObjectStore, warehouse Warehouse, cfg *models.EntityConfig) *Loader {
	return &Loader{Store: store, Warehouse: warehouse, Cfg: cfg}
}

// Load validates the staged CSV against the table schema and submits the
// load job. Validation failures abort before anything reaches the
// warehouse; the warehouse's per-job atomicity guarantees no partial write
// after that. The deterministic job ID makes rerunning the same run a
// no-op for append-mode entities.
func (l *Loader) Load(ctx context.Context, run *models.PipelineRun) (int64, error) {
	key := run.CleansePath(l.Cfg.Name)

	data, err := GetComplete(ctx, l.Store, key)
	if err != nil {
		return 0, &LoadError{Entity: l.Cfg.Name, Path: key, Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	rows, err := reader.ReadAll()
	if err != nil {
		return 0, &LoadError{Entity: l.Cfg.Name, Path: key, Err: err}
	}
	if len(rows) == 0 {
		return 0, &LoadError{Entity: l.Cfg.Name, Path: key, Err: errEmptyStagedFile}
	}

	validator := NewValidator(l.Cfg.Name, l.Cfg.Schema)
	if err := validator.ValidateCSV(rows[0], rows[1:]); err != nil {
		return 0, err
	}

	job := LoadJob{
		Entity:    l.Cfg.Name,
		Table:     l.Cfg.Schema.Table,
		SourceURI: l.Store.URI(key),
		Schema:    l.Cfg.Schema,
		Mode:      l.Cfg.Mode,
		JobID:     run.LoadJobID(l.Cfg.Name),
	}

	loaded, err := l.Warehouse.Load(ctx, job)
	if err != nil {
		return 0, &LoadError{Entity: l.Cfg.Name, Path: l.Store.URI(key), Err: err}
	}

	observability.RowsLoaded.WithLabelValues(l.Cfg.Name).Add(float64(loaded))
	logger.Infof("loaded %d rows into %s (%s mode)", loaded, l.Cfg.Schema.Table, l.Cfg.Mode)
	return loaded, nil
}
