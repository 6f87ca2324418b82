package etl

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/savannahlabs/edp/pkg/logger"
	"github.com/savannahlabs/edp/pkg/models"
)

// Pipeline runs the full DAG in one process: extract -> transform -> load
// per entity, then aggregate once every load has finished. Entities are
// independent until the aggregation join, so their branches run
// concurrently. Under the orchestrator each stage runs as its own task
// instead; this runner serves local execution and backfills.
type Pipeline struct {
	Entities  []models.EntityConfig
	Source    *SourceClient
	Store     ObjectStore
	Warehouse Warehouse
	Dataset   string
	PageSize  int
	AuditUser string
}

// Run executes the DAG for one logical date. Any branch failure cancels
// the remaining branches and skips the aggregation: derived tables are
// never rebuilt over a partial load.
func (p *Pipeline) Run(ctx context.Context, run *models.PipelineRun) error {
	logger.Infof("starting pipeline run %s for %s (%d entities)", run.ID, run.Date, len(p.Entities))
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.Entities {
		cfg := &p.Entities[i]
		g.Go(func() error {
			return p.runEntity(gctx, run, cfg)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Errorf("pipeline run %s failed: %v", run.ID, err)
		return err
	}

	aggregator := NewAggregator(p.Warehouse, p.Dataset)
	if err := aggregator.Aggregate(ctx); err != nil {
		logger.Errorf("pipeline run %s failed: %v", run.ID, err)
		return err
	}

	logger.Infof("pipeline run %s finished in %s", run.ID, time.Since(startTime).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) runEntity(ctx context.Context, run *models.PipelineRun, cfg *models.EntityConfig) error {
	extractor := NewExtractor(p.Source, p.Store, cfg, p.PageSize)
	if _, err := extractor.Extract(ctx, run); err != nil {
		return err
	}

	transformer := NewTransformer(p.Store, cfg, p.AuditUser)
	if _, err := transformer.Transform(ctx, run); err != nil {
		return err
	}

	loader := NewLoader(p.Store, p.Warehouse, cfg)
	if _, err := loader.Load(ctx, run); err != nil {
		return err
	}
	return nil
}
