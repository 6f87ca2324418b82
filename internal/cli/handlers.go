package cli

import (
	"context"
	"fmt"

	"github.com/savannahlabs/edp/internal/config"
	"github.com/savannahlabs/edp/internal/etl"
	"github.com/savannahlabs/edp/internal/observability"
	"github.com/savannahlabs/edp/pkg/clients"
	"github.com/savannahlabs/edp/pkg/models"
)

// taskEnv bundles everything a stage handler needs.
type taskEnv struct {
	cfg      *config.Config
	registry *models.Registry
	run      *models.PipelineRun
	store    etl.ObjectStore
	source   *etl.SourceClient
}

func newTaskEnv(ctx context.Context, opts *TaskOptions, needsStore bool) (*taskEnv, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	registry, err := config.LoadRegistry(opts.Registry)
	if err != nil {
		return nil, err
	}

	run, err := models.NewRun(opts.RunDate)
	if err != nil {
		return nil, err
	}

	env := &taskEnv{cfg: cfg, registry: registry, run: run}
	env.source = etl.NewSourceClient(cfg.SourceBaseURL, cfg.SourceAPIKey, cfg.HTTPTimeout)

	if needsStore {
		gcs, err := clients.ConnectStorage(ctx)
		if err != nil {
			return nil, err
		}
		env.store = etl.NewGCSStore(gcs, cfg.StagingBucket)
	}

	return env, nil
}

func (e *taskEnv) warehouse(ctx context.Context) (etl.Warehouse, error) {
	bq, err := clients.ConnectBigQuery(ctx, e.cfg.BQProject)
	if err != nil {
		return nil, err
	}
	return etl.NewBigQueryWarehouse(bq, e.cfg.BQDataset), nil
}

func (e *taskEnv) entity(name string) (*models.EntityConfig, error) {
	return e.registry.Entity(name)
}

func runExtract(ctx context.Context, opts *TaskOptions) error {
	env, err := newTaskEnv(ctx, opts, true)
	if err != nil {
		return err
	}

	entity, err := env.entity(opts.Entity)
	if err != nil {
		return err
	}

	extractor := etl.NewExtractor(env.source, env.store, entity, env.cfg.PageSize)
	count, err := extractor.Extract(ctx, env.run)
	if err != nil {
		return err
	}

	fmt.Printf("Extracted %d %s records for %s.\n", count, entity.Name, env.run.Date)
	return nil
}

func runTransform(ctx context.Context, opts *TaskOptions) error {
	env, err := newTaskEnv(ctx, opts, true)
	if err != nil {
		return err
	}

	entity, err := env.entity(opts.Entity)
	if err != nil {
		return err
	}

	transformer := etl.NewTransformer(env.store, entity, env.cfg.AuditUser)
	result, err := transformer.Transform(ctx, env.run)
	if err != nil {
		return err
	}

	fmt.Printf("Transformed %d %s rows (%d skipped) for %s.\n", result.Rows, entity.Name, result.Skipped, env.run.Date)
	return nil
}

func runLoad(ctx context.Context, opts *TaskOptions) error {
	env, err := newTaskEnv(ctx, opts, true)
	if err != nil {
		return err
	}

	entity, err := env.entity(opts.Entity)
	if err != nil {
		return err
	}

	warehouse, err := env.warehouse(ctx)
	if err != nil {
		return err
	}

	loader := etl.NewLoader(env.store, warehouse, entity)
	loaded, err := loader.Load(ctx, env.run)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d rows into %s.\n", loaded, entity.Schema.Table)
	return nil
}

func runAggregate(ctx context.Context, opts *TaskOptions) error {
	env, err := newTaskEnv(ctx, opts, false)
	if err != nil {
		return err
	}

	warehouse, err := env.warehouse(ctx)
	if err != nil {
		return err
	}

	aggregator := etl.NewAggregator(warehouse, env.cfg.BQDataset)
	if err := aggregator.Aggregate(ctx); err != nil {
		return err
	}

	fmt.Printf("Rebuilt derived tables: %v.\n", etl.DerivedTableNames())
	return nil
}

func runPipeline(ctx context.Context, opts *TaskOptions) error {
	env, err := newTaskEnv(ctx, opts, true)
	if err != nil {
		return err
	}

	warehouse, err := env.warehouse(ctx)
	if err != nil {
		return err
	}

	observability.Start(env.cfg.MetricsPort)

	pipeline := &etl.Pipeline{
		Entities:  env.registry.Entities,
		Source:    env.source,
		Store:     env.store,
		Warehouse: warehouse,
		Dataset:   env.cfg.BQDataset,
		PageSize:  env.cfg.PageSize,
		AuditUser: env.cfg.AuditUser,
	}

	if err := pipeline.Run(ctx, env.run); err != nil {
		return err
	}

	fmt.Printf("Pipeline run for %s finished successfully.\n", env.run.Date)
	return nil
}
