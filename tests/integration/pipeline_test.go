package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahlabs/edp/internal/config"
	"github.com/savannahlabs/edp/internal/etl"
	"github.com/savannahlabs/edp/pkg/clients"
	"github.com/savannahlabs/edp/pkg/models"
)

// TestPipelineAgainstRealBackends runs the full extract/transform/load/aggregate
// cycle against the live source API, a real staging bucket and a real BigQuery
// dataset. It needs credentials and the EDP_* environment configured, so it is
// gated behind EDP_INTEGRATION=1.
func TestPipelineAgainstRealBackends(t *testing.T) {
	if os.Getenv("EDP_INTEGRATION") != "1" {
		t.Skip("set EDP_INTEGRATION=1 to run integration tests")
	}

	_ = godotenv.Load("../../.env")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	registry, err := config.LoadRegistry("../../configs/entities.json")
	require.NoError(t, err)

	run, err := models.NewRun(time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	gcs, err := clients.ConnectStorage(ctx)
	require.NoError(t, err)
	defer gcs.Close()

	bq, err := clients.ConnectBigQuery(ctx, cfg.BQProject)
	require.NoError(t, err)
	defer bq.Close()

	store := etl.NewGCSStore(gcs, cfg.StagingBucket)

	pipeline := &etl.Pipeline{
		Entities:  registry.Entities,
		Source:    etl.NewSourceClient(cfg.SourceBaseURL, cfg.SourceAPIKey, cfg.HTTPTimeout),
		Store:     store,
		Warehouse: etl.NewBigQueryWarehouse(bq, cfg.BQDataset),
		Dataset:   cfg.BQDataset,
		PageSize:  cfg.PageSize,
		AuditUser: cfg.AuditUser,
	}

	require.NoError(t, pipeline.Run(ctx, run))

	// Every entity must have left both staged files behind, markers included.
	for i := range registry.Entities {
		entity := &registry.Entities[i]

		raw, err := etl.GetComplete(ctx, store, run.RawPath(entity.Name))
		require.NoError(t, err, "raw staging for %s", entity.Name)
		assert.NotEmpty(t, raw)

		cleansed, err := etl.GetComplete(ctx, store, run.CleansePath(entity.Name))
		require.NoError(t, err, "cleansed staging for %s", entity.Name)
		assert.NotEmpty(t, cleansed)
	}
}
