package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahlabs/edp/pkg/models"
)

func stageCSV(t *testing.T, store *memStore, run *models.PipelineRun, entity, csvData string) {
	t.Helper()
	require.NoError(t, PutComplete(context.Background(), store, run.CleansePath(entity), []byte(csvData)))
}

func loaderFixture(t *testing.T) (*memStore, *fakeWarehouse, *models.PipelineRun, *models.EntityConfig) {
	t.Helper()
	store := newMemStore()
	warehouse := newFakeWarehouse(store)
	run, err := models.NewRun("2024-12-10")
	require.NoError(t, err)

	cfg := &models.EntityConfig{
		Name: "users",
		Mode: models.ModeReplace,
		Schema: models.TableSchema{
			Table: "users_table",
			Columns: []models.Column{
				{Name: "user_id", Type: models.TypeInt64, Required: true},
				{Name: "first_name", Type: models.TypeString, Required: true},
			},
		},
	}
	return store, warehouse, run, cfg
}

func TestLoadSubmitsValidatedFile(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	stageCSV(t, store, run, "users", "user_id,first_name\n1,Terry\n2,Emily\n")

	loader := NewLoader(store, warehouse, cfg)
	loaded, err := loader.Load(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded)
	assert.Len(t, warehouse.tableRows("users_table"), 2)
}

func TestLoadSchemaMismatchAbortsBeforeWarehouse(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	stageCSV(t, store, run, "users", "user_id,first_name\nnot-a-number,Terry\n")

	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)

	var smErr *SchemaMismatchError
	require.ErrorAs(t, err, &smErr)
	assert.Empty(t, warehouse.tableRows("users_table"), "nothing may reach the warehouse")
	assert.Empty(t, warehouse.seenJobs)
}

func TestLoadRefusesIncompleteStagedFile(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	require.NoError(t, store.Put(context.Background(), run.CleansePath("users"), []byte("user_id,first_name\n1,Terry\n")))

	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestLoadRerunDoesNotDuplicateRows(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	cfg.Mode = models.ModeAppend
	stageCSV(t, store, run, "users", "user_id,first_name\n1,Terry\n2,Emily\n")

	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)
	require.NoError(t, err)

	// Orchestrator retries the finished task: same run, same job ID. The
	// prior job's outcome is adopted wholesale.
	loaded, err := loader.Load(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded)
	assert.Len(t, warehouse.tableRows("users_table"), 2, "append rerun must not duplicate rows")
}

func TestLoadRetryAfterFailedJobStaysFailed(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	cfg.Mode = models.ModeAppend
	stageCSV(t, store, run, "users", "user_id,first_name\n1,Terry\n2,Emily\n")

	warehouse.loadErr = errors.New("backend exception")
	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)
	require.Error(t, err)

	// The failed job consumed the run's job ID. The retry must surface that
	// failure, not report an empty success that unblocks aggregation.
	warehouse.loadErr = nil
	_, err = loader.Load(context.Background(), run)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "backend exception")
	assert.Empty(t, warehouse.tableRows("users_table"))
}

func TestLoadReplaceRerunKeepsTableIdentical(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	stageCSV(t, store, run, "users", "user_id,first_name\n1,Terry\n")

	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)
	require.NoError(t, err)
	first := warehouse.tableRows("users_table")

	// A different run replaces the table wholesale.
	run2, err := models.NewRun("2024-12-11")
	require.NoError(t, err)
	stageCSV(t, store, run2, "users", "user_id,first_name\n1,Terry\n")
	_, err = loader.Load(context.Background(), run2)
	require.NoError(t, err)

	assert.Equal(t, first, warehouse.tableRows("users_table"))
}

func TestLoadWarehouseFailureWrapsLoadError(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	stageCSV(t, store, run, "users", "user_id,first_name\n1,Terry\n")
	warehouse.loadErr = errors.New("quota exceeded")

	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "users", loadErr.Entity)
	assert.Contains(t, loadErr.Path, run.CleansePath("users"))
}

func TestLoadEmptyStagedFileFails(t *testing.T) {
	store, warehouse, run, cfg := loaderFixture(t)
	stageCSV(t, store, run, "users", "")

	loader := NewLoader(store, warehouse, cfg)
	_, err := loader.Load(context.Background(), run)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, errEmptyStagedFile)
}
