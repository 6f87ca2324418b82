package etl

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/savannahlabs/edp/pkg/logger"
	"github.com/savannahlabs/edp/pkg/models"
)

// BigQueryWarehouse implements Warehouse against BigQuery.
type BigQueryWarehouse struct {
	Client  *bigquery.Client
	Dataset string
}

func NewBigQueryWarehouse(client *bigquery.Client, dataset string) *BigQueryWarehouse {
	return &BigQueryWarehouse{Client: client, Dataset: dataset}
}

// Load submits a CSV load job from the staged object. Replace mode
// truncates the table in the same job; append mode relies on the
// deterministic job ID for rerun safety. The engine consumes a job ID at
// creation, success or not, so a duplicate-job rejection adopts the prior
// job's outcome instead of trusting the 409.
func (w *BigQueryWarehouse) Load(ctx context.Context, job LoadJob) (int64, error) {
	gcsRef := bigquery.NewGCSReference(job.SourceURI)
	gcsRef.SourceFormat = bigquery.CSV
	gcsRef.SkipLeadingRows = 1
	gcsRef.Schema = toBigQuerySchema(job.Schema)
	gcsRef.AutoDetect = false
	gcsRef.MaxBadRecords = 0

	loader := w.Client.Dataset(w.Dataset).Table(job.Table).LoaderFrom(gcsRef)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	if job.Mode == models.ModeReplace {
		loader.WriteDisposition = bigquery.WriteTruncate
	} else {
		loader.WriteDisposition = bigquery.WriteAppend
	}
	loader.JobIDConfig = bigquery.JobIDConfig{
		JobID:          job.JobID,
		AddJobIDSuffix: false,
	}

	bqJob, err := loader.Run(ctx)
	if err != nil {
		if !isDuplicateJob(err) {
			return 0, err
		}
		logger.Warnf("load job %s already exists, adopting its outcome", job.JobID)
		bqJob, err = w.Client.JobFromID(ctx, job.JobID)
		if err != nil {
			return 0, err
		}
	}

	status, err := bqJob.Wait(ctx)
	if err != nil {
		return 0, err
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("load job %s failed: %w", job.JobID, err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		return stats.OutputRows, nil
	}
	return 0, nil
}

// Query runs one SQL statement to completion, discarding any result set.
func (w *BigQueryWarehouse) Query(ctx context.Context, sql string) error {
	q := w.Client.Query(sql)

	job, err := q.Run(ctx)
	if err != nil {
		return err
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

func isDuplicateJob(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusConflict
	}
	return false
}

func toBigQuerySchema(schema models.TableSchema) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		field := &bigquery.FieldSchema{
			Name:     col.Name,
			Required: col.Required,
		}
		switch col.Type {
		case models.TypeInt64:
			field.Type = bigquery.IntegerFieldType
		case models.TypeFloat64:
			field.Type = bigquery.FloatFieldType
		case models.TypeBool:
			field.Type = bigquery.BooleanFieldType
		case models.TypeTimestamp:
			field.Type = bigquery.TimestampFieldType
		default:
			field.Type = bigquery.StringFieldType
		}
		out = append(out, field)
	}
	return out
}
