package clients

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
)

// ConnectBigQuery opens a BigQuery client for the given project.
func ConnectBigQuery(ctx context.Context, projectID string) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("error connecting to BigQuery: %w", err)
	}
	return client, nil
}

// ConnectStorage opens a Cloud Storage client.
func ConnectStorage(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Cloud Storage: %w", err)
	}
	return client, nil
}
