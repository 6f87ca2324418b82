package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawRecord is one unit of extracted data as received from the source API.
// Nested objects and lists are allowed; it is never mutated after staging.
type RawRecord map[string]interface{}

// FlatRow is one denormalized record with scalar values only, keyed by
// target column name. Values are string, int64, float64, bool, time.Time
// or nil.
type FlatRow map[string]interface{}

// StagedRecord is the NDJSON envelope the extractor writes to staging.
type StagedRecord struct {
	Metadata RecordMetadata `json:"metadata"`
	Data     RawRecord      `json:"data"`
}

// RecordMetadata travels with every staged record.
type RecordMetadata struct {
	ExtractionTimestamp string `json:"extraction_timestamp"`
	SourceSystem        string `json:"source_system"`
}

const runDateLayout = "2006-01-02"

// PipelineRun scopes one execution of the DAG to a logical date. The date is
// the unit of idempotency; the ID only tags log lines and metrics.
type PipelineRun struct {
	ID   string
	Date string
}

// NewRun builds a run for a logical date, defaulting to today (UTC) when
// the date is empty.
func NewRun(date string) (*PipelineRun, error) {
	if date == "" {
		date = time.Now().UTC().Format(runDateLayout)
	}
	if _, err := time.Parse(runDateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid run date %q (want YYYY-MM-DD): %w", date, err)
	}
	return &PipelineRun{ID: uuid.NewString(), Date: date}, nil
}

// Timestamp is the logical instant of the run. Everything derived from it is
// stable across reruns of the same date, which keeps the full DAG idempotent.
func (r *PipelineRun) Timestamp() time.Time {
	t, _ := time.Parse(runDateLayout, r.Date)
	return t
}

// RawPath is the staging key for an entity's extracted NDJSON file.
func (r *PipelineRun) RawPath(entity string) string {
	return fmt.Sprintf("raw/%s/%s/%s.ndjson", entity, r.Date, entity)
}

// CleansePath is the staging key for an entity's flattened CSV file.
func (r *PipelineRun) CleansePath(entity string) string {
	return fmt.Sprintf("cleanse/%s/%s/%s.csv", entity, r.Date, entity)
}

// LoadJobID is the deterministic warehouse job ID for an entity load. The
// warehouse rejects a duplicate ID, which makes append-mode reruns safe.
func (r *PipelineRun) LoadJobID(entity string) string {
	return fmt.Sprintf("edp_%s_%s", entity, r.Date)
}
