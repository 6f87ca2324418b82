package etl

import (
	"errors"
	"fmt"
)

// ExtractionError means the source was unreachable or rejected the request
// after retries were exhausted.
type ExtractionError struct {
	Entity string
	URL    string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s): %v", e.Entity, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TransformError means a staged record was malformed: missing required
// fields or not flattenable.
type TransformError struct {
	Entity string
	Record int
	Field  string
	Err    error
}

func (e *TransformError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transform failed for %s record %d, field %s: %v", e.Entity, e.Record, e.Field, e.Err)
	}
	return fmt.Sprintf("transform failed for %s record %d: %v", e.Entity, e.Record, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// SchemaMismatchError means a flat row does not fit the target table schema.
// It is structural and never retried.
type SchemaMismatchError struct {
	Entity string
	Column string
	Row    int
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for %s row %d, column %s: %v", e.Entity, e.Row, e.Column, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// LoadError means the warehouse rejected or failed the load job. Path names
// the staged file the job referenced.
type LoadError struct {
	Entity string
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed for %s (%s): %v", e.Entity, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AggregationError means a derived-table query failed.
type AggregationError struct {
	Table string
	Err   error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed for %s: %v", e.Table, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// errEmptyStagedFile means a staged CSV had no header row at all.
var errEmptyStagedFile = errors.New("staged file is empty")

// transientError marks a failure worth retrying: 5xx, 429, timeouts.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// markTransient wraps an error so Retryable reports true for it.
func markTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Retryable reports whether an error is transient. Structural errors
// (malformed records, schema mismatches) always report false: retrying
// them would reproduce the same failure.
func Retryable(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var to interface{ Timeout() bool }
	if errors.As(err, &to) {
		return to.Timeout()
	}
	return false
}
