package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"
)

// memStore is an in-memory ObjectStore for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s does not exist", key)
	}
	return data, nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) URI(key string) string {
	return "mem://staging/" + key
}

// jobOutcome is recorded when a load job is created. The engine consumes
// the job ID at creation time, so a failed job still occupies its ID.
type jobOutcome struct {
	rows int64
	err  error
}

// fakeWarehouse records load jobs and queries. It reads the staged CSV the
// job references so tests can inspect what would land in each table, and it
// models the engine's job-ID contract: a duplicate ID adopts the prior
// job's outcome, whatever it was.
type fakeWarehouse struct {
	mu       sync.Mutex
	store    *memStore
	tables   map[string][][]string
	seenJobs map[string]jobOutcome
	queries  []string
	loadErr  error
	queryErr error
}

func newFakeWarehouse(store *memStore) *fakeWarehouse {
	return &fakeWarehouse{
		store:    store,
		tables:   make(map[string][][]string),
		seenJobs: make(map[string]jobOutcome),
	}
}

func (w *fakeWarehouse) Load(ctx context.Context, job LoadJob) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prior, ok := w.seenJobs[job.JobID]; ok {
		if prior.err != nil {
			return 0, fmt.Errorf("load job %s failed: %w", job.JobID, prior.err)
		}
		return prior.rows, nil
	}

	if w.loadErr != nil {
		w.seenJobs[job.JobID] = jobOutcome{err: w.loadErr}
		return 0, w.loadErr
	}

	key := strings.TrimPrefix(job.SourceURI, "mem://staging/")
	data, err := w.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		return 0, err
	}

	body := rows[1:]
	if job.Mode == "replace" {
		w.tables[job.Table] = body
	} else {
		w.tables[job.Table] = append(w.tables[job.Table], body...)
	}
	w.seenJobs[job.JobID] = jobOutcome{rows: int64(len(body))}
	return int64(len(body)), nil
}

func (w *fakeWarehouse) Query(ctx context.Context, sql string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queryErr != nil {
		return w.queryErr
	}
	w.queries = append(w.queries, sql)
	return nil
}

func (w *fakeWarehouse) tableRows(table string) [][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tables[table]
}
