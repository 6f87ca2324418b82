package etl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// completionSuffix names the zero-byte marker written after a staged file
// closes successfully. Readers must not trust an object without it; a task
// cancelled mid-write leaves no marker behind.
const completionSuffix = ".done"

// PutComplete writes a staged file and then its completion marker. The
// marker is the atomicity point: the object only becomes visible to
// downstream stages once it exists.
func PutComplete(ctx context.Context, store ObjectStore, key string, data []byte) error {
	if err := store.Put(ctx, key, data); err != nil {
		return err
	}
	return store.Put(ctx, key+completionSuffix, nil)
}

// GetComplete reads a staged file, refusing files whose completion marker
// is missing.
func GetComplete(ctx context.Context, store ObjectStore, key string) ([]byte, error) {
	done, err := store.Exists(ctx, key+completionSuffix)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, fmt.Errorf("staged file %s is incomplete (missing %s marker)", key, completionSuffix)
	}
	return store.Get(ctx, key)
}

// GCSStore is the Cloud Storage implementation of ObjectStore.
type GCSStore struct {
	Client *storage.Client
	Bucket string
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{Client: client, Bucket: bucket}
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.Client.Bucket(s.Bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", s.Bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing gs://%s/%s: %w", s.Bucket, key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.Client.Bucket(s.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s: %w", s.Bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s: %w", s.Bucket, key, err)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Client.Bucket(s.Bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GCSStore) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.Bucket, key)
}
