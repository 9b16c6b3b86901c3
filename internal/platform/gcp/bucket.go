package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

const (
	transferTimeout = 2 * time.Minute
	metadataTimeout = 30 * time.Second
	appendAttempts  = 3
)

// BucketStore is a blob.Store over one GCS bucket, optionally under a key prefix.
type BucketStore struct {
	log    *logger.Logger
	client *storage.Client
	cfg    BucketConfig
}

var _ blob.Store = (*BucketStore)(nil)

func NewBucketStore(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*BucketStore, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	s := &BucketStore{log: log.With("service", "BucketStore"), client: client, cfg: cfg}
	s.log.Info("Bucket store ready", "location", cfg.location(), "emulator_host", cfg.EmulatorHost)
	return s, nil
}

func (s *BucketStore) objectName(key string) (string, error) {
	k, err := blob.CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.cfg.Prefix == "" {
		return k, nil
	}
	return path.Join(s.cfg.Prefix, k), nil
}

func (s *BucketStore) object(key string) (*storage.ObjectHandle, error) {
	name, err := s.objectName(key)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(s.cfg.Bucket).Object(name), nil
}

func (s *BucketStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.readWithGeneration(ctx, key)
	return data, err
}

// readWithGeneration returns the object's bytes and generation; generation is 0 when the
// object does not exist, which is also reported as blob.ErrNotExist.
func (s *BucketStore) readWithGeneration(ctx context.Context, key string) ([]byte, int64, error) {
	o, err := s.object(key)
	if err != nil {
		return nil, 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()
	r, err := o.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, blob.ErrNotExist
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open gs object %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read gs object %s: %w", key, err)
	}
	return data, r.Attrs.Generation, nil
}

// Write relies on GCS object finalization: readers see the previous generation until
// the upload completes.
func (s *BucketStore) Write(ctx context.Context, key string, data []byte) error {
	o, err := s.object(key)
	if err != nil {
		return err
	}
	return s.upload(ctx, o, key, data)
}

// Append rewrites the object with data appended, conditioned on the generation that was
// read. When another process wins the race the read and upload are retried.
func (s *BucketStore) Append(ctx context.Context, key string, data []byte) error {
	o, err := s.object(key)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		existing, gen, err := s.readWithGeneration(ctx, key)
		cond := storage.Conditions{GenerationMatch: gen}
		switch {
		case errors.Is(err, blob.ErrNotExist):
			cond = storage.Conditions{DoesNotExist: true}
		case err != nil:
			return err
		}

		buf := make([]byte, 0, len(existing)+len(data))
		buf = append(append(buf, existing...), data...)
		lastErr = s.upload(ctx, o.If(cond), key, buf)
		if lastErr == nil || !isPreconditionFailed(lastErr) {
			return lastErr
		}
		s.log.Warn("Concurrent append detected, retrying", "key", key, "attempt", attempt)
	}
	return fmt.Errorf("append %s: %w", key, lastErr)
}

func (s *BucketStore) upload(ctx context.Context, o *storage.ObjectHandle, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	w := o.NewWriter(ctx)
	w.ContentType = blob.ContentTypeForKey(key)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload gs object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs object %s: %w", key, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

// cancelOnClose keeps the reader's context alive until the caller is done streaming.
type cancelOnClose struct {
	*storage.Reader
	cancel context.CancelFunc
}

func (r cancelOnClose) Close() error {
	defer r.cancel()
	return r.Reader.Close()
}

func (s *BucketStore) Open(ctx context.Context, key string) (io.ReadCloser, blob.ObjectInfo, error) {
	o, err := s.object(key)
	if err != nil {
		return nil, blob.ObjectInfo{}, err
	}
	readCtx, cancel := context.WithTimeout(ctx, transferTimeout)
	r, err := o.NewReader(readCtx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, blob.ObjectInfo{}, blob.ErrNotExist
		}
		return nil, blob.ObjectInfo{}, fmt.Errorf("open gs object %s: %w", key, err)
	}
	info := blob.ObjectInfo{Size: r.Attrs.Size, ContentType: r.Attrs.ContentType, Updated: r.Attrs.LastModified}
	if info.ContentType == "" {
		info.ContentType = blob.ContentTypeForKey(key)
	}
	return cancelOnClose{Reader: r, cancel: cancel}, info, nil
}

func (s *BucketStore) Exists(ctx context.Context, key string) (bool, error) {
	o, err := s.object(key)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err = o.Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat gs object %s: %w", key, err)
	}
}

func (s *BucketStore) Delete(ctx context.Context, key string) error {
	o, err := s.object(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if err := o.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs object %s: %w", key, err)
	}
	return nil
}

func (s *BucketStore) Describe() blob.Location {
	kind := "gcs"
	if s.cfg.EmulatorHost != "" {
		kind = "gcs_emulator"
	}
	return blob.Location{Type: kind, Location: s.cfg.location()}
}

func (s *BucketStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
