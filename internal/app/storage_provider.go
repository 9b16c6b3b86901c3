package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/gcp"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

// newBucketStore is swapped in tests so bucket modes can be exercised without GCS.
var newBucketStore = func(ctx context.Context, log *logger.Logger, cfg gcp.BucketConfig) (blob.Store, error) {
	return gcp.NewBucketStore(ctx, log, cfg)
}

type StorageBootstrapReason string

const (
	ReasonInvalidMode         StorageBootstrapReason = "invalid_mode"
	ReasonMissingBucket       StorageBootstrapReason = "missing_bucket"
	ReasonMissingEmulatorHost StorageBootstrapReason = "missing_emulator_host"
	ReasonInvalidEmulatorHost StorageBootstrapReason = "invalid_emulator_host"
	ReasonConnectFailed       StorageBootstrapReason = "connect_failed"
)

// StorageBootstrapError explains why the record store could not be opened at startup.
type StorageBootstrapError struct {
	Reason StorageBootstrapReason
	Mode   string
	Cause  error
}

func (e *StorageBootstrapError) Error() string {
	return fmt.Sprintf("record storage unavailable (mode=%s reason=%s): %v", e.Mode, e.Reason, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error { return e.Cause }

// resolveBlobStore picks the byte store under the record store: the local data root,
// a GCS bucket, or a GCS emulator.
func resolveBlobStore(ctx context.Context, log *logger.Logger, cfg Config) (blob.Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ObjectStorageMode))
	fail := func(reason StorageBootstrapReason, cause error) error {
		err := &StorageBootstrapError{Reason: reason, Mode: mode, Cause: cause}
		log.Error("Record storage bootstrap failed", "mode", mode, "reason", reason, "error", cause)
		return err
	}

	bucketCfg := gcp.BucketConfig{
		Bucket:          cfg.GCSBucket,
		Prefix:          cfg.GCSPrefix,
		CredentialsJSON: cfg.GCSCredentialsJSON,
	}
	switch mode {
	case "", StorageModeLocal:
		log.Info("Using local record storage", "data_root", cfg.DataRoot)
		return blob.NewLocalStore(cfg.DataRoot)
	case StorageModeGCS:
	case StorageModeGCSEmulator:
		if strings.TrimSpace(cfg.StorageEmulatorHost) == "" {
			return nil, fail(ReasonMissingEmulatorHost, errors.New("STORAGE_EMULATOR_HOST is required in gcs_emulator mode"))
		}
		bucketCfg.EmulatorHost = cfg.StorageEmulatorHost
	default:
		return nil, fail(ReasonInvalidMode, fmt.Errorf("unsupported OBJECT_STORAGE_MODE %q", mode))
	}

	store, err := newBucketStore(ctx, log, bucketCfg)
	if err != nil {
		return nil, fail(bootstrapReason(err), err)
	}
	return store, nil
}

func bootstrapReason(err error) StorageBootstrapReason {
	var bootErr *StorageBootstrapError
	if errors.As(err, &bootErr) {
		return bootErr.Reason
	}
	var cfgErr *gcp.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Problem {
		case gcp.ProblemMissingBucket:
			return ReasonMissingBucket
		case gcp.ProblemInvalidEmulatorHost:
			return ReasonInvalidEmulatorHost
		}
	}
	return ReasonConnectFailed
}
