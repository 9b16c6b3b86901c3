package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// BucketConfig selects the bucket behind a BucketStore. EmulatorHost, when set, points
// the client at a fake-gcs-server style emulator instead of Google.
type BucketConfig struct {
	Bucket          string
	Prefix          string
	EmulatorHost    string
	CredentialsJSON string
}

type Problem string

const (
	ProblemMissingBucket       Problem = "missing_bucket"
	ProblemInvalidEmulatorHost Problem = "invalid_emulator_host"
)

// ConfigError reports a bucket configuration that cannot work.
type ConfigError struct {
	Problem Problem
	Value   string
	Cause   error
}

func (e *ConfigError) Error() string {
	switch e.Problem {
	case ProblemMissingBucket:
		return "GCS_BUCKET_NAME is required for bucket storage"
	case ProblemInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected an absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid bucket config: " + string(e.Problem)
	}
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Normalize trims every field in place and validates the result.
func (c *BucketConfig) Normalize() error {
	c.Bucket = strings.TrimSpace(c.Bucket)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), "/")
	c.EmulatorHost = strings.TrimRight(strings.TrimSpace(c.EmulatorHost), "/")
	c.CredentialsJSON = strings.TrimSpace(c.CredentialsJSON)

	if c.Bucket == "" {
		return &ConfigError{Problem: ProblemMissingBucket}
	}
	if c.EmulatorHost == "" {
		return nil
	}
	u, err := url.Parse(c.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Problem: ProblemInvalidEmulatorHost, Value: c.EmulatorHost, Cause: err}
	}
	return nil
}

// clientOptions targets the emulator's JSON API directly so nothing has to be exported
// through the process environment. Real buckets use Application Default Credentials
// unless inline JSON credentials are configured.
func (c BucketConfig) clientOptions() []option.ClientOption {
	if c.EmulatorHost != "" {
		return []option.ClientOption{
			option.WithEndpoint(c.EmulatorHost + "/storage/v1/"),
			option.WithoutAuthentication(),
		}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if c.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	}
	return opts
}

func (c BucketConfig) location() string {
	loc := "gs://" + c.Bucket
	if c.Prefix != "" {
		loc += "/" + c.Prefix
	}
	return loc
}
