package gcp

import (
	"errors"
	"testing"
)

func TestBucketConfigNormalize(t *testing.T) {
	cases := []struct {
		name    string
		cfg     BucketConfig
		problem Problem
	}{
		{"bucket only", BucketConfig{Bucket: "study-data"}, ""},
		{"emulator", BucketConfig{Bucket: "b", EmulatorHost: "http://fake-gcs:4443/"}, ""},
		{"missing bucket", BucketConfig{Prefix: "pilot"}, ProblemMissingBucket},
		{"relative emulator host", BucketConfig{Bucket: "b", EmulatorHost: "fake-gcs:4443"}, ProblemInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := cfg.Normalize()
			if tc.problem == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Problem != tc.problem {
				t.Fatalf("want %q, got %v", tc.problem, err)
			}
		})
	}
}

func TestBucketConfigNormalizeTrims(t *testing.T) {
	cfg := BucketConfig{Bucket: " b ", Prefix: "/study/v2/", EmulatorHost: "http://127.0.0.1:4443/"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Bucket != "b" || cfg.Prefix != "study/v2" || cfg.EmulatorHost != "http://127.0.0.1:4443" {
		t.Fatalf("not normalized: %+v", cfg)
	}
	if cfg.location() != "gs://b/study/v2" {
		t.Fatalf("location %q", cfg.location())
	}
}

func TestClientOptions(t *testing.T) {
	if n := len((BucketConfig{Bucket: "b", EmulatorHost: "http://x:1"}).clientOptions()); n != 2 {
		t.Fatalf("emulator options: %d", n)
	}
	if n := len((BucketConfig{Bucket: "b", CredentialsJSON: "{}"}).clientOptions()); n != 2 {
		t.Fatalf("credential options: %d", n)
	}
	if n := len((BucketConfig{Bucket: "b"}).clientOptions()); n != 1 {
		t.Fatalf("adc options: %d", n)
	}
}

func TestBucketStoreObjectName(t *testing.T) {
	s := &BucketStore{cfg: BucketConfig{Prefix: "study"}}
	got, err := s.objectName("P1/images/trial_00.png")
	if err != nil || got != "study/P1/images/trial_00.png" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := s.objectName("../x"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	s = &BucketStore{}
	if got, _ := s.objectName("prompts.csv"); got != "prompts.csv" {
		t.Fatalf("unprefixed name %q", got)
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	if isPreconditionFailed(errors.New("boom")) {
		t.Fatalf("plain error is not a precondition failure")
	}
}
