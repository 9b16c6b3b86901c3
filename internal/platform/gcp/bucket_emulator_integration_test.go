package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

func TestBucketStoreEmulatorLifecycle(t *testing.T) {
	emulatorHost := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	if emulatorHost == "" {
		t.Skip("set STORAGE_EMULATOR_HOST to run emulator integration tests")
	}
	if !isEmulatorReachable(emulatorHost) {
		t.Skipf("storage emulator not reachable at %s", emulatorHost)
	}

	bucket := fmt.Sprintf("ps-it-%d", time.Now().UnixNano())
	createBucket(t, emulatorHost, bucket)

	ctx := context.Background()
	s, err := NewBucketStore(ctx, logger.Nop(), BucketConfig{
		EmulatorHost: emulatorHost,
		Bucket:       bucket,
		Prefix:       "it",
	})
	if err != nil {
		t.Fatalf("NewBucketStore: %v", err)
	}
	defer s.Close()

	if _, err := s.Read(ctx, "P1/survey.json"); !errors.Is(err, blob.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if err := s.Append(ctx, "prompts.csv", []byte("h\n")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, "prompts.csv", []byte("r\n")); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.Read(ctx, "prompts.csv")
	if err != nil || string(got) != "h\nr\n" {
		t.Fatalf("read: %q %v", got, err)
	}

	if err := s.Write(ctx, "P1/images/trial_00.png", []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	rc, info, err := s.Open(ctx, "P1/images/trial_00.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if len(b) != 4 || info.ContentType != "image/png" {
		t.Fatalf("unexpected object %d bytes %q", len(b), info.ContentType)
	}
	if err := s.Delete(ctx, "P1/images/trial_00.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, err := s.Exists(ctx, "P1/images/trial_00.png"); err != nil || ok {
		t.Fatalf("exists after delete: %v %v", ok, err)
	}
}

func isEmulatorReachable(host string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(host + "/storage/v1/b?project=test")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

func createBucket(t *testing.T, host, name string) {
	t.Helper()
	body := bytes.NewBufferString(fmt.Sprintf(`{"name":%q}`, name))
	resp, err := http.Post(host+"/storage/v1/b?project=test", "application/json", body)
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("create bucket: status=%d body=%s", resp.StatusCode, msg)
	}
}
