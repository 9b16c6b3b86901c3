package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromKeepsKindThroughWrapping(t *testing.T) {
	base := Storage(errors.New("disk full"))
	wrapped := fmt.Errorf("save survey: %w", base)

	got := From(wrapped)
	if got.Kind != KindStorageFailure || got.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected classification: kind=%s status=%d", got.Kind, got.Status)
	}
	if !IsKind(wrapped, KindStorageFailure) {
		t.Fatalf("IsKind should see through wrapping")
	}
}

func TestFromPlainErrorIsInternal(t *testing.T) {
	got := From(errors.New("boom"))
	if got.Kind != KindInternal || got.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected classification: kind=%s status=%d", got.Kind, got.Status)
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}
}

func TestConstructorsStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{SchemaViolation(errors.New("x"), nil), http.StatusUnprocessableEntity},
		{Upstream(errors.New("x")), http.StatusInternalServerError},
		{NotFound(errors.New("x")), http.StatusNotFound},
	}
	for _, tc := range cases {
		if tc.err.Status != tc.want {
			t.Fatalf("%s: got %d want %d", tc.err.Kind, tc.err.Status, tc.want)
		}
	}
}
