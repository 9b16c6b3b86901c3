package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &StatusError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("generate: %w", &StatusError{StatusCode: 503}), true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"400", &StatusError{StatusCode: 400}, false},
		{"404", &StatusError{StatusCode: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"plain", errors.New("decode failed"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestIsConnectivityError(t *testing.T) {
	if !IsConnectivityError(fmt.Errorf("get: %w", &net.DNSError{Err: "no such host", Name: "x"})) {
		t.Fatalf("dns error should be connectivity")
	}
	if !IsConnectivityError(&net.OpError{Op: "dial", Err: errors.New("refused")}) {
		t.Fatalf("dial error should be connectivity")
	}
	if IsConnectivityError(&net.OpError{Op: "read", Err: errors.New("reset")}) {
		t.Fatalf("read error is not connectivity")
	}
	if IsConnectivityError(&StatusError{StatusCode: 502}) {
		t.Fatalf("http status is never connectivity")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap at 10s, got %v", got)
	}
	if got := RetryAfterDuration(nil, 500*time.Millisecond, 0); got != 500*time.Millisecond {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
