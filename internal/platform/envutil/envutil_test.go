package envutil

import (
	"reflect"
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("PS_TEST_INT", "abc")
	if got := Int("PS_TEST_INT", 7); got != 7 {
		t.Fatalf("got %d want 7", got)
	}
	t.Setenv("PS_TEST_INT", " 12 ")
	if got := Int("PS_TEST_INT", 7); got != 12 {
		t.Fatalf("got %d want 12", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("PS_TEST_BOOL", "off")
	if Bool("PS_TEST_BOOL", true) {
		t.Fatalf("off should be false")
	}
	t.Setenv("PS_TEST_BOOL", "maybe")
	if !Bool("PS_TEST_BOOL", true) {
		t.Fatalf("unparseable value should use default")
	}
}

func TestSeconds(t *testing.T) {
	t.Setenv("PS_TEST_SECS", "-3")
	if got := Seconds("PS_TEST_SECS", 30*time.Second); got != 30*time.Second {
		t.Fatalf("got %v", got)
	}
	t.Setenv("PS_TEST_SECS", "5")
	if got := Seconds("PS_TEST_SECS", 30*time.Second); got != 5*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("PS_TEST_LIST", " 8.8.8.8:53, ,1.1.1.1:53 ")
	got := List("PS_TEST_LIST", nil)
	want := []string{"8.8.8.8:53", "1.1.1.1:53"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("PS_TEST_FLOAT", "0.25")
	if got := Float("PS_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("got %v want 0.25", got)
	}
	t.Setenv("PS_TEST_FLOAT", "quarter")
	if got := Float("PS_TEST_FLOAT", 1); got != 1 {
		t.Fatalf("garbage should use default, got %v", got)
	}
}
