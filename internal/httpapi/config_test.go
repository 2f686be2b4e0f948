package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes(t *testing.T) {
	defer SetMaxBodyBytes(0)
	for _, n := range []int64{-1, 0} {
		SetMaxBodyBytes(n)
		if maxBodyBytes != 1<<20 {
			t.Fatalf("SetMaxBodyBytes(%d): expected default 1MiB, got %d", n, maxBodyBytes)
		}
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetRequestTimeout(t *testing.T) {
	defer SetRequestTimeout(0)
	SetRequestTimeout(-time.Second)
	if requestTimeout != 0 {
		t.Fatalf("expected 0, got %v", requestTimeout)
	}
	SetRequestTimeout(3 * time.Second)
	if requestTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", requestTimeout)
	}
}
