package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJoinContexts(t *testing.T) {
	for _, which := range []string{"a", "b"} {
		a, ac := context.WithCancel(context.Background())
		b, bc := context.WithCancel(context.Background())
		j, cancel := joinContexts(a, b)
		if which == "a" {
			ac()
		} else {
			bc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("joined context did not cancel after %s", which)
		}
		cancel()
		ac()
		bc()
	}
}

func TestRequestContextHonorsBaseAndTimeout(t *testing.T) {
	base, cancelBase := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)

	ctx, cancel := requestContext(httptest.NewRequest("GET", "/status", nil))
	defer cancel()
	cancelBase()
	select {
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("shutdown did not cancel request context")
	}

	SetBaseContext(nil)
	SetRequestTimeout(20 * time.Millisecond)
	defer SetRequestTimeout(0)
	ctx, cancel = requestContext(httptest.NewRequest("GET", "/status", nil))
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected a deadline")
	}
	<-ctx.Done()
}
