package manager

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoadModelIsIdempotent(t *testing.T) {
	be := &fakeBackend{}
	m, _ := newTestManager(t, be, "m")
	ctx := testCtx(t)
	if !m.LoadModel(ctx, "m", "") {
		t.Fatalf("first load failed")
	}
	if !m.LoadModel(ctx, "m", "") {
		t.Fatalf("second load failed")
	}
	if got := m.LoadedModels(); len(got) != 1 || got[0] != "m" {
		t.Fatalf("unexpected loaded list: %v", got)
	}
	if be.loadCount() != 1 {
		t.Fatalf("expected one allocation, got %d", be.loadCount())
	}
	if be.lastLoc != "/models/m" {
		t.Fatalf("expected descriptor location, got %q", be.lastLoc)
	}
}

func TestLoadModelUnregisteredID(t *testing.T) {
	be := &fakeBackend{}
	m, pub := newTestManager(t, be, "other")
	if m.LoadModel(testCtx(t), "m1", "/models/m1") {
		t.Fatalf("expected false for unregistered id")
	}
	if got := m.LoadedModels(); len(got) != 0 {
		t.Fatalf("expected nothing loaded, got %v", got)
	}
	if be.loadCount() != 0 {
		t.Fatalf("backend should not be called")
	}
	if pub.Count("load_not_found") != 1 {
		t.Fatalf("expected load_not_found event: %+v", pub.Events())
	}
	if err := m.Load(testCtx(t), "m1", ""); !IsModelNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadFailureIsRetryable(t *testing.T) {
	be := &fakeBackend{err: errBoom}
	m, _ := newTestManager(t, be, "m")
	err := m.Load(testCtx(t), "m", "")
	if !IsLoadFailure(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if m.IsLoaded("m") {
		t.Fatalf("failed load must not register a session")
	}
	if st := m.Status(); st.LastError == "" {
		t.Fatalf("expected last error recorded")
	}
	be.mu.Lock()
	be.err = nil
	be.mu.Unlock()
	if !m.LoadModel(testCtx(t), "m", "") {
		t.Fatalf("retry should succeed")
	}
}

func TestLoadWithoutBackend(t *testing.T) {
	m, _ := newTestManager(t, nil, "m")
	if m.LoadModel(testCtx(t), "m", "") {
		t.Fatalf("expected false without backend")
	}
}

func TestConcurrentLoadsShareAllocation(t *testing.T) {
	be := &fakeBackend{delay: 50 * time.Millisecond}
	m, _ := newTestManager(t, be, "m")
	ctx := testCtx(t)
	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.LoadModel(ctx, "m", "")
		}(i)
	}
	wg.Wait()
	for i, ok := range results {
		if !ok {
			t.Fatalf("load %d failed", i)
		}
	}
	if be.loadCount() != 1 {
		t.Fatalf("expected one allocation, got %d", be.loadCount())
	}
}

func TestLoadHonorsCallerContext(t *testing.T) {
	be := &fakeBackend{delay: time.Second}
	m, _ := newTestManager(t, be, "m")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if m.LoadModel(ctx, "m", "") {
		t.Fatalf("expected timeout")
	}
}

func TestUnloadModel(t *testing.T) {
	be := &fakeBackend{}
	m, pub := newTestManager(t, be, "m")
	if m.UnloadModel("never-loaded") {
		t.Fatalf("unload of never-loaded id should be false")
	}
	if m.UnloadModel("") {
		t.Fatalf("unload of empty id should be false")
	}
	if !m.LoadModel(testCtx(t), "m", "") {
		t.Fatalf("load failed")
	}
	if !m.UnloadModel("m") {
		t.Fatalf("unload failed")
	}
	if m.IsLoaded("m") || len(m.LoadedModels()) != 0 {
		t.Fatalf("session still present after unload")
	}
	if n := be.models[0].closes.Load(); n != 1 {
		t.Fatalf("expected exactly one release, got %d", n)
	}
	if m.UnloadModel("m") {
		t.Fatalf("second unload should be false")
	}
	for _, name := range []string{"ensure_start", "ensure_ready", "unload_start", "unload_done"} {
		if pub.Count(name) == 0 {
			t.Fatalf("expected event %q; got %+v", name, pub.Events())
		}
	}
}

func TestUnloadReleaseFailureIsRecorded(t *testing.T) {
	be := &fakeBackend{closeErr: errBoom}
	m, pub := newTestManager(t, be, "m")
	if !m.LoadModel(testCtx(t), "m", "") {
		t.Fatalf("load failed")
	}
	if !m.UnloadModel("m") {
		t.Fatalf("unload should still succeed when release fails")
	}
	if m.IsLoaded("m") {
		t.Fatalf("entry must be removed regardless of release outcome")
	}
	st := m.Status()
	if len(st.ReleaseFailed) != 1 || st.ReleaseFailed[0].ModelID != "m" {
		t.Fatalf("expected release failure recorded: %+v", st.ReleaseFailed)
	}
	if pub.Count("unload_release_failed") != 1 {
		t.Fatalf("expected unload_release_failed event")
	}
}

func TestReleaseFailHistoryIsCapped(t *testing.T) {
	be := &fakeBackend{closeErr: errBoom}
	m := NewWithConfig(ManagerConfig{
		Catalog:            testCatalog(t, "m"),
		Backend:            be,
		ReleaseFailHistory: 2,
		DrainTimeout:       50 * time.Millisecond,
	})
	for i := 0; i < 4; i++ {
		if !m.LoadModel(testCtx(t), "m", "") || !m.UnloadModel("m") {
			t.Fatalf("cycle %d failed", i)
		}
	}
	if got := len(m.Status().ReleaseFailed); got != 2 {
		t.Fatalf("expected 2 retained failures, got %d", got)
	}
}

func TestCleanupUnloadsEverything(t *testing.T) {
	be := &fakeBackend{closeErr: nil}
	m, pub := newTestManager(t, be, "a", "b", "c")
	ctx := testCtx(t)
	for _, id := range []string{"a", "b", "c"} {
		if !m.LoadModel(ctx, id, "") {
			t.Fatalf("load %s failed", id)
		}
	}
	if err := m.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if got := m.LoadedModels(); len(got) != 0 {
		t.Fatalf("sessions left after cleanup: %v", got)
	}
	if pub.Count("unload_done") != 3 || pub.Count("cleanup_done") != 1 {
		t.Fatalf("unexpected events: %+v", pub.Events())
	}
}

func TestCleanupContinuesPastReleaseFailures(t *testing.T) {
	cases := []struct {
		name string
		be   *fakeBackend
	}{
		{name: "close error", be: &fakeBackend{closeErr: errBoom}},
		{name: "close panic", be: &fakeBackend{closePanic: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := []string{"a", "b", "c"}
			m, pub := newTestManager(t, tc.be, ids...)
			ctx := testCtx(t)
			for _, id := range ids {
				if !m.LoadModel(ctx, id, "") {
					t.Fatalf("load %s failed", id)
				}
			}
			if err := m.Cleanup(ctx); err != nil {
				t.Fatalf("cleanup: %v", err)
			}
			if got := m.LoadedModels(); len(got) != 0 {
				t.Fatalf("sessions left after cleanup: %v", got)
			}
			failed := map[string]bool{}
			for _, f := range m.Status().ReleaseFailed {
				if f.Error == "" {
					t.Fatalf("release failure without error text: %+v", f)
				}
				failed[f.ModelID] = true
			}
			for _, id := range ids {
				if !failed[id] {
					t.Fatalf("no release failure recorded for %s: %+v", id, m.Status().ReleaseFailed)
				}
			}
			if got := pub.Count("unload_release_failed"); got != len(ids) {
				t.Fatalf("unload_release_failed events=%d", got)
			}
			if pub.Count("unload_done") != len(ids) || pub.Count("cleanup_done") != 1 {
				t.Fatalf("unexpected events: %+v", pub.Events())
			}
			for _, fm := range tc.be.models {
				if fm.closes.Load() != 1 {
					t.Fatalf("expected one close attempt per model, got %d", fm.closes.Load())
				}
			}
		})
	}
}

func TestModelInfoAndReady(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{}, "a", "b")
	if m.Ready() {
		t.Fatalf("not ready before any load")
	}
	if d, ok := m.ModelInfo("a"); !ok || d.ID != "a" {
		t.Fatalf("model info a: %+v %v", d, ok)
	}
	if _, ok := m.ModelInfo("zzz"); ok {
		t.Fatalf("unexpected info for unknown id")
	}
	if len(m.ListModels()) != 2 {
		t.Fatalf("expected two registered models")
	}
	_ = m.LoadModel(testCtx(t), "b", "")
	if !m.Ready() {
		t.Fatalf("expected ready after load")
	}
}
