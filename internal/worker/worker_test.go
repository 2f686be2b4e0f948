package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelrt/internal/backend"
	"modelrt/internal/engine"
	"modelrt/internal/manager"
	"modelrt/internal/registry"
	"modelrt/internal/service"
	"modelrt/internal/tokenizer"
	"modelrt/pkg/types"
)

// startWorker wires a toy-backed service behind a memory broker and runs
// the worker until the test ends.
func startWorker(t *testing.T, loadDelay time.Duration, ids ...string) (*Client, *MemoryBroker) {
	t.Helper()
	dir := t.TempDir()
	var descs []types.ModelDescriptor
	for _, id := range ids {
		p := filepath.Join(dir, id+".bin")
		if err := os.WriteFile(p, []byte(id), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		descs = append(descs, types.ModelDescriptor{ID: id, ArtifactLocation: p})
	}
	cat, err := registry.NewCatalog(descs)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tok := tokenizer.New(tokenizer.DefaultVocabulary())
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:      cat,
		Backend:      backend.NewToy(backend.ToyConfig{VocabSize: tok.VocabSize(), LoadDelay: loadDelay}),
		DrainTimeout: 100 * time.Millisecond,
	})
	svc := service.New(service.Config{Manager: mgr, Engine: engine.New(engine.Config{Tokenizer: tok})})
	b := NewMemoryBroker(16)
	w := New(svc, b, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Errorf("worker did not stop")
		}
	})
	return NewClient(b, zerolog.Nop()), b
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := startWorker(t, 0, "m")
	ctx := testCtx(t)
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !c.LoadModel(ctx, "m", "") || !c.LoadModel(ctx, "m", "") {
		t.Fatalf("load failed")
	}
	ids, err := c.LoadedModels(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "m" {
		t.Fatalf("loaded=%v err=%v", ids, err)
	}
	text := c.GenerateText(ctx, "m", "hello world", types.GenerateOptions{MaxTokens: 5, Seed: 1})
	if service.IsInferenceError(text) {
		t.Fatalf("generate text: %q", text)
	}
	res, err := c.Generate(ctx, "m", "hello world", types.GenerateOptions{MaxTokens: 5, Seed: 1})
	if err != nil || res.TokensGenerated > 5 || res.Text != text {
		t.Fatalf("generate: %+v err=%v", res, err)
	}
	info, err := c.ModelInfo(ctx, "m")
	if err != nil || info == nil || info.ID != "m" {
		t.Fatalf("info=%+v err=%v", info, err)
	}
	if info, err := c.ModelInfo(ctx, "nope"); err != nil || info != nil {
		t.Fatalf("expected nil info, got %+v err=%v", info, err)
	}
	an, err := c.AnalyzeDocument(ctx, "m", "good day", types.AnalysisSentiment)
	if err != nil || an.ModelUsed != "m" || len(an.Results) != 1 {
		t.Fatalf("analyze=%+v err=%v", an, err)
	}
	models, err := c.ListModels(ctx)
	if err != nil || len(models) != 1 {
		t.Fatalf("list=%v err=%v", models, err)
	}
	st, err := c.Status(ctx)
	if err != nil || len(st.Sessions) != 1 {
		t.Fatalf("status=%+v err=%v", st, err)
	}
	if !c.UnloadModel(ctx, "m") || c.UnloadModel(ctx, "m") {
		t.Fatalf("unload semantics broken")
	}
	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestClientTypedErrors(t *testing.T) {
	c, _ := startWorker(t, 0, "m")
	ctx := testCtx(t)
	_, err := c.Generate(ctx, "m", "hello", types.GenerateOptions{})
	if ErrorCode(err) != CodeSessionUnavailable {
		t.Fatalf("expected session unavailable, got %v (%s)", err, ErrorCode(err))
	}
	if text := c.GenerateText(ctx, "m", "hello", types.GenerateOptions{}); !strings.HasPrefix(text, "[Inference Error:") {
		t.Fatalf("expected in-band error, got %q", text)
	}
	_, err = c.AnalyzeDocument(ctx, "m", "x", types.AnalysisKind("haiku"))
	if ErrorCode(err) != CodeInvalidRequest {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if c.LoadModel(ctx, "m1", "/models/m1") {
		t.Fatalf("unregistered load must be false")
	}
}

func TestWorkerRejectsBadCalls(t *testing.T) {
	_, b := startWorker(t, 0, "m")
	ctx := testCtx(t)
	for _, call := range []*Call{
		{ID: "c1", Method: MethodLoadModel},
		{ID: "c2", Method: "reticulate"},
		{ID: "c3", Method: MethodGenerate, Params: []byte(`{"id":3}`)},
	} {
		sub, err := b.Subscribe(ctx, call.ID)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := b.Enqueue(ctx, call); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		select {
		case r := <-sub.Replies():
			if r.Code != CodeInvalidRequest {
				t.Fatalf("%s: code=%q err=%q", call.ID, r.Code, r.Error)
			}
		case <-ctx.Done():
			t.Fatalf("%s: no reply", call.ID)
		}
		_ = sub.Close()
	}
}

func TestCallsRunInArrivalOrder(t *testing.T) {
	c, _ := startWorker(t, 100*time.Millisecond, "a")
	ctx := testCtx(t)
	load := c.GoLoadModel(ctx, "a", "")
	// give the load call a head start into the queue
	time.Sleep(10 * time.Millisecond)
	list := c.GoLoadedModels(ctx)
	ids, err := list.Wait(ctx)
	if err != nil {
		t.Fatalf("loaded: %v", err)
	}
	if ok, _ := load.Wait(ctx); !ok {
		t.Fatalf("load failed")
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("list observed before load completed: %v", ids)
	}
}

func TestClientTimeoutCancelsGeneration(t *testing.T) {
	c, _ := startWorker(t, 0, "m")
	ctx := testCtx(t)
	if !c.LoadModel(ctx, "m", "") {
		t.Fatalf("load failed")
	}
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(short, "m", "hello", types.GenerateOptions{MaxTokens: 1 << 30})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	// The worker must abandon the long decode and serve the next call.
	next, cancelNext := context.WithTimeout(ctx, 2*time.Second)
	defer cancelNext()
	if _, err := c.LoadedModels(next); err != nil {
		t.Fatalf("worker still busy after cancel: %v", err)
	}
}

func TestFutureWaitHonorsContext(t *testing.T) {
	f := goFuture(func() (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	v, err := f.Wait(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}
