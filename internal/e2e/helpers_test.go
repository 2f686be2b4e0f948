package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelrt/internal/backend"
	"modelrt/internal/engine"
	"modelrt/internal/httpapi"
	"modelrt/internal/manager"
	"modelrt/internal/registry"
	"modelrt/internal/service"
	"modelrt/internal/tokenizer"
	"modelrt/internal/worker"
)

// createTempModelsDir creates a temporary directory populated with toy
// artifacts and returns its path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("weights "+n), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

type testServer struct {
	*httptest.Server
	mgr    *manager.Manager
	events *manager.MemoryPublisher
}

// newServerForDir wires HTTP -> client -> memory broker -> worker -> service
// for the artifacts in modelsDir.
func newServerForDir(t *testing.T, modelsDir string) *testServer {
	t.Helper()
	descs, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	cat, err := registry.NewCatalog(descs)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tok := tokenizer.New(tokenizer.DefaultVocabulary())
	events := manager.NewMemoryPublisher()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:      cat,
		Backend:      backend.NewToy(backend.ToyConfig{VocabSize: tok.VocabSize()}),
		Publisher:    events,
		MaxWait:      time.Second,
		DrainTimeout: 200 * time.Millisecond,
	})
	svc := service.New(service.Config{Manager: mgr, Engine: engine.New(engine.Config{Tokenizer: tok})})
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	broker := worker.NewMemoryBroker(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.New(svc, broker, zerolog.Nop()).Run(ctx)
	}()

	srv := httptest.NewServer(httpapi.NewMux(worker.NewClient(broker, zerolog.Nop())))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		_ = svc.Cleanup(context.Background())
	})
	return &testServer{Server: srv, mgr: mgr, events: events}
}

// doJSON sends a request and decodes the JSON response into out (if non-nil).
func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rdr)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, url, data, err)
		}
	}
	return resp.StatusCode
}
