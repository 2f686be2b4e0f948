package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"modelrt/internal/backend"
	"modelrt/internal/registry"
	"modelrt/pkg/types"
)

// fakeModel is a lightweight in-memory model used for tests.
type fakeModel struct {
	closeErr   error
	closePanic bool
	closes     atomic.Int32
}

type fakeState struct{ n int }

func (s *fakeState) Steps() int { return s.n }

func (f *fakeModel) VocabSize() int                { return 4 }
func (f *fakeModel) NewState() backend.DecodeState { return &fakeState{} }
func (f *fakeModel) Close() error {
	f.closes.Add(1)
	if f.closePanic {
		panic("close exploded")
	}
	return f.closeErr
}
func (f *fakeModel) Forward(ctx context.Context, st backend.DecodeState, toks []int) ([]float32, error) {
	return []float32{0, 1, 0, 0}, nil
}

// fakeBackend counts allocations and can be made to fail or block.
type fakeBackend struct {
	mu         sync.Mutex
	loads      int
	err        error
	delay      time.Duration
	closeErr   error
	closePanic bool
	models     []*fakeModel
	lastLoc    string
}

func (b *fakeBackend) Load(ctx context.Context, desc types.ModelDescriptor, location string) (backend.Model, error) {
	b.mu.Lock()
	b.loads++
	b.lastLoc = location
	err, delay, closeErr, closePanic := b.err, b.delay, b.closeErr, b.closePanic
	b.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	m := &fakeModel{closeErr: closeErr, closePanic: closePanic}
	b.mu.Lock()
	b.models = append(b.models, m)
	b.mu.Unlock()
	return m, nil
}

func (b *fakeBackend) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads
}

var errBoom = errors.New("boom")

func testCatalog(t *testing.T, ids ...string) *registry.Catalog {
	t.Helper()
	descs := make([]types.ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		descs = append(descs, types.ModelDescriptor{ID: id, ArtifactLocation: "/models/" + id})
	}
	c, err := registry.NewCatalog(descs)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func newTestManager(t *testing.T, be backend.Backend, ids ...string) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Catalog:       testCatalog(t, ids...),
		Backend:       be,
		Publisher:     pub,
		MaxQueueDepth: 2,
		MaxWait:       200 * time.Millisecond,
		DrainTimeout:  200 * time.Millisecond,
	})
	return m, pub
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
