package manager

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"modelrt/internal/backend"
	"modelrt/internal/registry"
	"modelrt/pkg/types"
)

// Manager owns the id -> session map. Exactly one live session exists per
// model id; all map access happens under mu.
type Manager struct {
	mu        sync.RWMutex
	catalog   *registry.Catalog
	backend   backend.Backend
	log       zerolog.Logger
	publisher EventPublisher
	sessions  map[string]*Session
	loads     singleflight.Group

	lastErr         string
	releaseFailed   []types.ReleaseFailure
	releaseFailCap  int
	loadsTotal      uint64
	unloadsTotal    uint64
	loadsInProgress int
	startTime       time.Time

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration
}

func New(catalog *registry.Catalog, be backend.Backend) *Manager {
	// Delegate to NewWithConfig to centralize defaults
	return NewWithConfig(ManagerConfig{Catalog: catalog, Backend: be})
}

// SetEventPublisher replaces the lifecycle event sink. nil restores the no-op default.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	p.Publish(e)
}

// Ready reports whether at least one session is loaded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.State == StateLoaded {
			return true
		}
	}
	return false
}

// ListModels returns every registered descriptor.
func (m *Manager) ListModels() []types.ModelDescriptor {
	return m.catalog.List()
}

// ModelInfo returns the registered descriptor for id, loaded or not.
func (m *Manager) ModelInfo(id string) (types.ModelDescriptor, bool) {
	return m.catalog.Lookup(id)
}

// LoadedModels returns the ids of live sessions in sorted order.
func (m *Manager) LoadedModels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.State == StateLoaded {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// IsLoaded reports whether id has a live session.
func (m *Manager) IsLoaded(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return ok && s.State == StateLoaded
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}
