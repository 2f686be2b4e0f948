package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelrt/internal/backend"
	"modelrt/pkg/types"
)

// Load allocates a session for a registered model. It is idempotent: an id
// that is already loaded returns nil without allocating again. Concurrent
// loads of the same id share one allocation; the allocation runs with the
// context of the caller that started it, and every waiter returns early if
// its own ctx ends first.
func (m *Manager) Load(ctx context.Context, id, location string) error {
	if id == "" {
		return ErrModelNotFound("(unspecified)")
	}
	desc, ok := m.catalog.Lookup(id)
	if !ok {
		err := ErrModelNotFound(id)
		m.log.Warn().Str("event", "load_not_found").Str("model", id).Msg("manager: load rejected")
		m.publish(Event{Name: "load_not_found", ModelID: id})
		loadsTotal.WithLabelValues("not_found").Inc()
		return err
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok && s.State == StateLoaded {
		s.LastUsed = time.Now()
		m.mu.Unlock()
		m.log.Debug().Str("event", "load_cached").Str("model", id).Msg("manager: already loaded")
		loadsTotal.WithLabelValues("cached").Inc()
		return nil
	}
	m.mu.Unlock()

	ch := m.loads.DoChan(id, func() (any, error) {
		return nil, m.allocate(ctx, desc, location)
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadModel is the boolean form of Load used at the RPC boundary. Failures
// are logged by Load and never propagate as panics.
func (m *Manager) LoadModel(ctx context.Context, id, location string) bool {
	return m.Load(ctx, id, location) == nil
}

// allocate performs the backend load and commits the session.
func (m *Manager) allocate(ctx context.Context, desc types.ModelDescriptor, location string) error {
	id := desc.ID
	m.mu.Lock()
	// Another flight may have committed between the fast path and here.
	if s, ok := m.sessions[id]; ok && s.State == StateLoaded {
		m.mu.Unlock()
		return nil
	}
	if s, ok := m.sessions[id]; ok && s.State == StateDraining {
		m.mu.Unlock()
		return ErrSessionUnavailable(id, "unload in progress")
	}
	m.loadsInProgress++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loadsInProgress--
		m.mu.Unlock()
	}()

	if strings.TrimSpace(location) == "" {
		location = desc.ArtifactLocation
	}
	m.publish(Event{Name: "ensure_start", ModelID: id, Fields: map[string]any{"location": location}})
	m.log.Info().Str("event", "ensure_start").Str("model", id).Str("location", location).Msg("manager: loading model")

	start := time.Now()
	mdl, err := m.loadBackend(ctx, desc, location)
	if err != nil {
		lerr := ErrLoadFailure(id, err)
		m.setLastError(lerr)
		m.log.Error().Err(err).Str("event", "load_failed").Str("model", id).Msg("manager: load failed")
		m.publish(Event{Name: "load_failed", ModelID: id, Fields: map[string]any{"error": err.Error()}})
		loadsTotal.WithLabelValues("failed").Inc()
		return lerr
	}

	now := time.Now()
	s := &Session{
		ID:         id,
		Descriptor: desc,
		Location:   location,
		State:      StateLoaded,
		LoadedAt:   now,
		LastUsed:   now,
		model:      mdl,
		genCh:      make(chan struct{}, 1),
		queueCh:    make(chan struct{}, m.maxQueueDepth),
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.loadsTotal++
	m.lastErr = ""
	n := len(m.sessions)
	m.mu.Unlock()
	sessionsLoaded.Set(float64(n))
	loadDuration.Observe(time.Since(start).Seconds())
	loadsTotal.WithLabelValues("loaded").Inc()

	m.log.Info().Str("event", "load_ready").Str("model", id).Dur("took", time.Since(start)).Msg("manager: model ready")
	m.publish(Event{Name: "ensure_ready", ModelID: id, Fields: map[string]any{"vocab": mdl.VocabSize()}})
	return nil
}

// loadBackend calls the backend, converting a panic into an error.
func (m *Manager) loadBackend(ctx context.Context, desc types.ModelDescriptor, location string) (mdl backend.Model, err error) {
	if m.backend == nil {
		return nil, errNoBackend
	}
	defer func() {
		if r := recover(); r != nil {
			mdl, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	mdl, err = m.backend.Load(ctx, desc, location)
	if err == nil && mdl == nil {
		err = errors.New("backend returned no model")
	}
	return mdl, err
}

var errNoBackend = errors.New("no backend configured")
