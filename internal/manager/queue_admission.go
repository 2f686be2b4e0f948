package manager

import (
	"context"
	"sync"
	"time"

	"modelrt/internal/backend"
	"modelrt/pkg/types"
)

// Lease grants exclusive use of a session's model for one generation.
// Release must be called exactly once; extra calls are no-ops.
type Lease struct {
	s    *Session
	once sync.Once
	done func()
}

func (l *Lease) ModelID() string                   { return l.s.ID }
func (l *Lease) Model() backend.Model              { return l.s.model }
func (l *Lease) Descriptor() types.ModelDescriptor { return l.s.Descriptor.Clone() }

// Release frees the in-flight slot and the queue slot.
func (l *Lease) Release() { l.once.Do(l.done) }

// Acquire reserves a queue slot and then the single in-flight slot of the
// session for modelID. Missing, draining or released sessions yield
// SessionUnavailable; a full queue or a wait longer than maxWait yields TooBusy.
func (m *Manager) Acquire(ctx context.Context, modelID string) (*Lease, error) {
	m.mu.RLock()
	s := m.sessions[modelID]
	var state State
	if s != nil {
		state = s.State
	}
	m.mu.RUnlock()
	if s == nil {
		return nil, ErrSessionUnavailable(modelID, "not loaded")
	}
	if state != StateLoaded {
		return nil, ErrSessionUnavailable(modelID, string(state))
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Try to reserve a queue slot with timeout
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case s.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		admissionRejections.WithLabelValues("queue_full").Inc()
		return nil, ErrTooBusy(modelID)
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-s.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.genCh <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		admissionRejections.WithLabelValues("wait_timeout").Inc()
		return nil, ErrTooBusy(modelID)
	}

	// The session may have started draining while we waited.
	m.mu.Lock()
	if s.State != StateLoaded {
		state = s.State
		m.mu.Unlock()
		<-s.genCh
		return nil, ErrSessionUnavailable(modelID, string(state))
	}
	s.LastUsed = time.Now()
	m.mu.Unlock()
	acquired = true
	return &Lease{s: s, done: func() { <-s.genCh; <-s.queueCh }}, nil
}
