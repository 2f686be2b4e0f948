package manager

import (
	"sync"
	"time"

	"modelrt/internal/backend"
	"modelrt/pkg/types"
)

// State represents lifecycle state of a session.
type State string

const (
	StateLoaded   State = "loaded"
	StateDraining State = "draining"
	StateReleased State = "released"
)

// Session is a live model context (one per model id). The backend model is
// exclusively owned by the session and released exactly once.
type Session struct {
	ID         string
	Descriptor types.ModelDescriptor
	Location   string
	State      State
	LoadedAt   time.Time
	LastUsed   time.Time

	model backend.Model
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots

	releaseOnce sync.Once
	releaseErr  error
}

// release closes the backend model. Later calls return the first result.
func (s *Session) release() error {
	s.releaseOnce.Do(func() {
		if s.model != nil {
			s.releaseErr = s.model.Close()
		}
	})
	return s.releaseErr
}
