package manager

import (
	"context"
	"time"

	"modelrt/pkg/types"
)

// Unload initiates a graceful drain of a session and removes it.
//   - Sets session state to draining to reject new admissions.
//   - Waits up to drainTimeout for in-flight and queued requests to finish.
//   - Releases the backend model and removes the session entry.
//
// The entry is removed even when the release fails; the failure is recorded
// in Status().ReleaseFailed and published as unload_release_failed.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	s := m.sessions[modelID]
	if s == nil {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	if s.State != StateLoaded {
		m.mu.Unlock()
		return ErrSessionUnavailable(modelID, "unload in progress")
	}
	s.State = StateDraining
	m.mu.Unlock()
	m.publish(Event{Name: "unload_start", ModelID: modelID})

	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen := len(s.queueCh)
		inflight := len(s.genCh)
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.log.Warn().Str("event", "unload_timeout").Str("model", modelID).
				Int("inflight", inflight).Int("queue", qlen).Msg("manager: drain timed out")
			m.publish(Event{Name: "unload_timeout", ModelID: modelID, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	relErr := m.releaseSession(s)

	m.mu.Lock()
	s.State = StateReleased
	delete(m.sessions, modelID)
	m.unloadsTotal++
	if relErr != nil {
		m.lastErr = relErr.Error()
		m.releaseFailed = append(m.releaseFailed, types.ReleaseFailure{
			ModelID:  modelID,
			Error:    relErr.Error(),
			FailedAt: time.Now().Unix(),
		})
		if over := len(m.releaseFailed) - m.releaseFailCap; over > 0 {
			m.releaseFailed = append([]types.ReleaseFailure(nil), m.releaseFailed[over:]...)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	sessionsLoaded.Set(float64(n))

	if relErr != nil {
		m.log.Error().Err(relErr).Str("event", "unload_release_failed").Str("model", modelID).Msg("manager: release failed")
		m.publish(Event{Name: "unload_release_failed", ModelID: modelID, Fields: map[string]any{"error": relErr.Error()}})
		unloadsTotal.WithLabelValues("release_failed").Inc()
	} else {
		unloadsTotal.WithLabelValues("released").Inc()
	}
	m.log.Info().Str("event", "unload_done").Str("model", modelID).Msg("manager: model unloaded")
	m.publish(Event{Name: "unload_done", ModelID: modelID})
	return nil
}

// UnloadModel is the boolean form of Unload: false if id was not loaded.
func (m *Manager) UnloadModel(modelID string) bool {
	if err := m.Unload(modelID); err != nil {
		m.log.Debug().Err(err).Str("event", "unload_rejected").Str("model", modelID).Msg("manager: unload rejected")
		return false
	}
	return true
}

// releaseSession closes the backend model, converting a panic into an error.
func (m *Manager) releaseSession(s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{val: r}
		}
	}()
	return s.release()
}

// Cleanup unloads every session best effort. Per-model failures are logged
// and the sweep continues; the first failure is returned. ctx bounds the
// whole sweep.
func (m *Manager) Cleanup(ctx context.Context) error {
	var first error
	for _, id := range m.LoadedModels() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Unload(id); err != nil {
			m.log.Warn().Err(err).Str("event", "cleanup_failed").Str("model", id).Msg("manager: cleanup")
			if first == nil {
				first = err
			}
		}
	}
	m.publish(Event{Name: "cleanup_done"})
	return first
}
