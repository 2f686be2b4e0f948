package manager

import (
	"sort"
	"time"

	"modelrt/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		LastError:       m.lastErr,
		UptimeSeconds:   int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:  now.Unix(),
		LoadsTotal:      m.loadsTotal,
		UnloadsTotal:    m.unloadsTotal,
		LoadsInProgress: m.loadsInProgress,
	}
	resp.Sessions = make([]types.SessionStatus, 0, len(m.sessions))
	for _, s := range m.sessions {
		resp.Sessions = append(resp.Sessions, types.SessionStatus{
			ModelID:       s.ID,
			State:         string(s.State),
			LoadedAt:      s.LoadedAt.Unix(),
			LastUsed:      s.LastUsed.Unix(),
			QueueLen:      len(s.queueCh),
			Inflight:      len(s.genCh),
			MaxQueueDepth: cap(s.queueCh),
		})
	}
	sort.Slice(resp.Sessions, func(i, j int) bool { return resp.Sessions[i].ModelID < resp.Sessions[j].ModelID })
	if len(m.releaseFailed) > 0 {
		resp.ReleaseFailed = append([]types.ReleaseFailure(nil), m.releaseFailed...)
	}
	return resp
}
