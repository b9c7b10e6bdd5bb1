package manager

import (
	"time"

	"webllmd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	s := Snapshot{Load: m.load, Run: m.run, RunID: m.runID}
	m.mu.Unlock()
	s.Connected = m.Connected()
	return s
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	resp := types.StatusResponse{
		ModelSlug:        m.load.EngineID,
		LoadState:        string(m.load.Phase),
		Progress:         m.load.Progress,
		Text:             m.load.Text,
		LoadError:        m.load.Err,
		RunState:         string(m.run),
		LoadsTotal:       m.loadsTotal,
		CompletionsTotal: m.completionsTotal,
	}
	m.mu.Unlock()
	now := time.Now()
	resp.BridgeConnected = m.Connected()
	resp.CatalogSize = m.catalog.Load().Len()
	resp.UptimeSeconds = int64(now.Sub(m.startTime).Seconds())
	resp.ServerTimeUnix = now.Unix()
	return resp
}
