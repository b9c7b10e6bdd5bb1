package manager

import (
	"context"
	"time"

	"webllmd/internal/bridge"
)

// Run consumes engine events and watches for stalled loads until ctx is
// done. Exactly one Run should be active per manager.
func (m *Manager) Run(ctx context.Context) error {
	tick := time.NewTicker(watchdogInterval(m.loadTimeout))
	defer tick.Stop()
	var events <-chan bridge.Event
	if m.ch != nil {
		events = m.ch.Events()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			m.handleEvent(ctx, ev)
		case now := <-tick.C:
			m.checkLoadStall(ctx, now)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev bridge.Event) {
	var in loadInput
	switch e := ev.(type) {
	case bridge.ProgressEvent:
		in = progressInput{engineID: e.EngineID, progress: e.Progress, text: e.Text}
	case bridge.LoadedEvent:
		in = loadedInput{engineID: e.EngineID}
	case bridge.ErrorEvent:
		in = failedInput{engineID: e.EngineID, message: e.Message}
	case bridge.ChunkEvent:
		m.pushChunk(e)
		return
	default:
		return
	}
	m.mu.Lock()
	effs := m.stepLocked(in)
	m.mu.Unlock()
	if len(effs) == 0 {
		m.log.Debug().Interface("event", ev).Msg("ignoring stale engine event")
		return
	}
	switch e := ev.(type) {
	case bridge.LoadedEvent:
		m.log.Info().Str("model", e.EngineID).Msg("engine loaded")
	case bridge.ErrorEvent:
		m.log.Warn().Str("model", e.EngineID).Str("error", e.Message).Msg("engine load failed")
	}
	_ = m.apply(ctx, effs)
}

// pushChunk buffers c while a run is active. Chunks carrying another run's
// id are left over from a superseded run and dropped.
func (m *Manager) pushChunk(c bridge.ChunkEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != RunRunning || (c.RunID != 0 && c.RunID != m.runID) {
		m.log.Debug().Uint64("run_id", c.RunID).Uint64("current", m.runID).Msg("dropping stale chunk")
		return
	}
	m.buf.push(c.Chunk)
}

func watchdogInterval(timeout time.Duration) time.Duration {
	d := timeout / 4
	if d > time.Second {
		d = time.Second
	}
	if d < 5*time.Millisecond {
		d = 5 * time.Millisecond
	}
	return d
}
