package manager

import (
	"context"
	"fmt"
	"time"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
)

// Selection returns the selected engine id.
func (m *Manager) Selection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load.EngineID
}

// LoadState returns the current load state.
func (m *Manager) LoadState() LoadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load
}

// Select makes id the current engine. Selecting a different engine resets
// the load state and stops a running completion; reselecting the current
// one is a no-op.
func (m *Manager) Select(id string) error {
	if !m.catalog.Load().Contains(id) {
		return catalog.ErrIDNotFound(id)
	}
	m.mu.Lock()
	if id != m.load.EngineID && m.active != nil {
		m.active.stop.Store(true)
	}
	effs := m.stepLocked(selectInput{engineID: id})
	m.mu.Unlock()
	if len(effs) > 0 {
		m.log.Info().Str("model", id).Msg("engine selected")
	}
	return m.apply(context.Background(), effs)
}

// SelectCoordinate resolves co against the current catalog and selects it.
func (m *Manager) SelectCoordinate(co catalog.Coordinate) (string, error) {
	id, err := m.catalog.Load().Resolve(co)
	if err != nil {
		return "", err
	}
	return id, m.Select(id)
}

// Load asks the engine host to load the selected engine and returns without
// waiting for it. A load already in flight, or an engine already loaded
// while reloads are disabled, makes Load a no-op.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.load.EngineID == "" {
		m.mu.Unlock()
		return catalog.ErrIDNotFound("")
	}
	if m.run == RunRunning {
		m.mu.Unlock()
		return ErrBusy("completion running")
	}
	effs := m.stepLocked(loadRequest{})
	m.mu.Unlock()
	return m.apply(ctx, effs)
}

// LoadAndWait loads the selected engine and blocks until it is loaded, the
// load fails, the selection changes or ctx is done.
func (m *Manager) LoadAndWait(ctx context.Context) error {
	m.mu.Lock()
	id := m.load.EngineID
	m.mu.Unlock()
	if err := m.Load(ctx); err != nil {
		return err
	}
	for {
		m.mu.Lock()
		s, changed := m.load, m.changed
		m.mu.Unlock()
		if s.EngineID != id {
			return ErrLoadError(id, "selection changed to "+s.EngineID)
		}
		switch s.Phase {
		case PhaseLoaded:
			return nil
		case PhaseLoadError:
			return ErrLoadError(id, s.Err)
		case PhaseNotLoaded:
			return ErrLoadError(id, "load abandoned")
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// stepLocked feeds in to the state machine and records the result.
// Callers hold m.mu and apply the returned effects after unlocking.
func (m *Manager) stepLocked(in loadInput) []effect {
	next, effs := transitionLoad(m.load, in, m.allowReload)
	if len(effs) == 0 {
		return nil
	}
	m.loadActivity = time.Now()
	if next != m.load {
		m.load = next
		close(m.changed)
		m.changed = make(chan struct{})
	}
	if _, ok := in.(loadRequest); ok {
		m.loadsTotal++
	}
	return effs
}

// apply performs effects in order. A failed load command fails the load.
func (m *Manager) apply(ctx context.Context, effs []effect) error {
	var firstErr error
	for _, e := range effs {
		switch e := e.(type) {
		case notifyEffect:
			m.publisher.Publish(e.ev)
		case sendEffect:
			err := m.send(ctx, e.cmd)
			if err == nil {
				continue
			}
			if lc, ok := e.cmd.(bridge.LoadCommand); ok {
				m.log.Warn().Err(err).Str("model", lc.EngineID).Msg("load command not delivered")
				m.mu.Lock()
				more := m.stepLocked(failedInput{engineID: lc.EngineID, message: "engine host unreachable: " + err.Error()})
				m.mu.Unlock()
				_ = m.apply(ctx, more)
			}
			if firstErr == nil {
				firstErr = ErrEngineUnavailable(err.Error())
			}
		}
	}
	return firstErr
}

func (m *Manager) send(ctx context.Context, cmd bridge.Command) error {
	if m.ch == nil {
		return bridge.ErrDisconnected
	}
	return m.ch.Send(ctx, cmd)
}

// checkLoadStall fails a load that has been silent for longer than the
// load timeout.
func (m *Manager) checkLoadStall(ctx context.Context, now time.Time) {
	m.mu.Lock()
	if m.load.Phase != PhaseLoading || now.Sub(m.loadActivity) < m.loadTimeout {
		m.mu.Unlock()
		return
	}
	id := m.load.EngineID
	msg := fmt.Sprintf("load stalled: no progress from engine host for %s", m.loadTimeout)
	effs := m.stepLocked(failedInput{engineID: id, message: msg})
	m.mu.Unlock()
	m.log.Warn().Str("model", id).Dur("timeout", m.loadTimeout).Msg("load stalled")
	_ = m.apply(ctx, effs)
}

// HostConnection records an engine host attach or detach. A detach drops
// the load state of the selected engine so the next Load is sent again,
// and fails a running completion. It fits bridge.Observer.OnConnection.
func (m *Manager) HostConnection(connected bool) {
	if connected {
		return
	}
	m.mu.Lock()
	if m.active != nil {
		m.active.lost.Store(true)
	}
	m.mu.Unlock()
	m.engineLost("", "engine host detached")
}

// engineLost moves a Loaded or Loading engine back to NotLoaded when the
// engine host no longer holds it. An empty id means the selected engine.
func (m *Manager) engineLost(id, reason string) {
	m.mu.Lock()
	effs := m.stepLocked(lostInput{engineID: id, reason: reason})
	cur := m.load.EngineID
	m.mu.Unlock()
	if len(effs) == 0 {
		return
	}
	m.log.Warn().Str("model", cur).Str("reason", reason).Msg("engine lost, load required")
	_ = m.apply(context.Background(), effs)
}
