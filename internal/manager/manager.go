package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
	"webllmd/pkg/types"
)

// Manager drives one engine host over a bridge channel. It owns the
// selection, the load lifecycle and the single active completion.
type Manager struct {
	mu      sync.Mutex
	ch      bridge.Channel
	catalog *catalog.Store

	load         LoadState
	loadActivity time.Time
	// changed is closed and replaced on every load state change.
	changed chan struct{}

	run        RunState
	runID      uint64
	active     *Stream
	buf        chunkBuffer
	runStarted time.Time

	allowReload  bool
	pollInterval time.Duration
	loadTimeout  time.Duration
	chunkTimeout time.Duration
	temperature  float64

	loadsTotal       uint64
	completionsTotal uint64

	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time
}

// New returns a manager over ch with package defaults and the built-in
// catalog.
func New(ch bridge.Channel, defaultModel string) *Manager {
	// Delegate to NewWithConfig to centralize defaults
	return NewWithConfig(ManagerConfig{Channel: ch, DefaultModel: defaultModel})
}

// SetEventPublisher replaces the event sink. Passing nil disables events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// Ready reports whether the selected engine is loaded.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load.Phase == PhaseLoaded
}

// Catalog returns the current catalog. Callers must not mutate it.
func (m *Manager) Catalog() catalog.Catalog { return m.catalog.Load() }

// ListModels returns the catalog entries sorted by id.
func (m *Manager) ListModels() []types.Model { return m.catalog.Load().Entries() }

// ModelOptions returns the cascading picker options.
func (m *Manager) ModelOptions() types.OptionsResponse {
	return types.OptionsResponse{Levels: catalog.Levels, Options: m.catalog.Load().Options()}
}

// DefaultTemperature is the temperature used when a request has none.
func (m *Manager) DefaultTemperature() float64 { return m.temperature }

// ReplaceCatalog atomically swaps the catalog. The selection is kept even
// when it no longer resolves.
func (m *Manager) ReplaceCatalog(c catalog.Catalog) {
	old := m.catalog.Replace(c)
	m.log.Info().Int("models", c.Len()).Int("previous", old.Len()).Msg("catalog replaced")
	m.publisher.Publish(Event{Name: EventCatalogReplace, Fields: map[string]any{"models": c.Len()}})
}

// RefreshCatalog imports a catalog from src and installs it. On failure the
// current catalog is left untouched.
func (m *Manager) RefreshCatalog(ctx context.Context, src catalog.Source) (int, error) {
	c, err := catalog.Refresh(ctx, src, m.log)
	if err != nil {
		m.log.Warn().Err(err).Msg("catalog refresh failed")
		return 0, err
	}
	m.ReplaceCatalog(c)
	return c.Len(), nil
}

// Connected reports whether the channel has a remote attached. Channels
// that cannot tell are assumed connected.
func (m *Manager) Connected() bool {
	if o, ok := m.ch.(bridge.Observer); ok {
		return o.Connected()
	}
	return m.ch != nil
}
