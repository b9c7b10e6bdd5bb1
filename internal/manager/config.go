package manager

import (
	"time"

	"github.com/rs/zerolog"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultPollInterval = 10 * time.Millisecond
	defaultLoadTimeout  = 5 * time.Minute
	defaultChunkTimeout = 60 * time.Second
	defaultTemperature  = 1.0
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Channel bridge.Channel
	// Catalog defaults to a store seeded with catalog.Default().
	Catalog      *catalog.Store
	DefaultModel string
	// AllowReload re-issues a load for an engine that is already loaded.
	AllowReload bool

	PollInterval time.Duration
	// LoadTimeout is the longest silence tolerated while loading.
	LoadTimeout time.Duration
	// ChunkTimeout is the longest silence tolerated while streaming.
	ChunkTimeout time.Duration
	// Temperature is used when a request does not carry one.
	Temperature *float64

	Logger    *zerolog.Logger
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		ch:          cfg.Channel,
		catalog:     cfg.Catalog,
		allowReload: cfg.AllowReload,
		load:        LoadState{EngineID: cfg.DefaultModel, Phase: PhaseNotLoaded},
		run:         RunIdle,
		changed:     make(chan struct{}),
		publisher:   cfg.Publisher,
		startTime:   time.Now(),
	}
	// Apply defaults if unset
	if m.catalog == nil {
		m.catalog = catalog.NewStore(catalog.Default())
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	m.pollInterval = cfg.PollInterval
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	m.loadTimeout = cfg.LoadTimeout
	if m.loadTimeout <= 0 {
		m.loadTimeout = defaultLoadTimeout
	}
	m.chunkTimeout = cfg.ChunkTimeout
	if m.chunkTimeout <= 0 {
		m.chunkTimeout = defaultChunkTimeout
	}
	m.temperature = defaultTemperature
	if cfg.Temperature != nil {
		m.temperature = *cfg.Temperature
	}
	return m
}
