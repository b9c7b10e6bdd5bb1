package manager

// LoadPhase is the lifecycle position of the selected engine.
type LoadPhase string

const (
	PhaseNotLoaded LoadPhase = "not_loaded"
	PhaseLoading   LoadPhase = "loading"
	PhaseLoaded    LoadPhase = "loaded"
	PhaseLoadError LoadPhase = "load_error"
)

// LoadState describes the selected engine and how far its load got.
// Progress and Text are only meaningful while Loading; Err is kept after a
// failed load until the next one starts.
type LoadState struct {
	EngineID string
	Phase    LoadPhase
	Progress float64
	Text     string
	Err      string
}

// RunState tells whether a completion is streaming.
type RunState string

const (
	RunIdle    RunState = "idle"
	RunRunning RunState = "running"
)

// Snapshot is a read-only view of the manager.
type Snapshot struct {
	Load      LoadState
	Run       RunState
	RunID     uint64
	Connected bool
}
