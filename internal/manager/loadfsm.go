package manager

import (
	"math"

	"webllmd/internal/bridge"
)

// loadInput is anything that can move the load state machine.
type loadInput interface{ isLoadInput() }

type (
	selectInput   struct{ engineID string }
	loadRequest   struct{}
	progressInput struct {
		engineID string
		progress float64
		text     string
	}
	loadedInput struct{ engineID string }
	failedInput struct{ engineID, message string }
	// lostInput reports that the engine host no longer holds an engine.
	lostInput struct{ engineID, reason string }
)

func (selectInput) isLoadInput()   {}
func (loadRequest) isLoadInput()   {}
func (progressInput) isLoadInput() {}
func (loadedInput) isLoadInput()   {}
func (failedInput) isLoadInput()   {}
func (lostInput) isLoadInput()     {}

// effect is work the manager performs after a transition, outside its lock.
type effect interface{ isEffect() }

type (
	sendEffect   struct{ cmd bridge.Command }
	notifyEffect struct{ ev Event }
)

func (sendEffect) isEffect()   {}
func (notifyEffect) isEffect() {}

// transitionLoad is the load lifecycle. It never blocks and never touches
// the channel; inputs that do not apply to s return s unchanged and no
// effects.
func transitionLoad(s LoadState, in loadInput, allowReload bool) (LoadState, []effect) {
	switch in := in.(type) {
	case selectInput:
		if in.engineID == s.EngineID {
			return s, nil
		}
		next := LoadState{EngineID: in.engineID, Phase: PhaseNotLoaded}
		return next, []effect{notifyEffect{Event{Name: EventSelect, ModelID: in.engineID}}}

	case loadRequest:
		if s.EngineID == "" || s.Phase == PhaseLoading {
			return s, nil
		}
		if s.Phase == PhaseLoaded && !allowReload {
			return s, nil
		}
		next := LoadState{EngineID: s.EngineID, Phase: PhaseLoading}
		return next, []effect{
			notifyEffect{Event{Name: EventLoadStart, ModelID: s.EngineID}},
			sendEffect{bridge.LoadCommand{EngineID: s.EngineID}},
		}

	case progressInput:
		if !accepts(s, in.engineID) {
			return s, nil
		}
		s.Progress = clamp01(in.progress)
		s.Text = in.text
		return s, []effect{notifyEffect{Event{
			Name:    EventLoadProgress,
			ModelID: s.EngineID,
			Fields:  map[string]any{"progress": s.Progress, "text": s.Text},
		}}}

	case loadedInput:
		if !accepts(s, in.engineID) {
			return s, nil
		}
		next := LoadState{EngineID: s.EngineID, Phase: PhaseLoaded, Progress: 1}
		return next, []effect{notifyEffect{Event{Name: EventLoadReady, ModelID: s.EngineID}}}

	case failedInput:
		if !accepts(s, in.engineID) {
			return s, nil
		}
		next := LoadState{EngineID: s.EngineID, Phase: PhaseLoadError, Progress: s.Progress, Err: in.message}
		return next, []effect{notifyEffect{Event{
			Name:    EventLoadError,
			ModelID: s.EngineID,
			Fields:  map[string]any{"error": in.message},
		}}}

	case lostInput:
		if in.engineID != "" && in.engineID != s.EngineID {
			return s, nil
		}
		if s.Phase != PhaseLoaded && s.Phase != PhaseLoading {
			return s, nil
		}
		next := LoadState{EngineID: s.EngineID, Phase: PhaseNotLoaded}
		return next, []effect{notifyEffect{Event{
			Name:    EventEngineLost,
			ModelID: s.EngineID,
			Fields:  map[string]any{"reason": in.reason},
		}}}
	}
	return s, nil
}

// accepts reports whether an engine event for id applies to s. Events from
// another engine are stale; an empty id is taken as the current engine.
func accepts(s LoadState, id string) bool {
	if s.Phase != PhaseLoading {
		return false
	}
	return id == "" || id == s.EngineID
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
