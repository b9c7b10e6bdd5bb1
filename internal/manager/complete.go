package manager

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"webllmd/internal/bridge"
)

// syncTimeout bounds the running-flag sync sent when a stream ends.
const syncTimeout = 2 * time.Second

// Stream is one completion run. It is consumed by a single goroutine
// through Next, All or Collect and cannot be restarted.
type Stream struct {
	m        *Manager
	id       uint64
	engineID string
	stop     atomic.Bool
	// lost is set when the engine host detaches mid-run.
	lost     atomic.Bool

	lastChunk time.Time
	finished  bool
	reason    string

	once sync.Once
	err  error
}

// Complete starts a completion on the loaded engine. A completion already
// running is told to stop, locally and on the remote, and its unread chunks
// are discarded.
func (m *Manager) Complete(ctx context.Context, msgs []bridge.Message, temperature float64) (*Stream, error) {
	m.mu.Lock()
	if m.load.Phase != PhaseLoaded {
		id := m.load.EngineID
		m.mu.Unlock()
		return nil, ErrNotLoaded(id)
	}
	prev := m.active
	if prev != nil {
		prev.stop.Store(true)
	}
	m.buf.clear()
	m.runID++
	s := &Stream{m: m, id: m.runID, engineID: m.load.EngineID, lastChunk: time.Now()}
	m.active = s
	m.run = RunRunning
	m.runStarted = time.Now()
	m.completionsTotal++
	m.mu.Unlock()

	m.log.Debug().Uint64("run_id", s.id).Str("model", s.engineID).Int("messages", len(msgs)).Msg("completion start")
	m.publisher.Publish(Event{Name: EventCompletionStart, ModelID: s.engineID, Fields: map[string]any{"run_id": s.id}})

	var err error
	if prev != nil {
		// end the superseded run on the remote
		err = m.send(ctx, bridge.RunningCommand{Running: false})
	}
	if err == nil {
		err = m.send(ctx, bridge.RunningCommand{Running: true})
	}
	if err == nil {
		err = m.send(ctx, bridge.CompleteCommand{RunID: s.id, Messages: msgs, Temperature: temperature})
	}
	if err != nil {
		uerr := ErrEngineUnavailable("completion not delivered: " + err.Error())
		s.end(uerr)
		return nil, uerr
	}
	return s, nil
}

// ID returns the run id echoed by the engine host.
func (s *Stream) ID() uint64 { return s.id }

// EngineID returns the engine the run was started on.
func (s *Stream) EngineID() string { return s.engineID }

// FinishReason returns the terminal reason once the stream has ended
// normally, or "" before that.
func (s *Stream) FinishReason() string { return s.reason }

// Stop asks the stream to end at its next poll. Safe from any goroutine.
func (s *Stream) Stop() { s.stop.Store(true) }

// Close stops the stream and releases the run if it is still open.
func (s *Stream) Close() {
	s.Stop()
	s.end(ErrStopped)
}

// Next returns the next non-empty delta. It returns io.EOF after the
// engine's terminal chunk, ErrStopped after a stop, an engine unavailable
// error when the engine fails or stalls, and ctx.Err() when ctx is done.
// Errors are sticky.
func (s *Stream) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.finished {
		return "", s.end(io.EOF)
	}
	m := s.m
	for {
		if s.lost.Load() {
			return "", s.end(ErrEngineUnavailable("engine host detached during completion"))
		}
		if s.stop.Load() {
			return "", s.end(ErrStopped)
		}
		if c, ok := m.popChunk(s); ok {
			s.lastChunk = time.Now()
			switch c.FinishReason {
			case "":
				if c.Delta == "" {
					continue
				}
				return c.Delta, nil
			case bridge.FinishError:
				m.engineLost(s.engineID, "engine reported a completion error")
				return "", s.end(ErrEngineUnavailable("engine reported a completion error"))
			default:
				s.finished = true
				s.reason = c.FinishReason
				if c.Delta == "" {
					return "", s.end(io.EOF)
				}
				return c.Delta, nil
			}
		}
		if time.Since(s.lastChunk) >= m.chunkTimeout {
			return "", s.end(ErrEngineUnavailable("completion stalled: no chunk from engine host for " + m.chunkTimeout.String()))
		}
		t := time.NewTimer(m.pollInterval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return "", s.end(ctx.Err())
		}
	}
}

// All ranges over the deltas. Iteration ends quietly at io.EOF; any other
// error is yielded once. Breaking out of the loop closes the stream.
func (s *Stream) All(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			d, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(d, nil) {
				s.Close()
				return
			}
		}
	}
}

// Collect drains the stream and returns the concatenated text. On error the
// text received so far is returned with it.
func (s *Stream) Collect(ctx context.Context) (string, error) {
	var b strings.Builder
	for d, err := range s.All(ctx) {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(d)
	}
	return b.String(), nil
}

// end records the terminal error once and releases the run.
func (s *Stream) end(err error) error {
	s.once.Do(func() {
		s.err = err
		s.m.finishRun(s, err)
	})
	return s.err
}

func (m *Manager) popChunk(s *Stream) (bridge.Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != s {
		return bridge.Chunk{}, false
	}
	return m.buf.pop()
}

// finishRun returns the manager to idle if s is still the active run.
func (m *Manager) finishRun(s *Stream, err error) {
	m.mu.Lock()
	current := m.active == s
	var dur time.Duration
	if current {
		m.active = nil
		m.run = RunIdle
		m.buf.clear()
		dur = time.Since(m.runStarted)
	}
	m.mu.Unlock()

	outcome := outcomeOf(err)
	m.log.Debug().Uint64("run_id", s.id).Str("outcome", outcome).Bool("current", current).Msg("completion end")
	if current {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		if serr := m.send(ctx, bridge.RunningCommand{Running: false}); serr != nil {
			m.log.Debug().Err(serr).Msg("running flag sync failed")
		}
		cancel()
	}
	fields := map[string]any{"run_id": s.id, "outcome": outcome}
	if current {
		fields["duration_ms"] = dur.Milliseconds()
	}
	m.publisher.Publish(Event{Name: EventCompletionEnd, ModelID: s.engineID, Fields: fields})
}

// outcomeOf labels how a stream ended.
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return "success"
	case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled):
		return "stopped"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}

// RunState returns whether a completion is streaming.
func (m *Manager) RunState() RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run
}
