package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
)

const (
	alphaID = "Alpha-1B-Instruct-q4f16_1-MLC"
	betaID  = "Beta-3B-Instruct-q0f16-MLC"
)

// recChannel records commands and lets tests inject events.
type recChannel struct {
	mu     sync.Mutex
	sent   []bridge.Command
	err    error
	events chan bridge.Event
}

func newRecChannel() *recChannel { return &recChannel{events: make(chan bridge.Event, 64)} }

func (c *recChannel) Send(_ context.Context, cmd bridge.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *recChannel) Events() <-chan bridge.Event { return c.events }

func (c *recChannel) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *recChannel) Sent() []bridge.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bridge.Command, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *recChannel) loads() int {
	n := 0
	for _, cmd := range c.Sent() {
		if _, ok := cmd.(bridge.LoadCommand); ok {
			n++
		}
	}
	return n
}

func testStore() *catalog.Store {
	c := catalog.Catalog{}
	c.Add(alphaID)
	c.Add(betaID)
	return catalog.NewStore(c)
}

func newTestManager(ch bridge.Channel, mutate func(*ManagerConfig)) *Manager {
	cfg := ManagerConfig{Channel: ch, Catalog: testStore(), ChunkTimeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewWithConfig(cfg)
}

// loaded brings m to Loaded on id by feeding events directly.
func loaded(t *testing.T, m *Manager, id string) {
	t.Helper()
	if err := m.Select(id); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := m.Load(testCtx(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.handleEvent(testCtx(t), bridge.LoadedEvent{EngineID: id})
	if !m.Ready() {
		t.Fatalf("expected Loaded, got %+v", m.LoadState())
	}
}

func chunk(run uint64, delta, finish string) bridge.ChunkEvent {
	return bridge.ChunkEvent{RunID: run, Chunk: bridge.Chunk{Role: "assistant", Delta: delta, FinishReason: finish}}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
