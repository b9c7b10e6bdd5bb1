package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FakeEngine plays the browser side of a Pipe. It mimics web-llm: engines
// are cached per id, loads report staged progress then a loaded marker, and
// completions stream one chunk per word until the host clears the running
// flag. Used by tests and by `webllmd serve --fake-engine`.
type FakeEngine struct {
	Pipe *Pipe

	// LoadSteps progress events are emitted before the loaded marker.
	LoadSteps int
	// StepDelay sleeps between load steps and between chunks.
	StepDelay time.Duration
	// FailLoad maps engine ids to a load error message.
	FailLoad map[string]string
	// Silent engine ids never answer a load.
	Silent map[string]bool
	// Reply produces the tokens for a completion. Defaults to echoing the
	// last user message word by word.
	Reply func(msgs []Message) []string

	mu      sync.Mutex
	engines map[string]bool
	current string
	running bool
	runGen  uint64
}

// NewFakeEngine returns a fake with three load steps and no delay.
func NewFakeEngine(p *Pipe) *FakeEngine {
	return &FakeEngine{Pipe: p, LoadSteps: 3}
}

// Loaded reports whether the fake holds an engine for id.
func (f *FakeEngine) Loaded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[id]
}

// Forget drops a cached engine, simulating a page reload.
func (f *FakeEngine) Forget(id string) {
	f.mu.Lock()
	delete(f.engines, id)
	f.mu.Unlock()
}

// Run serves commands until ctx is done or the pipe closes.
func (f *FakeEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.Pipe.Done():
			return ErrClosed
		case cmd := <-f.Pipe.Commands():
			switch c := cmd.(type) {
			case LoadCommand:
				f.load(ctx, c.EngineID)
			case RunningCommand:
				f.mu.Lock()
				f.running = c.Running
				f.mu.Unlock()
			case CompleteCommand:
				f.mu.Lock()
				f.runGen++
				gen := f.runGen
				has := f.engines[f.current]
				f.running = true
				f.mu.Unlock()
				if !has {
					_ = f.Pipe.Emit(ctx, ChunkEvent{RunID: c.RunID, Chunk: Chunk{FinishReason: FinishError}})
					continue
				}
				go f.complete(ctx, gen, c)
			}
		}
	}
}

func (f *FakeEngine) load(ctx context.Context, id string) {
	f.mu.Lock()
	f.current = id
	cached := f.engines[id]
	f.mu.Unlock()
	if f.Silent[id] {
		return
	}
	if !cached {
		if msg, ok := f.FailLoad[id]; ok {
			_ = f.Pipe.Emit(ctx, ErrorEvent{EngineID: id, Message: msg})
			return
		}
		for i := 1; i <= f.LoadSteps; i++ {
			f.sleep(ctx)
			ev := ProgressEvent{
				EngineID: id,
				Progress: float64(i) / float64(f.LoadSteps+1),
				Text:     fmt.Sprintf("Fetching param cache[%d/%d]", i, f.LoadSteps),
			}
			if err := f.Pipe.Emit(ctx, ev); err != nil {
				return
			}
		}
		f.mu.Lock()
		if f.engines == nil {
			f.engines = make(map[string]bool)
		}
		f.engines[id] = true
		f.mu.Unlock()
	}
	_ = f.Pipe.Emit(ctx, LoadedEvent{EngineID: id})
}

func (f *FakeEngine) complete(ctx context.Context, gen uint64, c CompleteCommand) {
	reply := f.Reply
	if reply == nil {
		reply = echoReply
	}
	toks := reply(c.Messages)
	for i, tok := range toks {
		f.sleep(ctx)
		f.mu.Lock()
		live := f.running && f.runGen == gen
		f.mu.Unlock()
		if !live {
			return
		}
		ch := Chunk{Role: "assistant", Delta: tok}
		if i == len(toks)-1 {
			ch.FinishReason = FinishStop
		}
		if err := f.Pipe.Emit(ctx, ChunkEvent{RunID: c.RunID, Chunk: ch}); err != nil {
			return
		}
	}
	if len(toks) == 0 {
		_ = f.Pipe.Emit(ctx, ChunkEvent{RunID: c.RunID, Chunk: Chunk{Role: "assistant", FinishReason: FinishStop}})
	}
}

func (f *FakeEngine) sleep(ctx context.Context) {
	if f.StepDelay <= 0 {
		return
	}
	t := time.NewTimer(f.StepDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func echoReply(msgs []Message) []string {
	last := ""
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			last = msgs[i].Content
			break
		}
	}
	words := strings.Fields(last)
	out := make([]string, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		out[i] = w
	}
	return out
}
