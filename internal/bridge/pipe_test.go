package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestPipeOrderAndClose(t *testing.T) {
	p := NewPipe(4)
	ctx := testCtx(t)
	if err := p.Send(ctx, LoadCommand{EngineID: "a"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := <-p.Commands(); got != (LoadCommand{EngineID: "a"}) {
		t.Fatalf("got %#v", got)
	}
	for i := 0; i < 3; i++ {
		if err := p.Emit(ctx, ProgressEvent{EngineID: "a", Progress: float64(i)}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		ev := nextEvent(t, p.Events()).(ProgressEvent)
		if ev.Progress != float64(i) {
			t.Fatalf("out of order: %v at %d", ev.Progress, i)
		}
	}
	p.Close()
	if err := p.Send(ctx, RunningCommand{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
	if err := p.Emit(ctx, LoadedEvent{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("emit after close: %v", err)
	}
}

func TestPipeSendHonorsContext(t *testing.T) {
	p := NewPipe(1)
	_ = p.Send(context.Background(), RunningCommand{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Send(ctx, RunningCommand{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFakeEngineLoadAndComplete(t *testing.T) {
	p := NewPipe(0)
	f := NewFakeEngine(p)
	f.LoadSteps = 2
	ctx := testCtx(t)
	go func() { _ = f.Run(ctx) }()

	_ = p.Send(ctx, LoadCommand{EngineID: "m"})
	for i := 0; i < 2; i++ {
		if _, ok := nextEvent(t, p.Events()).(ProgressEvent); !ok {
			t.Fatalf("expected progress event %d", i)
		}
	}
	if ev := nextEvent(t, p.Events()); ev != (LoadedEvent{EngineID: "m"}) {
		t.Fatalf("expected loaded, got %#v", ev)
	}
	// cached engine: loaded marker only
	_ = p.Send(ctx, LoadCommand{EngineID: "m"})
	if ev := nextEvent(t, p.Events()); ev != (LoadedEvent{EngineID: "m"}) {
		t.Fatalf("expected immediate loaded, got %#v", ev)
	}

	_ = p.Send(ctx, RunningCommand{Running: true})
	_ = p.Send(ctx, CompleteCommand{RunID: 9, Messages: []Message{{Role: "user", Content: "Hello world"}}})
	first := nextEvent(t, p.Events()).(ChunkEvent)
	second := nextEvent(t, p.Events()).(ChunkEvent)
	if first.RunID != 9 || first.Chunk.Delta != "Hello" || first.Chunk.FinishReason != "" {
		t.Fatalf("first=%#v", first)
	}
	if second.Chunk.Delta != " world" || second.Chunk.FinishReason != FinishStop {
		t.Fatalf("second=%#v", second)
	}
}

func TestFakeEngineErrorsWithoutEngine(t *testing.T) {
	p := NewPipe(0)
	f := NewFakeEngine(p)
	f.FailLoad = map[string]string{"bad": "no WebGPU"}
	ctx := testCtx(t)
	go func() { _ = f.Run(ctx) }()

	_ = p.Send(ctx, LoadCommand{EngineID: "bad"})
	if ev := nextEvent(t, p.Events()); ev != (ErrorEvent{EngineID: "bad", Message: "no WebGPU"}) {
		t.Fatalf("got %#v", ev)
	}
	_ = p.Send(ctx, CompleteCommand{RunID: 1})
	ev := nextEvent(t, p.Events()).(ChunkEvent)
	if ev.Chunk.FinishReason != FinishError {
		t.Fatalf("expected failure marker, got %#v", ev)
	}
}
