// Package bridge carries commands from the host to the in-browser engine
// and events back. Commands and events are sealed interfaces; the wire
// form is a JSON object tagged by "type".
package bridge

import (
	"encoding/json"
	"fmt"
)

// Finish reasons with host-side meaning. Any other non-empty reason ends
// a stream normally.
const (
	FinishStop  = "stop"
	FinishError = "error"
)

// Message is one chat turn sent to the engine.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Command is sent host -> remote.
type Command interface{ isCommand() }

// LoadCommand asks the remote to create (or reuse) an engine for EngineID.
type LoadCommand struct{ EngineID string }

// CompleteCommand starts a streamed chat completion on the current engine.
type CompleteCommand struct {
	RunID       uint64
	Messages    []Message
	Temperature float64
}

// RunningCommand syncs the host's run flag. The remote stops producing
// chunks once it observes Running=false.
type RunningCommand struct{ Running bool }

func (LoadCommand) isCommand()     {}
func (CompleteCommand) isCommand() {}
func (RunningCommand) isCommand()  {}

// Event is sent remote -> host.
type Event interface{ isEvent() }

// ProgressEvent reports load progress. Progress semantics are defined by
// the engine; it never signals completion.
type ProgressEvent struct {
	EngineID string
	Progress float64
	Text     string
}

// LoadedEvent is the dedicated readiness marker for EngineID.
type LoadedEvent struct{ EngineID string }

// ErrorEvent reports a failed load.
type ErrorEvent struct {
	EngineID string
	Message  string
}

// Chunk is one streamed completion delta.
type Chunk struct {
	Role         string
	Delta        string
	FinishReason string
}

// ChunkEvent carries a chunk. RunID is zero when the remote did not echo it.
type ChunkEvent struct {
	RunID uint64
	Chunk Chunk
}

func (ProgressEvent) isEvent() {}
func (LoadedEvent) isEvent()   {}
func (ErrorEvent) isEvent()    {}
func (ChunkEvent) isEvent()    {}

// Wire type tags.
const (
	typeLoad       = "load"
	typeCompletion = "completion"
	typeRunning    = "running"
	typeProgress   = "progress"
	typeLoaded     = "loaded"
	typeLoadError  = "load_error"
	typeChunk      = "chunk"
)

type wireDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// envelope is the union of all wire fields.
type envelope struct {
	Type         string     `json:"type,omitempty"`
	ModelSlug    string     `json:"model_slug,omitempty"`
	RunID        uint64     `json:"run_id,omitempty"`
	Messages     []Message  `json:"messages,omitempty"`
	Temperature  *float64   `json:"temperature,omitempty"`
	Running      *bool      `json:"running,omitempty"`
	Progress     *float64   `json:"progress,omitempty"`
	Text         string     `json:"text,omitempty"`
	Delta        *wireDelta `json:"delta,omitempty"`
	FinishReason *string    `json:"finish_reason,omitempty"`
}

// EncodeCommand returns the wire form of cmd.
func EncodeCommand(cmd Command) ([]byte, error) {
	var env envelope
	switch c := cmd.(type) {
	case LoadCommand:
		env = envelope{Type: typeLoad, ModelSlug: c.EngineID}
	case CompleteCommand:
		t := c.Temperature
		msgs := c.Messages
		if msgs == nil {
			msgs = []Message{}
		}
		env = envelope{Type: typeCompletion, RunID: c.RunID, Messages: msgs, Temperature: &t}
	case RunningCommand:
		r := c.Running
		env = envelope{Type: typeRunning, Running: &r}
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
	return json.Marshal(env)
}

// DecodeCommand parses a host -> remote frame.
func DecodeCommand(b []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	switch env.Type {
	case typeLoad:
		return LoadCommand{EngineID: env.ModelSlug}, nil
	case typeCompletion:
		var t float64
		if env.Temperature != nil {
			t = *env.Temperature
		}
		return CompleteCommand{RunID: env.RunID, Messages: env.Messages, Temperature: t}, nil
	case typeRunning:
		return RunningCommand{Running: env.Running != nil && *env.Running}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", env.Type)
}

// EncodeEvent returns the wire form of ev.
func EncodeEvent(ev Event) ([]byte, error) {
	var env envelope
	switch e := ev.(type) {
	case ProgressEvent:
		p := e.Progress
		env = envelope{Type: typeProgress, ModelSlug: e.EngineID, Progress: &p, Text: e.Text}
	case LoadedEvent:
		env = envelope{Type: typeLoaded, ModelSlug: e.EngineID}
	case ErrorEvent:
		env = envelope{Type: typeLoadError, ModelSlug: e.EngineID, Text: e.Message}
	case ChunkEvent:
		env = envelope{Type: typeChunk, RunID: e.RunID}
		if e.Chunk.FinishReason != FinishError {
			d := e.Chunk.Delta
			env.Delta = &wireDelta{Role: e.Chunk.Role, Content: &d}
		}
		if e.Chunk.FinishReason != "" {
			fr := e.Chunk.FinishReason
			env.FinishReason = &fr
		}
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
	return json.Marshal(env)
}

// DecodeEvent parses a remote -> host frame. Untyped frames carrying a
// delta or finish_reason are raw engine choices and decode as chunks.
func DecodeEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch env.Type {
	case typeProgress:
		var p float64
		if env.Progress != nil {
			p = *env.Progress
		}
		return ProgressEvent{EngineID: env.ModelSlug, Progress: p, Text: env.Text}, nil
	case typeLoaded:
		return LoadedEvent{EngineID: env.ModelSlug}, nil
	case typeLoadError:
		return ErrorEvent{EngineID: env.ModelSlug, Message: env.Text}, nil
	case typeChunk:
		return chunkFromEnvelope(env), nil
	case "":
		if env.Delta != nil || env.FinishReason != nil {
			return chunkFromEnvelope(env), nil
		}
	}
	return nil, fmt.Errorf("unknown event type %q", env.Type)
}

func chunkFromEnvelope(env envelope) ChunkEvent {
	ch := Chunk{Role: "assistant"}
	if env.Delta != nil {
		if env.Delta.Role != "" {
			ch.Role = env.Delta.Role
		}
		if env.Delta.Content != nil {
			ch.Delta = *env.Delta.Content
		}
	}
	if env.FinishReason != nil {
		ch.FinishReason = *env.FinishReason
	}
	return ChunkEvent{RunID: env.RunID, Chunk: ch}
}
