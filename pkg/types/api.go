package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Catalog entries sorted by id.
	Models []Model `json:"models"`
}

// SizeOption lists the quantizations available for one model size.
type SizeOption struct {
	// example: 1B
	Size string `json:"size" example:"1B"`
	// example: ["q4f16_1","q4f32_1"]
	Quantizations []string `json:"quantizations"`
}

// FamilyOption lists the sizes available for one model family.
type FamilyOption struct {
	// example: Llama-3.2
	Family string       `json:"family" example:"Llama-3.2"`
	Sizes  []SizeOption `json:"sizes"`
}

// OptionsResponse is returned by GET /models/options and drives the
// three-level model selector (family, size, quantization).
type OptionsResponse struct {
	Levels  []string       `json:"levels"`
	Options []FamilyOption `json:"options"`
}

// SelectRequest selects an engine either by id or by its three coordinates.
// The id wins when both are present.
type SelectRequest struct {
	// example: Llama-3.2-1B-Instruct-q4f16_1-MLC
	ModelSlug    string `json:"model_slug,omitempty" example:"Llama-3.2-1B-Instruct-q4f16_1-MLC"`
	Family       string `json:"family,omitempty"`
	Size         string `json:"size,omitempty"`
	Quantization string `json:"quantization,omitempty"`
}

// LoadRequest asks the browser engine to load the selected model.
type LoadRequest struct {
	// Block until the load finishes or fails.
	// example: true
	Wait bool `json:"wait,omitempty" example:"true"`
}

// ChatCompletionRequest is the OpenAI-shaped request accepted by
// POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Optional engine id. When set and different from the current selection
	// the request is rejected; selection changes go through /select.
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	// Sampling temperature in [0,2]. Nil uses the server default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Stream as server-sent events.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// ChunkDelta carries the incremental content of a streamed choice.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one streamed choice.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatCompletionChunk is one SSE data payload of a streamed completion.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// CompletionChoice is one non-streamed choice.
type CompletionChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletionResponse is returned for non-streamed completions.
type ChatCompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not loaded
	Error string `json:"error" example:"model not loaded"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Currently selected engine id.
	// example: Llama-3.2-1B-Instruct-q4f16_1-MLC
	ModelSlug string `json:"model_slug" example:"Llama-3.2-1B-Instruct-q4f16_1-MLC"`
	// Load phase: not_loaded, loading, loaded or load_error.
	// example: loading
	LoadState string `json:"load_state" example:"loading"`
	// Load progress reported by the engine, in [0,1].
	// example: 0.42
	Progress float64 `json:"progress" example:"0.42"`
	// Load progress text reported by the engine.
	// example: Fetching param cache[3/22]
	Text string `json:"text,omitempty" example:"Fetching param cache[3/22]"`
	// Last load error, kept for display until the next load.
	LoadError string `json:"load_error,omitempty"`
	// Run state of the completion controller: idle or running.
	// example: idle
	RunState string `json:"run_state" example:"idle"`
	// Whether an engine host page is attached to the bridge.
	// example: true
	BridgeConnected bool `json:"bridge_connected" example:"true"`
	// Number of models in the current catalog.
	// example: 42
	CatalogSize int `json:"catalog_size" example:"42"`
	// Total load commands issued.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Total completion runs started.
	// example: 12
	CompletionsTotal uint64 `json:"completions_total" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// RefreshResponse is returned by POST /models/refresh.
type RefreshResponse struct {
	// Number of models in the new catalog.
	// example: 128
	Models int `json:"models" example:"128"`
}
