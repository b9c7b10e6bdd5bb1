package types

// Model is one loadable engine variant from the catalog.
type Model struct {
	// Engine identifier passed verbatim to the in-browser engine.
	// example: Llama-3.2-1B-Instruct-q4f16_1-MLC
	ID string `json:"id" example:"Llama-3.2-1B-Instruct-q4f16_1-MLC"`
	// Model family parsed from the id.
	// example: Llama-3.2
	Family string `json:"family" example:"Llama-3.2"`
	// Parameter size token, or "-" when the id carries none.
	// example: 1B
	Size string `json:"size" example:"1B"`
	// Quantization segment of the id.
	// example: q4f16_1
	Quantization string `json:"quantization" example:"q4f16_1"`
}

// Message is one chat turn.
type Message struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}
