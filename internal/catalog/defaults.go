package catalog

// defaultIDs are web-llm prebuilt model ids known to load in current
// browsers. `webllmd catalog refresh` replaces them with the live list.
var defaultIDs = []string{
	"Llama-3.2-1B-Instruct-q4f16_1-MLC",
	"Llama-3.2-1B-Instruct-q4f32_1-MLC",
	"Llama-3.2-1B-Instruct-q0f16-MLC",
	"Llama-3.2-3B-Instruct-q4f16_1-MLC",
	"Llama-3.2-3B-Instruct-q4f32_1-MLC",
	"Llama-3.1-8B-Instruct-q4f16_1-MLC",
	"Llama-3.1-8B-Instruct-q4f32_1-MLC",
	"Llama-3.1-70B-Instruct-q3f16_1-MLC",
	"Hermes-3-Llama-3.1-8B-q4f16_1-MLC",
	"Qwen2.5-0.5B-Instruct-q4f16_1-MLC",
	"Qwen2.5-0.5B-Instruct-q0f16-MLC",
	"Qwen2.5-1.5B-Instruct-q4f16_1-MLC",
	"Qwen2.5-7B-Instruct-q4f16_1-MLC",
	"Qwen2.5-Coder-0.5B-Instruct-q0f16-MLC",
	"Qwen2.5-Coder-1.5B-Instruct-q4f16_1-MLC",
	"Qwen2.5-Coder-7B-Instruct-q4f16_1-MLC",
	"Qwen2.5-Math-1.5B-Instruct-q4f16_1-MLC",
	"Phi-3.5-mini-instruct-q4f16_1-MLC",
	"Phi-3.5-mini-instruct-q4f32_1-MLC",
	"gemma-2-2b-it-q4f16_1-MLC",
	"gemma-2-9b-it-q4f16_1-MLC",
	"Mistral-7B-Instruct-v0.3-q4f16_1-MLC",
	"SmolLM2-1.7B-Instruct-q4f16_1-MLC",
	"SmolLM2-360M-Instruct-q0f16-MLC",
	"TinyLlama-1.1B-Chat-v1.0-q4f16_1-MLC",
	"DeepSeek-R1-Distill-Qwen-7B-q4f16_1-MLC",
	"DeepSeek-R1-Distill-Llama-8B-q4f16_1-MLC",
	"RedPajama-INCITE-Chat-3B-v1-q4f16_1-MLC",
}

// Default returns a fresh copy of the built-in catalog.
func Default() Catalog {
	c := make(Catalog)
	for _, id := range defaultIDs {
		c.Add(id)
	}
	return c
}
