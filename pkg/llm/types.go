package llm

import "errors"

// ErrEmptyResponse is returned when a backend answers without any choice
// or candidate.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message represents a chat message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion request. Zero MaxTokens and nil Temperature
// fall back to the provider's Config; a Temperature of 0 is sent as is.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// TemperatureOr returns the request temperature, or def when unset.
func (r *Request) TemperatureOr(def float32) float32 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return def
}

// Prompt builds a single-turn request from a user prompt.
func Prompt(text string, maxTokens int, temperature float32) *Request {
	return &Request{
		Messages:    []Message{{Role: "user", Content: text}},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
}

// Response represents a complete response from an LLM provider.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
