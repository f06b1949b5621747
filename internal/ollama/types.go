// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the wire format.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options contains generation parameters. Fields are emitted only when the
// user set them; unset fields fall back to server defaults.
type Options struct {
	// Sampling parameters
	Temperature      float64 `json:"temperature,omitempty"`       // 0.0-2.0
	TopK             int     `json:"top_k,omitempty"`             // default 40
	TopP             float64 `json:"top_p,omitempty"`             // 0.0-1.0
	RepeatPenalty    float64 `json:"repeat_penalty,omitempty"`    // default 1.1
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`  // default 0.0
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"` // default 0.0

	// Context parameters
	NumCtx     int `json:"num_ctx,omitempty"`     // context window size
	NumPredict int `json:"num_predict,omitempty"` // max tokens, -1 unlimited

	// Stopping
	Stop []string `json:"stop,omitempty"`

	// Seed for reproducibility
	Seed int `json:"seed,omitempty"`
}

// GenerateRequest is the request body for the /api/generate endpoint.
// Images carry base64-encoded payloads for vision models.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Images  []string `json:"images,omitempty"`
	Stream  bool     `json:"stream"`
	System  string   `json:"system,omitempty"`
	Options *Options `json:"options,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is the response from /api/chat (non-streaming, and the
// shape of each streamed line).
type ChatResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Message            Message   `json:"message"`
	Done               bool      `json:"done"`
	TotalDuration      int64     `json:"total_duration,omitempty"`       // nanoseconds
	LoadDuration       int64     `json:"load_duration,omitempty"`        // nanoseconds
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`    // tokens in prompt
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"` // nanoseconds
	EvalCount          int       `json:"eval_count,omitempty"`           // tokens generated
	EvalDuration       int64     `json:"eval_duration,omitempty"`        // nanoseconds
}

// GenerateResponse is the response from /api/generate.
type GenerateResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	TotalDuration      int64     `json:"total_duration,omitempty"`
	EvalCount          int       `json:"eval_count,omitempty"`
	EvalDuration       int64     `json:"eval_duration,omitempty"`
}

// ModelInfo is one entry from the /api/tags listing.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// ListModelsResponse is the response from /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// apiError is the error envelope the server returns on failures.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is a single parsed line from a streaming chat response.
type StreamChunk struct {
	// Content delta carried by this line.
	Content string

	// Done marks the terminal line. The counters below are only
	// populated on that line.
	Done          bool
	TotalDuration int64 // nanoseconds, server-reported
	EvalCount     int
	EvalDuration  int64 // nanoseconds, server-reported

	Model string
}

// StreamCallback is invoked for each parsed chunk, in arrival order.
type StreamCallback func(chunk StreamChunk)

// =============================================================================
// HELPER CONSTRUCTORS
// =============================================================================

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}
