// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation.
//
// Messages are immutable values: streaming updates produce a new Message
// carrying the same ID, which the conversation swaps in wholesale.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is the answer text (reasoning already split out).
	Content string `json:"content"`

	// Reasoning holds model deliberation text extracted from the raw
	// output. Nil means no reasoning was detected; a non-nil empty string
	// means a reasoning block was present but empty. Assistant-only.
	Reasoning *string `json:"reasoning,omitempty"`

	// Attachments carried by the message, in user-supplied order.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Metrics is attached once, when an assistant stream completes.
	Metrics *StreamMetrics `json:"metrics,omitempty"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message with optional attachments.
func NewUserMessage(content string, attachments []Attachment) Message {
	msg := NewMessage(RoleUser, content)
	msg.Attachments = attachments
	return msg
}

// NewAssistantPlaceholder creates the empty assistant message that is
// inserted at send time and filled in place as the stream advances.
func NewAssistantPlaceholder() Message {
	return NewMessage(RoleAssistant, "")
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// WithContent returns a copy of the message carrying new answer and
// reasoning text. The ID and timestamp are preserved so consumers keyed on
// identity see an in-place update.
func (m Message) WithContent(answer string, reasoning *string) Message {
	m.Content = answer
	m.Reasoning = reasoning
	return m
}

// WithMetrics returns a copy of the message with completion metrics attached.
func (m Message) WithMetrics(metrics *StreamMetrics) Message {
	m.Metrics = metrics
	return m
}

// HasReasoning reports whether reasoning text was extracted.
func (m Message) HasReasoning() bool {
	return m.Reasoning != nil
}

// IsEmpty reports whether the message carries no content.
func (m Message) IsEmpty() bool {
	return m.Content == "" && (m.Reasoning == nil || *m.Reasoning == "")
}

// Preview returns a truncated, rune-safe preview of the content.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// FormatStats renders the metrics line shown under assistant messages,
// e.g. "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms". Empty when no
// metrics are attached.
func (m Message) FormatStats() string {
	if m.Role != RoleAssistant || m.Metrics == nil {
		return ""
	}
	return m.Metrics.Format()
}

// =============================================================================
// STREAM METRICS
// =============================================================================

// StreamMetrics holds throughput and latency figures for one assistant
// turn. Token figures come from server-reported counters; timing figures
// come from locally measured wall-clock timestamps.
type StreamMetrics struct {
	// TokenCount is the number of generated tokens (server eval_count).
	TokenCount int `json:"token_count"`

	// TokensPerSec is TokenCount over the server-reported generation
	// duration. Zero when the server reported no duration.
	TokensPerSec float64 `json:"tokens_per_sec"`

	// TimeToFirstToken is seconds from request start to the first
	// non-empty content delta.
	TimeToFirstToken float64 `json:"time_to_first_token"`

	// TotalSeconds is wall-clock seconds for the whole turn.
	TotalSeconds float64 `json:"total_seconds"`
}

// ComputeMetrics derives StreamMetrics from server counters and local
// timestamps. evalDuration is in nanoseconds as reported by the server;
// a zero or negative duration yields zero tokens per second, never a
// division fault.
func ComputeMetrics(evalCount int, evalDuration int64, start, firstContent, end time.Time) *StreamMetrics {
	m := &StreamMetrics{
		TokenCount:   evalCount,
		TotalSeconds: end.Sub(start).Seconds(),
	}
	if !firstContent.IsZero() {
		m.TimeToFirstToken = firstContent.Sub(start).Seconds()
	}
	if evalDuration > 0 {
		m.TokensPerSec = float64(evalCount) / (float64(evalDuration) / 1e9)
	}
	return m
}

// Format renders the metrics as a single display line.
func (m *StreamMetrics) Format() string {
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s | TTFT %dms",
		formatSeconds(m.TotalSeconds),
		m.TokenCount,
		m.TokensPerSec,
		int64(m.TimeToFirstToken*1000))
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%dms", int64(s*1000))
	}
	return fmt.Sprintf("%.1fs", s)
}
