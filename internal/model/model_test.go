// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	att := NewAttachment(AttachmentImage, "photo.png", "image/png", []byte{1, 2, 3})
	msg := NewUserMessage("Hello", []Attachment{att})

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want user", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments length = %d, want 1", len(msg.Attachments))
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", msg.ID)
	}
	if !strings.HasPrefix(msg.Attachments[0].ID, "att_") {
		t.Errorf("attachment ID = %q, want att_ prefix", msg.Attachments[0].ID)
	}
}

func TestMessage_WithContent_PreservesIdentity(t *testing.T) {
	placeholder := NewAssistantPlaceholder()
	reasoning := "working it out"

	updated := placeholder.WithContent("partial answer", &reasoning)

	if updated.ID != placeholder.ID {
		t.Errorf("ID changed: %q -> %q", placeholder.ID, updated.ID)
	}
	if updated.Timestamp != placeholder.Timestamp {
		t.Error("Timestamp changed on content update")
	}
	if updated.Content != "partial answer" {
		t.Errorf("Content = %q", updated.Content)
	}
	if !updated.HasReasoning() || *updated.Reasoning != "working it out" {
		t.Errorf("Reasoning = %v", updated.Reasoning)
	}

	// The original value is untouched.
	if placeholder.Content != "" || placeholder.Reasoning != nil {
		t.Error("original placeholder was mutated")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short", "hi", 10, "hi"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"unicode", "héllo wörld", 8, "héllo..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewMessage(RoleUser, tc.content)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

// =============================================================================
// METRICS TESTS
// =============================================================================

func TestComputeMetrics(t *testing.T) {
	start := time.Now()
	first := start.Add(200 * time.Millisecond)
	end := start.Add(2 * time.Second)

	m := ComputeMetrics(100, int64(time.Second), start, first, end)

	if m.TokenCount != 100 {
		t.Errorf("TokenCount = %d, want 100", m.TokenCount)
	}
	if m.TokensPerSec < 99 || m.TokensPerSec > 101 {
		t.Errorf("TokensPerSec = %f, want ~100", m.TokensPerSec)
	}
	if m.TimeToFirstToken < 0.19 || m.TimeToFirstToken > 0.21 {
		t.Errorf("TimeToFirstToken = %f, want ~0.2", m.TimeToFirstToken)
	}
	if m.TotalSeconds < 1.99 || m.TotalSeconds > 2.01 {
		t.Errorf("TotalSeconds = %f, want ~2", m.TotalSeconds)
	}
}

func TestComputeMetrics_ZeroDuration(t *testing.T) {
	// A missing or zero server duration must yield 0 tok/s, never a
	// division fault or Inf.
	for _, dur := range []int64{0, -1} {
		m := ComputeMetrics(100, dur, time.Now(), time.Time{}, time.Now())
		if m.TokensPerSec != 0 {
			t.Errorf("TokensPerSec = %f with duration %d, want 0", m.TokensPerSec, dur)
		}
		if m.TimeToFirstToken != 0 {
			t.Errorf("TimeToFirstToken = %f with zero first-content time, want 0", m.TimeToFirstToken)
		}
	}
}

func TestStreamMetrics_Format(t *testing.T) {
	m := &StreamMetrics{
		TokenCount:       128,
		TokensPerSec:     51.2,
		TimeToFirstToken: 0.234,
		TotalSeconds:     2.5,
	}

	got := m.Format()
	want := "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

// =============================================================================
// MODEL DESCRIPTOR TESTS
// =============================================================================

func TestModelDescriptor_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		display string
		variant string
	}{
		{"llama3.2:3b-instruct-q4", "llama3.2", "3b-instruct-q4"},
		{"mistral", "mistral", ""},
		{"qwen2.5:7b", "qwen2.5", "7b"},
	}

	for _, tc := range tests {
		m := ModelDescriptor{Name: tc.name}
		if got := m.DisplayName(); got != tc.display {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.name, got, tc.display)
		}
		if got := m.Variant(); got != tc.variant {
			t.Errorf("Variant(%q) = %q, want %q", tc.name, got, tc.variant)
		}
	}
}

func TestModelDescriptor_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{500, "500 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{4404019200, "4.1 GB"},
	}

	for _, tc := range tests {
		m := ModelDescriptor{Size: tc.size}
		if got := m.FormatSize(); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_PlaceholderFill(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("question", nil))
	placeholder := NewAssistantPlaceholder()
	conv.Append(placeholder)

	if conv.Len() != 2 {
		t.Fatalf("Len = %d, want 2", conv.Len())
	}

	if !conv.Replace(placeholder.WithContent("answer", nil)) {
		t.Fatal("Replace returned false")
	}

	got, ok := conv.Get(placeholder.ID)
	if !ok {
		t.Fatal("placeholder not found after replace")
	}
	if got.Content != "answer" {
		t.Errorf("Content = %q, want 'answer'", got.Content)
	}
}

func TestConversation_Remove(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("question", nil))
	placeholder := NewAssistantPlaceholder()
	conv.Append(placeholder)

	if !conv.Remove(placeholder.ID) {
		t.Fatal("Remove returned false")
	}
	if conv.Len() != 1 {
		t.Errorf("Len = %d after remove, want 1", conv.Len())
	}
	if conv.Remove("msg_missing") {
		t.Error("Remove of missing ID returned true")
	}
}

func TestConversation_VisibleExcludesSystem(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewSystemMessage("grounding context"))
	conv.Append(NewUserMessage("hi", nil))

	if got := len(conv.Visible()); got != 1 {
		t.Errorf("Visible length = %d, want 1", got)
	}
	if got := len(conv.History()); got != 2 {
		t.Errorf("History length = %d, want 2", got)
	}
}

func TestConversation_TitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation()
	if conv.GetTitle() != "New Conversation" {
		t.Errorf("default title = %q", conv.GetTitle())
	}

	conv.Append(NewUserMessage("Explain the borrow checker", nil))
	if conv.GetTitle() != "Explain the borrow checker" {
		t.Errorf("title = %q", conv.GetTitle())
	}
}

func TestConversation_PruneKeepsSystem(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewSystemMessage("system prompt"))
	for i := 0; i < MaxMessages+10; i++ {
		conv.Append(NewMessage(RoleUser, "x"))
	}

	if conv.Len() != MaxMessages+1 {
		t.Errorf("Len = %d, want %d", conv.Len(), MaxMessages+1)
	}
	if conv.Messages[0].Role != RoleSystem {
		t.Error("system message not preserved at front")
	}
}
