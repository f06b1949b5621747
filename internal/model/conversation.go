// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages is the maximum number of messages kept in the conversation
// log. Older non-system messages are pruned beyond this to bound memory.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered message log for one chat session.
//
// It is a plain container: all mutation funnels through the engine, which
// owns the conversation, so there is no internal locking here.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message `json:"messages"`

	// SystemPrompt applies conversation-wide and is sent ahead of the
	// message history on every request.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the end of the log.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
	c.prune()
}

// Replace swaps in a new value for the message with the same ID.
// Returns false when no message with that ID exists.
func (c *Conversation) Replace(msg Message) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == msg.ID {
			c.Messages[i] = msg
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// Remove deletes the message with the given ID. Used to drop an orphaned
// assistant placeholder after a failed turn.
func (c *Conversation) Remove(id string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// Get returns the message with the given ID.
func (c *Conversation) Get(id string) (Message, bool) {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Clear removes all messages.
func (c *Conversation) Clear() {
	c.Messages = make([]Message, 0)
	c.UpdatedAt = time.Now()
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// =============================================================================
// VIEWS
// =============================================================================

// History returns a copy of the full message log, system messages included.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Visible returns the messages the presentation layer should render:
// everything except system messages.
func (c *Conversation) Visible() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if none is set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// SetTitle sets the conversation title.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.UpdatedAt = time.Now()
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// PRUNING
// =============================================================================

// prune drops the oldest non-system messages once the log exceeds
// MaxMessages. System messages are always kept.
func (c *Conversation) prune() {
	if len(c.Messages) <= MaxMessages {
		return
	}

	var system []Message
	var rest []Message
	for _, msg := range c.Messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	if len(rest) > MaxMessages {
		rest = rest[len(rest)-MaxMessages:]
	}

	c.Messages = make([]Message, 0, len(system)+len(rest))
	c.Messages = append(c.Messages, system...)
	c.Messages = append(c.Messages, rest...)
}
