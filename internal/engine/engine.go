// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollamachat/internal/attach"
	"github.com/jeranaias/ollamachat/internal/catalog"
	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
	"github.com/jeranaias/ollamachat/internal/reasoning"
	"github.com/jeranaias/ollamachat/internal/util"
)

// =============================================================================
// TURN STATE
// =============================================================================

// TurnState is the lifecycle state of the current (or most recent) turn.
type TurnState int

const (
	StateIdle TurnState = iota
	StateSending
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns the state name for logs.
func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes turn failures for presentation.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindInvalidConfiguration
	ErrKindConnectivity
	ErrKindServerError
	ErrKindNoModels
)

// TurnError is a failed turn's outcome.
type TurnError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *TurnError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// ErrBusy is returned by Send while a turn is already in flight.
var ErrBusy = errors.New("a response is already in progress")

// IsInvalidConfiguration reports whether the error is a precondition
// failure (typically: no model selected).
func IsInvalidConfiguration(err error) bool {
	var turnErr *TurnError
	return errors.As(err, &turnErr) && turnErr.Kind == ErrKindInvalidConfiguration
}

// mapClientError converts a wire-layer error into a TurnError.
func mapClientError(err error) *TurnError {
	var clientErr *ollama.ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ollama.ErrTypeNotRunning, ollama.ErrTypeTimeout:
			return &TurnError{Kind: ErrKindConnectivity, Message: clientErr.Message, Cause: clientErr.Cause}
		case ollama.ErrTypeServerError:
			return &TurnError{Kind: ErrKindServerError, Message: clientErr.Message, StatusCode: clientErr.StatusCode, Cause: clientErr.Cause}
		}
	}
	return &TurnError{Kind: ErrKindUnknown, Message: "request failed", Cause: err}
}

// =============================================================================
// ENGINE
// =============================================================================

// maxDocumentContext bounds the stored document context folded into
// requests; beyond it the text is cut and marked.
const maxDocumentContext = 8000

// documentContextMarker is appended when stored context is truncated.
const documentContextMarker = "\n\n[... document context truncated]"

// Config holds engine-level settings.
type Config struct {
	// SystemPrompt is sent ahead of the history on every request.
	SystemPrompt string

	// DocumentModel is the text model used for answering questions about
	// extracted documents when no images are involved.
	DocumentModel string

	// Options are generation parameters forwarded on chat requests.
	Options *ollama.Options
}

// Engine runs conversation turns. Safe for concurrent observation; Send
// itself is single-flight.
type Engine struct {
	client  *ollama.Client
	catalog *catalog.Catalog
	config  Config
	logger  *zap.Logger

	// extractDoc is swappable so orchestrator tests run without PDF bytes.
	extractDoc func(name string, data []byte, pageCap int) (string, []string, error)

	// OnUpdate, when set, is invoked after every applied stream delta with
	// the current answer and reasoning text. Called on the streaming
	// goroutine; keep it fast.
	OnUpdate func(answer, reasoning string)

	mu            sync.Mutex
	conv          *model.Conversation
	state         TurnState
	cancel        context.CancelFunc
	liveAnswer    string
	liveReasoning string
	lastErr       string
	docContext    string
}

// New creates an engine. A nil logger selects a no-op logger.
func New(client *ollama.Client, cat *catalog.Catalog, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DocumentModel == "" {
		config.DocumentModel = "llama3.2"
	}

	conv := model.NewConversation()
	conv.SystemPrompt = config.SystemPrompt

	return &Engine{
		client:     client,
		catalog:    cat,
		config:     config,
		logger:     logger,
		extractDoc: attach.ExtractDocument,
		conv:       conv,
		state:      StateIdle,
	}
}

// =============================================================================
// OBSERVABLE SURFACE
// =============================================================================

// State returns the current turn state.
func (e *Engine) State() TurnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsStreaming reports whether a turn is currently in flight.
func (e *Engine) IsStreaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateSending || e.state == StateStreaming
}

// LiveAnswer returns the answer text accumulated so far this turn.
func (e *Engine) LiveAnswer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveAnswer
}

// LiveReasoning returns the reasoning text accumulated so far this turn.
func (e *Engine) LiveReasoning() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveReasoning
}

// LastError returns the most recent turn failure, or "".
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// ClearError clears the last-error slot.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = ""
}

// Messages returns a snapshot of the renderable conversation (system
// messages excluded).
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Visible()
}

// Title returns the conversation title.
func (e *Engine) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.GetTitle()
}

// SetDocumentContext stores extracted document text to fold into
// subsequent requests, truncated to the context cap.
func (e *Engine) SetDocumentContext(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docContext = util.TruncateWithMarker(text, maxDocumentContext, documentContextMarker)
}

// DocumentContext returns the stored document context.
func (e *Engine) DocumentContext() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docContext
}

// Reset clears the conversation and the stored document context.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conv.Clear()
	e.conv.Title = ""
	e.docContext = ""
	e.liveAnswer = ""
	e.liveReasoning = ""
	e.lastErr = ""
	e.state = StateIdle
}

// =============================================================================
// SEND
// =============================================================================

// Send runs one streaming text turn: appends the user message and an empty
// assistant placeholder, streams the response, and fills the placeholder in
// place as deltas arrive. Blocks until the turn reaches a terminal state;
// Cancel may be called concurrently.
//
// A cancelled turn returns nil and keeps whatever text was committed. A
// failed turn removes the placeholder and returns a *TurnError.
func (e *Engine) Send(ctx context.Context, prompt string) error {
	e.mu.Lock()
	if e.state == StateSending || e.state == StateStreaming {
		e.mu.Unlock()
		return ErrBusy
	}

	modelName := e.catalog.Selected()
	if modelName == "" {
		e.mu.Unlock()
		// Precondition failure: nothing is appended to the conversation.
		return &TurnError{Kind: ErrKindInvalidConfiguration, Message: "no model selected"}
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StateSending
	e.liveAnswer = ""
	e.liveReasoning = ""
	e.lastErr = ""

	e.conv.Append(model.NewUserMessage(prompt, nil))
	placeholder := model.NewAssistantPlaceholder()
	e.conv.Append(placeholder)

	req := ollama.ChatRequest{
		Model:    modelName,
		Messages: e.buildWireMessagesLocked(placeholder.ID),
		Options:  e.config.Options,
	}
	e.mu.Unlock()
	defer cancel()

	start := time.Now()
	var firstContent time.Time
	var raw string
	var evalCount int
	var evalDuration int64

	streamErr := e.client.ChatStream(ctx, req, func(chunk ollama.StreamChunk) {
		if chunk.Done {
			evalCount = chunk.EvalCount
			evalDuration = chunk.EvalDuration
			return
		}
		if chunk.Content == "" {
			return
		}
		if firstContent.IsZero() {
			firstContent = time.Now()
		}
		raw += chunk.Content

		result := reasoning.Extract(raw)
		e.applyDelta(placeholder, result)
	})

	end := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) {
			// User cancellation: committed text stays in place.
			e.state = StateCancelled
			e.logger.Info("turn cancelled", zap.Int("committed_chars", len(raw)))
			return nil
		}

		e.conv.Remove(placeholder.ID)
		e.state = StateFailed
		turnErr := mapClientError(streamErr)
		e.lastErr = turnErr.Error()
		e.logger.Warn("turn failed", zap.Error(streamErr))
		return turnErr
	}

	result := reasoning.Extract(raw)
	metrics := model.ComputeMetrics(evalCount, evalDuration, start, firstContent, end)

	final, _ := e.conv.Get(placeholder.ID)
	final = final.WithContent(result.Answer, result.Reasoning).WithMetrics(metrics)
	e.conv.Replace(final)

	e.state = StateCompleted
	e.logger.Info("turn completed",
		zap.String("model", modelName),
		zap.Int("tokens", metrics.TokenCount),
		zap.Float64("tok_per_sec", metrics.TokensPerSec))
	return nil
}

// Cancel aborts the in-flight turn. No-op when nothing is streaming.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	active := e.state == StateSending || e.state == StateStreaming
	e.mu.Unlock()

	if active && cancel != nil {
		cancel()
	}
}

// applyDelta publishes live text and swaps the updated placeholder into the
// conversation.
func (e *Engine) applyDelta(placeholder model.Message, result reasoning.Result) {
	e.mu.Lock()
	e.state = StateStreaming
	e.liveAnswer = result.Answer
	if result.Reasoning != nil {
		e.liveReasoning = *result.Reasoning
	}
	e.conv.Replace(placeholder.WithContent(result.Answer, result.Reasoning))
	onUpdate := e.OnUpdate
	answer := e.liveAnswer
	reasoningText := e.liveReasoning
	e.mu.Unlock()

	if onUpdate != nil {
		onUpdate(answer, reasoningText)
	}
}

// buildWireMessagesLocked assembles the request messages: system prompt
// first, then the capped document context as a synthetic system message,
// then the history. The empty placeholder is excluded. Caller holds e.mu.
func (e *Engine) buildWireMessagesLocked(placeholderID string) []ollama.Message {
	out := make([]ollama.Message, 0, e.conv.Len()+2)

	if e.conv.SystemPrompt != "" {
		out = append(out, ollama.NewSystemMessage(e.conv.SystemPrompt))
	}
	if e.docContext != "" {
		out = append(out, ollama.NewSystemMessage(
			"The user has provided the following document content. Use it when answering.\n\n"+e.docContext))
	}

	for _, msg := range e.conv.Messages {
		if msg.ID == placeholderID {
			continue
		}
		out = append(out, ollama.Message{Role: msg.Role.String(), Content: msg.Content})
	}
	return out
}
