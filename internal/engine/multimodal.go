// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollamachat/internal/attach"
	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
	"github.com/jeranaias/ollamachat/internal/util"
)

// defaultVisionPrompt is used when the user attached images without asking
// anything in particular.
const defaultVisionPrompt = "Describe the contents of this image in detail."

// defaultDocumentPrompt is used when the user attached documents without a
// question.
const defaultDocumentPrompt = "Summarize the document."

// imageAnalysisHeading separates vision output from extracted document text
// in the combined response.
const imageAnalysisHeading = "--- Image Analysis ---"

// processingNotesHeading marks the per-attachment warnings section.
const processingNotesHeading = "--- Processing Notes ---"

// Respond runs one attachment turn: documents are extracted (text layer,
// OCR fallback), images go to the vision endpoint, and the combined result
// is committed to the conversation as a single assistant message.
//
// The returned extracted text is also stored as document context so
// follow-up text turns can reference the documents. Response sections come
// in a fixed order: document answer or extraction first, then image
// analysis, then processing notes.
func (e *Engine) Respond(ctx context.Context, prompt string, attachments []model.Attachment, temperature float64) (string, *model.StreamMetrics, string, error) {
	e.mu.Lock()
	if e.state == StateSending || e.state == StateStreaming {
		e.mu.Unlock()
		return "", nil, "", ErrBusy
	}
	e.state = StateSending
	e.lastErr = ""
	e.conv.Append(model.NewUserMessage(prompt, attachments))
	e.mu.Unlock()

	content, metrics, extracted, err := e.respond(ctx, prompt, attachments, temperature)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.state = StateFailed
		e.lastErr = err.Error()
		e.logger.Warn("attachment turn failed", zap.Error(err))
		return "", nil, "", err
	}

	msg := model.NewMessage(model.RoleAssistant, content).WithMetrics(metrics)
	e.conv.Append(msg)
	if extracted != "" {
		e.docContext = util.TruncateWithMarker(extracted, maxDocumentContext, documentContextMarker)
	}
	e.state = StateCompleted
	return content, metrics, extracted, nil
}

func (e *Engine) respond(ctx context.Context, prompt string, attachments []model.Attachment, temperature float64) (string, *model.StreamMetrics, string, error) {
	pdfs, images, texts := attach.Partition(attachments)

	var notes []string
	var docSections []string

	for _, att := range pdfs {
		text, docNotes, err := e.extractDoc(att.Name, att.Data, attach.DefaultPageCap)
		notes = append(notes, docNotes...)
		if err != nil {
			// An unopenable document becomes a note, not a failed turn.
			notes = append(notes, err.Error())
			continue
		}
		if text != "" {
			docSections = append(docSections, fmt.Sprintf("Document: %s\n%s", att.Name, text))
		}
	}
	for _, att := range texts {
		docSections = append(docSections, fmt.Sprintf("File: %s\n%s", att.Name, string(att.Data)))
	}

	extracted := strings.Join(docSections, "\n\n")

	var sections []string
	var metrics *model.StreamMetrics

	switch {
	case len(images) > 0:
		// Vision call against the selected model; extracted document text
		// rides along verbatim ahead of the analysis.
		reply, visionMetrics, err := e.describeImages(ctx, prompt, images, temperature)
		if err != nil {
			return "", nil, "", err
		}
		metrics = visionMetrics
		if extracted != "" {
			sections = append(sections, extracted, imageAnalysisHeading+"\n"+reply)
		} else {
			sections = append(sections, reply)
		}

	case extracted != "":
		// Document-only turn: answer the question from the extracted text
		// using the fallback document model.
		reply, docMetrics, err := e.answerFromDocuments(ctx, prompt, extracted, temperature)
		if err != nil {
			return "", nil, "", err
		}
		metrics = docMetrics
		sections = append(sections, reply)
	}

	if len(notes) > 0 {
		var b strings.Builder
		b.WriteString(processingNotesHeading)
		for _, note := range notes {
			b.WriteString("\n- ")
			b.WriteString(note)
		}
		sections = append(sections, b.String())
	}

	return strings.Join(sections, "\n\n"), metrics, extracted, nil
}

// describeImages sends all images in one non-streaming vision request.
// Token counters from /api/generate are unreliable across vision models,
// so throughput is estimated from word count over wall-clock time.
func (e *Engine) describeImages(ctx context.Context, prompt string, images []model.Attachment, temperature float64) (string, *model.StreamMetrics, error) {
	modelName := e.catalog.Selected()
	if modelName == "" {
		return "", nil, &TurnError{Kind: ErrKindInvalidConfiguration, Message: "no model selected"}
	}

	if strings.TrimSpace(prompt) == "" {
		prompt = defaultVisionPrompt
	}

	req := ollama.GenerateRequest{
		Model:  modelName,
		Prompt: prompt,
		Images: attach.EncodeImages(images),
	}
	if temperature > 0 {
		req.Options = &ollama.Options{Temperature: temperature}
	}

	start := time.Now()
	resp, err := e.client.Generate(ctx, req)
	if err != nil {
		return "", nil, mapClientError(err)
	}
	elapsed := time.Since(start).Seconds()

	words := util.WordCount(resp.Response)
	metrics := &model.StreamMetrics{
		TokenCount:   words,
		TotalSeconds: elapsed,
	}
	if elapsed > 0 {
		metrics.TokensPerSec = float64(words) / elapsed
	}

	return resp.Response, metrics, nil
}

// answerFromDocuments asks the document model about the extracted text via
// a non-streaming chat call.
func (e *Engine) answerFromDocuments(ctx context.Context, prompt, extracted string, temperature float64) (string, *model.StreamMetrics, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultDocumentPrompt
	}

	system := "You are answering questions about documents the user provided. " +
		"Answer using only the provided document content.\n\n" +
		util.TruncateWithMarker(extracted, maxDocumentContext, documentContextMarker)

	req := ollama.ChatRequest{
		Model: e.config.DocumentModel,
		Messages: []ollama.Message{
			ollama.NewSystemMessage(system),
			ollama.NewUserMessage(prompt),
		},
	}
	if temperature > 0 {
		req.Options = &ollama.Options{Temperature: temperature}
	}

	start := time.Now()
	resp, err := e.client.Chat(ctx, req)
	if err != nil {
		return "", nil, mapClientError(err)
	}

	metrics := model.ComputeMetrics(resp.EvalCount, resp.EvalDuration, start, time.Time{}, time.Now())
	return resp.Message.Content, metrics, nil
}
