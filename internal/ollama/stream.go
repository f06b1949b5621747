// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
// Each line is an independent JSON object carrying a content delta and a
// done flag. A malformed line is logged and skipped; it never aborts the
// stream.
type StreamReader struct {
	reader *bufio.Reader
	logger *zap.Logger
	model  string
}

// NewStreamReader creates a stream reader over the response body.
func NewStreamReader(r io.Reader, logger *zap.Logger) *StreamReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamReader{
		reader: bufio.NewReader(r),
		logger: logger,
	}
}

// Process reads the stream and calls the callback for each parsed chunk,
// in arrival order. Blocks until the stream completes, errors, or the
// context is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			chunk, err := s.readChunk()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				// A transport error mid-stream can race with
				// cancellation; prefer the context's verdict.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}

			if chunk != nil {
				callback(*chunk)
				if chunk.Done {
					return nil
				}
			}
		}
	}
}

// readChunk reads and parses a single line. Returns (nil, nil) for lines
// that should be skipped.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, err
		}
		// Process a final unterminated line before surfacing EOF on
		// the next read.
	}

	if isBlank(line) {
		return nil, nil
	}

	var response ChatResponse
	if err := json.Unmarshal(line, &response); err != nil {
		s.logger.Warn("skipping malformed stream line",
			zap.Int("length", len(line)),
			zap.Error(err))
		return nil, nil
	}

	if response.Model != "" {
		s.model = response.Model
	}

	chunk := &StreamChunk{
		Content: response.Message.Content,
		Done:    response.Done,
		Model:   s.model,
	}

	if response.Done {
		chunk.TotalDuration = response.TotalDuration
		chunk.EvalCount = response.EvalCount
		chunk.EvalDuration = response.EvalDuration
	}

	return chunk, nil
}

// Model returns the model name observed on the stream.
func (s *StreamReader) Model() string {
	return s.model
}

func isBlank(line []byte) bool {
	for _, b := range line {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
