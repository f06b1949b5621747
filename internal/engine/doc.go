// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine drives conversation turns against the inference server.
//
// The engine owns the conversation log. Text turns stream over NDJSON and
// fill an assistant placeholder in place as deltas arrive; attachment turns
// run through the multi-modal orchestrator (PDF extraction, OCR, vision).
// One turn runs at a time.
package engine
