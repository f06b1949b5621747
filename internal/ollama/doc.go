// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local inference server's
// Ollama-compatible API: model listing, streaming and non-streaming chat,
// and the single-shot generate endpoint used for vision requests.
package ollama
