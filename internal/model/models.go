// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// ModelDescriptor describes one locally available model as reported by the
// inference server's model-listing endpoint.
type ModelDescriptor struct {
	// Name is the full model name, possibly with a ":"-delimited variant
	// suffix (size or quantization), e.g. "llama3.2:3b-instruct-q4".
	Name string `json:"name"`

	// Size in bytes on disk. Zero when the server omitted it.
	Size int64 `json:"size,omitempty"`

	// ModifiedAt is the server's last-modified marker, if reported.
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// DisplayName strips everything from the first ":" onward, leaving the
// base model name for UI display.
func (m ModelDescriptor) DisplayName() string {
	if idx := strings.Index(m.Name, ":"); idx >= 0 {
		return m.Name[:idx]
	}
	return m.Name
}

// Variant returns the ":"-delimited tag suffix, or "" when there is none.
func (m ModelDescriptor) Variant() string {
	if idx := strings.Index(m.Name, ":"); idx >= 0 {
		return m.Name[idx+1:]
	}
	return ""
}

// FormatSize formats the model size in human-readable form.
func (m ModelDescriptor) FormatSize() string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case m.Size >= gb:
		return fmt.Sprintf("%.1f GB", float64(m.Size)/gb)
	case m.Size >= mb:
		return fmt.Sprintf("%.1f MB", float64(m.Size)/mb)
	case m.Size >= kb:
		return fmt.Sprintf("%.1f KB", float64(m.Size)/kb)
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}
