// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "github.com/google/uuid"

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentKind tags an attachment with its processing route.
type AttachmentKind string

const (
	// AttachmentImage is routed to the vision model.
	AttachmentImage AttachmentKind = "image"

	// AttachmentPDF is routed through text-layer extraction with OCR
	// fallback.
	AttachmentPDF AttachmentKind = "pdf"

	// AttachmentText passes through as plain text.
	AttachmentText AttachmentKind = "text"
)

// Attachment is a user-supplied file attached to a message. Immutable once
// attached; removable only before the owning message is sent.
type Attachment struct {
	ID   string         `json:"id"`
	Kind AttachmentKind `json:"kind"`
	Name string         `json:"name"`
	MIME string         `json:"mime"`
	Data []byte         `json:"-"`
}

// NewAttachment creates an attachment with a generated ID.
func NewAttachment(kind AttachmentKind, name, mime string, data []byte) Attachment {
	return Attachment{
		ID:   "att_" + uuid.NewString(),
		Kind: kind,
		Name: name,
		MIME: mime,
		Data: data,
	}
}
