// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach classifies user-supplied attachments and turns their
// bytes into model-ready inputs: extracted text for documents, base64
// payloads for images, pass-through for plain text.
package attach

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/jeranaias/ollamachat/internal/model"
)

// imageExts are the raster formats routed to the vision model.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// Classify determines the processing route for a file name. Unrecognized
// extensions default to the text route.
func Classify(name string) model.AttachmentKind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExts[ext]:
		return model.AttachmentImage
	case ext == ".pdf":
		return model.AttachmentPDF
	default:
		return model.AttachmentText
	}
}

// MIMEForName resolves a MIME type from the file extension, falling back
// to application/octet-stream.
func MIMEForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// Strip any charset parameter.
		if idx := strings.Index(mimeType, ";"); idx > 0 {
			mimeType = mimeType[:idx]
		}
		return mimeType
	}
	return "application/octet-stream"
}

// New builds an attachment from raw bytes, classifying it by file name.
func New(name string, data []byte) model.Attachment {
	return model.NewAttachment(Classify(name), name, MIMEForName(name), data)
}

// Partition splits attachments into PDFs, images, and the rest, preserving
// the original order within each group.
func Partition(attachments []model.Attachment) (pdfs, images, texts []model.Attachment) {
	for _, att := range attachments {
		switch att.Kind {
		case model.AttachmentPDF:
			pdfs = append(pdfs, att)
		case model.AttachmentImage:
			images = append(images, att)
		default:
			texts = append(texts, att)
		}
	}
	return pdfs, images, texts
}
