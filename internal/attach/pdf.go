// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// DefaultPageCap bounds how many pages of a document are processed per
// request. OCR in particular is slow; a large scan would stall the turn.
const DefaultPageCap = 5

// =============================================================================
// PAGE SOURCE ABSTRACTION
// =============================================================================

// pageSource is one opened document. Pages are 1-based.
type pageSource interface {
	PageCount() int
	PageText(n int) (string, error)
	PageImage(n int) (image.Image, error)
}

// ocrFunc recognizes text in a rendered page bitmap.
type ocrFunc func(img image.Image) (string, error)

// =============================================================================
// DOCUMENT EXTRACTION
// =============================================================================

// ExtractDocument extracts text from a PDF, page by page up to pageCap
// pages. A page with no usable text layer is rendered and run through OCR.
// Returns the labeled page text and any per-page processing notes; err is
// non-nil only when the document cannot be opened at all.
func ExtractDocument(name string, data []byte, pageCap int) (string, []string, error) {
	doc, err := openDocument(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer doc.Close()

	text, notes := buildDocumentText(doc, name, pageCap, recognizeText)
	return text, notes, nil
}

// buildDocumentText walks the pages of src and assembles the labeled
// extraction output. Split from ExtractDocument so the page-walking logic
// is testable without real PDF bytes.
func buildDocumentText(src pageSource, name string, pageCap int, ocr ocrFunc) (string, []string) {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}

	total := src.PageCount()
	limit := total
	if limit > pageCap {
		limit = pageCap
	}

	var out strings.Builder
	var notes []string

	for n := 1; n <= limit; n++ {
		text, err := src.PageText(n)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s page %d: text extraction failed: %v", name, n, err))
			continue
		}

		usedOCR := false
		if strings.TrimSpace(text) == "" {
			// No text layer on this page; render and OCR.
			img, err := src.PageImage(n)
			if err != nil {
				notes = append(notes, fmt.Sprintf("%s page %d: render failed: %v", name, n, err))
				continue
			}
			text, err = ocr(img)
			if err != nil {
				notes = append(notes, fmt.Sprintf("%s page %d: OCR failed: %v", name, n, err))
				continue
			}
			usedOCR = true
		}

		text = strings.TrimSpace(text)
		if text == "" {
			notes = append(notes, fmt.Sprintf("%s page %d: no readable text", name, n))
			continue
		}

		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		if usedOCR {
			fmt.Fprintf(&out, "Page %d (OCR):\n%s", n, text)
		} else {
			fmt.Fprintf(&out, "Page %d:\n%s", n, text)
		}
	}

	if total > limit {
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		fmt.Fprintf(&out, "[Document truncated: showing first %d of %d total pages]", limit, total)
	}

	return out.String(), notes
}

// =============================================================================
// PDF BACKENDS
// =============================================================================

// document combines the pure-Go text-layer reader with the MuPDF renderer.
// The text layer is tried first; the renderer only runs for OCR fallback.
type document struct {
	text     *pdf.Reader
	renderer *fitz.Document
}

func openDocument(data []byte) (*document, error) {
	renderer, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}

	// The text-layer reader is best-effort: some malformed PDFs render
	// fine but fail strict parsing. Those fall through to OCR.
	textReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		textReader = nil
	}

	return &document{text: textReader, renderer: renderer}, nil
}

func (d *document) Close() {
	d.renderer.Close()
}

func (d *document) PageCount() int {
	return d.renderer.NumPage()
}

func (d *document) PageText(n int) (string, error) {
	if d.text == nil || n > d.text.NumPage() {
		return "", nil
	}
	page := d.text.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		// Treat a broken text layer as absent so OCR can take over.
		return "", nil
	}
	return text, nil
}

func (d *document) PageImage(n int) (image.Image, error) {
	return d.renderer.Image(n - 1)
}
