// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/jeranaias/ollamachat/internal/model"
)

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want model.AttachmentKind
	}{
		{"photo.png", model.AttachmentImage},
		{"photo.JPG", model.AttachmentImage},
		{"scan.jpeg", model.AttachmentImage},
		{"anim.gif", model.AttachmentImage},
		{"report.pdf", model.AttachmentPDF},
		{"REPORT.PDF", model.AttachmentPDF},
		{"notes.txt", model.AttachmentText},
		{"main.go", model.AttachmentText},
		{"no-extension", model.AttachmentText},
		{"weird.xyz", model.AttachmentText},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.name); got != tc.want {
				t.Errorf("Classify(%q) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestPartition_PreservesOrder(t *testing.T) {
	atts := []model.Attachment{
		New("b.png", nil),
		New("a.pdf", nil),
		New("c.txt", nil),
		New("d.pdf", nil),
		New("e.jpg", nil),
	}

	pdfs, images, texts := Partition(atts)

	if len(pdfs) != 2 || pdfs[0].Name != "a.pdf" || pdfs[1].Name != "d.pdf" {
		t.Errorf("pdfs = %v", pdfs)
	}
	if len(images) != 2 || images[0].Name != "b.png" || images[1].Name != "e.jpg" {
		t.Errorf("images = %v", images)
	}
	if len(texts) != 1 || texts[0].Name != "c.txt" {
		t.Errorf("texts = %v", texts)
	}
}

// =============================================================================
// IMAGE ENCODING TESTS
// =============================================================================

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEncodeImages_SmallImagePassesThrough(t *testing.T) {
	data := makePNG(t, 10, 10)
	atts := []model.Attachment{New("small.png", data)}

	encoded := EncodeImages(atts)
	if len(encoded) != 1 {
		t.Fatalf("len = %d, want 1", len(encoded))
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded[0])
	if err != nil {
		t.Fatalf("not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("small image was re-encoded, want pass-through")
	}
}

func TestEncodeImages_LargeImageDownscaled(t *testing.T) {
	data := makePNG(t, 2048, 512)
	atts := []model.Attachment{New("large.png", data)}

	encoded := EncodeImages(atts)
	decoded, err := base64.StdEncoding.DecodeString(encoded[0])
	if err != nil {
		t.Fatalf("not valid base64: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("decode re-encoded image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() > maxImageDim || img.Bounds().Dy() > maxImageDim {
		t.Errorf("bounds = %v, want within %d", img.Bounds(), maxImageDim)
	}
}

func TestEncodeImages_UndecodableFallsBackToRaw(t *testing.T) {
	data := []byte("not an image at all")
	encoded := EncodeImages([]model.Attachment{New("broken.png", data)})

	decoded, err := base64.StdEncoding.DecodeString(encoded[0])
	if err != nil {
		t.Fatalf("not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("undecodable image bytes were altered")
	}
}

// =============================================================================
// DOCUMENT EXTRACTION TESTS
// =============================================================================

// fakeSource is a scripted pageSource for exercising buildDocumentText.
type fakeSource struct {
	pages   []string // "" means no text layer
	textErr map[int]error
	imgErr  map[int]error
}

func (f *fakeSource) PageCount() int { return len(f.pages) }

func (f *fakeSource) PageText(n int) (string, error) {
	if err := f.textErr[n]; err != nil {
		return "", err
	}
	return f.pages[n-1], nil
}

func (f *fakeSource) PageImage(n int) (image.Image, error) {
	if err := f.imgErr[n]; err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func fakeOCR(text string, err error) ocrFunc {
	return func(image.Image) (string, error) { return text, err }
}

func TestBuildDocumentText_TextLayer(t *testing.T) {
	src := &fakeSource{pages: []string{"first page", "second page"}}

	text, notes := buildDocumentText(src, "doc.pdf", 5, fakeOCR("", nil))

	if len(notes) != 0 {
		t.Errorf("notes = %v, want none", notes)
	}
	want := "Page 1:\nfirst page\n\nPage 2:\nsecond page"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestBuildDocumentText_PageCapWithNotice(t *testing.T) {
	// 7 pages, first 5 with a text layer: exactly 5 processed, notice
	// cites the total page count.
	src := &fakeSource{pages: []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"}}

	text, notes := buildDocumentText(src, "long.pdf", 5, fakeOCR("", nil))

	if len(notes) != 0 {
		t.Errorf("notes = %v, want none", notes)
	}
	if strings.Contains(text, "Page 6") {
		t.Error("page beyond the cap was processed")
	}
	for n := 1; n <= 5; n++ {
		if !strings.Contains(text, fmt.Sprintf("Page %d:", n)) {
			t.Errorf("missing page %d", n)
		}
	}
	if !strings.Contains(text, "7 total pages") {
		t.Errorf("truncation notice missing total count: %q", text)
	}
}

func TestBuildDocumentText_OCRFallback(t *testing.T) {
	src := &fakeSource{pages: []string{"has text", "   "}}

	text, notes := buildDocumentText(src, "scan.pdf", 5, fakeOCR("recovered by ocr", nil))

	if len(notes) != 0 {
		t.Errorf("notes = %v, want none", notes)
	}
	if !strings.Contains(text, "Page 2 (OCR):\nrecovered by ocr") {
		t.Errorf("OCR page not labeled: %q", text)
	}
	if strings.Contains(text, "Page 1 (OCR)") {
		t.Error("text-layer page wrongly marked as OCR")
	}
}

func TestBuildDocumentText_FailuresBecomeNotes(t *testing.T) {
	src := &fakeSource{
		pages:   []string{"ok", "", ""},
		imgErr:  map[int]error{2: errors.New("render boom")},
		textErr: map[int]error{},
	}

	text, notes := buildDocumentText(src, "doc.pdf", 5, fakeOCR("", errors.New("ocr boom")))

	if !strings.Contains(text, "Page 1:\nok") {
		t.Errorf("good page missing: %q", text)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %v, want 2", notes)
	}
	if !strings.Contains(notes[0], "page 2") || !strings.Contains(notes[0], "render") {
		t.Errorf("notes[0] = %q", notes[0])
	}
	if !strings.Contains(notes[1], "page 3") || !strings.Contains(notes[1], "OCR failed") {
		t.Errorf("notes[1] = %q", notes[1])
	}
}

func TestBuildDocumentText_ShortDocumentNoNotice(t *testing.T) {
	src := &fakeSource{pages: []string{"only page"}}

	text, _ := buildDocumentText(src, "short.pdf", 5, fakeOCR("", nil))

	if strings.Contains(text, "truncated") {
		t.Errorf("unexpected truncation notice: %q", text)
	}
}
